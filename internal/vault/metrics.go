package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Metrics is a snapshot of the vault as seen from one account, read at a
// single block.
type Metrics struct {
	BlockNumber    uint64
	TotalAssets    *big.Int
	MaxDeposit     *big.Int
	Shares         *big.Int
	LatestValue    *big.Int
	InvestedAmount *big.Int
}

type Field struct {
	Name  string
	Value decimal.Decimal
}

// Fields renders the snapshot in display order. Token amounts are scaled by
// decimals; balance is the raw share count.
func (m *Metrics) Fields(decimals int32) []Field {
	return []Field{
		{Name: "total_assets", Value: FromBaseUnits(m.TotalAssets, decimals)},
		{Name: "max_deposit", Value: FromBaseUnits(m.MaxDeposit, decimals)},
		{Name: "balance", Value: FromBaseUnits(m.Shares, 0)},
		{Name: "latest_value", Value: FromBaseUnits(m.LatestValue, decimals)},
		{Name: "invested_amount", Value: FromBaseUnits(m.InvestedAmount, decimals)},
	}
}

// GetMetrics pins the latest block and reads the five vault values at it
// concurrently.
func (d *Depositor) GetMetrics(ctx context.Context, account common.Address) (*Metrics, error) {
	block, err := d.backend.BlockNumber(ctx)
	if err != nil {
		return nil, networkErr("read block number", err)
	}

	m := &Metrics{BlockNumber: block}
	g, gctx := errgroup.WithContext(ctx)
	opts := d.callOpts(gctx, new(big.Int).SetUint64(block))

	read := func(name string, dst **big.Int, fn func() (*big.Int, error)) {
		g.Go(func() error {
			v, err := fn()
			if err != nil {
				return networkErr("read "+name, err)
			}
			*dst = v
			return nil
		})
	}
	read("total assets", &m.TotalAssets, func() (*big.Int, error) {
		return d.vault.TotalAssets(opts)
	})
	read("max deposit", &m.MaxDeposit, func() (*big.Int, error) {
		return d.vault.MaxDeposit(opts, account)
	})
	read("shares", &m.Shares, func() (*big.Int, error) {
		return d.vault.BalanceOf(opts, account)
	})
	read("latest value", &m.LatestValue, func() (*big.Int, error) {
		return d.vault.LatestVaultValue(opts)
	})
	read("invested amount", &m.InvestedAmount, func() (*big.Int, error) {
		return d.vault.CurrentVaultFundsInvestedAmount(opts)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}
