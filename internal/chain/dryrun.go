package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

type blockReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// DryRun stands in for a broadcasting backend: transactions are built and
// signed as usual, logged, and reported as mined without ever leaving the
// process. Receipts carry no block number and no logs.
type DryRun struct {
	reads blockReader
	log   zerolog.Logger

	mu   sync.Mutex
	sent []*types.Transaction
}

func NewDryRun(reads blockReader, log zerolog.Logger) *DryRun {
	return &DryRun{reads: reads, log: log}
}

func (d *DryRun) BlockNumber(ctx context.Context) (uint64, error) {
	return d.reads.BlockNumber(ctx)
}

func (d *DryRun) SendTransaction(_ context.Context, tx *types.Transaction) error {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.sent = append(d.sent, tx)
	d.mu.Unlock()

	d.log.Info().
		Str("tx", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Uint64("gas", tx.Gas()).
		Str("raw", hexutil.Encode(raw)).
		Msg("dry run: transaction not broadcast")
	return nil
}

func (d *DryRun) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{
		Type:    tx.Type(),
		Status:  types.ReceiptStatusSuccessful,
		TxHash:  tx.Hash(),
		GasUsed: tx.Gas(),
	}, nil
}

// Sent returns the transactions swallowed so far.
func (d *DryRun) Sent() []*types.Transaction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*types.Transaction(nil), d.sent...)
}
