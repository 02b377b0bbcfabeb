// Package vault deposits a stablecoin into the vault contract: it checks the
// depositor's balance and allowance, approves the vault when needed, submits
// the deposit and reports the vault's metrics.
package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ApprovalPolicy decides how large an approval is when the allowance falls short.
type ApprovalPolicy string

const (
	ApproveExact     ApprovalPolicy = "exact"
	ApproveUnlimited ApprovalPolicy = "unlimited"
)

// Config carries the chain and token parameters of a Depositor. Zero gas
// limits let the node estimate.
type Config struct {
	ChainID         *big.Int
	Decimals        int32
	Symbol          string
	ApproveGasLimit uint64
	DepositGasLimit uint64
	ApprovalPolicy  ApprovalPolicy
}

type Option func(*Depositor)

func WithLogger(log zerolog.Logger) Option {
	return func(d *Depositor) {
		d.log = log
	}
}

func WithObserver(o Observer) Option {
	return func(d *Depositor) {
		d.observers = append(d.observers, o)
	}
}

// Depositor sequences balance check, allowance check, approval and deposit.
// It holds no state between calls.
type Depositor struct {
	token     Token
	vault     Vault
	backend   Backend
	cfg       Config
	log       zerolog.Logger
	observers []Observer
	now       func() time.Time
}

// DepositResult describes a confirmed deposit. Approval is nil when the
// existing allowance already covered the amount. Shares is taken from the
// vault's Deposit event and is nil if the receipt carries none.
type DepositResult struct {
	Amount    decimal.Decimal
	BaseUnits *big.Int
	Approval  *Receipt
	Receipt   *Receipt
	Shares    *big.Int
}

func NewDepositor(token Token, vault Vault, backend Backend, cfg Config, opts ...Option) *Depositor {
	if cfg.Decimals == 0 {
		cfg.Decimals = DefaultDecimals
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "USDC"
	}
	if cfg.ApprovalPolicy == "" {
		cfg.ApprovalPolicy = ApproveExact
	}
	d := &Depositor{
		token:   token,
		vault:   vault,
		backend: backend,
		cfg:     cfg,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decimals returns the token scale amounts are converted with.
func (d *Depositor) Decimals() int32 {
	return d.cfg.Decimals
}

// Verify checks that the token's on-chain decimals match the configured scale.
func (d *Depositor) Verify(ctx context.Context) error {
	decimals, err := d.token.Decimals(d.callOpts(ctx, nil))
	if err != nil {
		return networkErr("read token decimals", err)
	}
	if int32(decimals) != d.cfg.Decimals {
		return fmt.Errorf("%w: token reports %d, configured %d", ErrDecimalsMismatch, decimals, d.cfg.Decimals)
	}
	return nil
}

// Allowance returns how many base units the vault may spend on behalf of
// account.
func (d *Depositor) Allowance(ctx context.Context, account common.Address) (*big.Int, error) {
	allowance, err := d.token.Allowance(d.callOpts(ctx, nil), account, d.vault.Address())
	if err != nil {
		return nil, networkErr("read allowance", err)
	}
	return allowance, nil
}

// CheckAllowance reports whether the vault may already spend amount base
// units on behalf of account.
func (d *Depositor) CheckAllowance(ctx context.Context, account common.Address, amount *big.Int) (bool, error) {
	allowance, err := d.Allowance(ctx, account)
	if err != nil {
		return false, err
	}
	d.log.Debug().
		Str("account", account.Hex()).
		Str("allowance", allowance.String()).
		Str("required", amount.String()).
		Msg("allowance checked")
	return allowance.Cmp(amount) >= 0, nil
}

// Approve raises the vault's allowance over account's tokens to at least
// amount and blocks until the approval is mined. A reverted approval returns
// its receipt together with ErrApprovalFailed.
func (d *Depositor) Approve(ctx context.Context, account common.Address, amount *big.Int, signer Signer) (*Receipt, error) {
	if signer.Address() != account {
		return nil, fmt.Errorf("%w: %s", ErrSignerMismatch, account.Hex())
	}
	value := amount
	if d.cfg.ApprovalPolicy == ApproveUnlimited {
		value = math.MaxBig256
	}

	receipt, err := d.submit(ctx, KindApprove, signer, d.cfg.ApproveGasLimit, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return d.token.Approve(opts, d.vault.Address(), value)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrApprovalFailed, err)
	}
	if !receipt.Succeeded() {
		return receipt, fmt.Errorf("%w: tx %s reverted in block %s", ErrApprovalFailed, receipt.TxHash.Hex(), receipt.BlockNumber)
	}
	d.log.Info().
		Str("tx", receipt.TxHash.Hex()).
		Str("amount", value.String()).
		Msg("vault approved")
	return receipt, nil
}

// Deposit moves amount of the token from account into the vault, crediting
// the shares to account. A reverted approval or deposit returns the partial
// result carrying its receipts along with the error.
//
// Balance and allowance are checked before anything is signed, but either can
// change before the deposit is mined; a deposit that loses that race reverts
// on chain and surfaces as ErrDepositFailed together with its receipt.
func (d *Depositor) Deposit(ctx context.Context, amount decimal.Decimal, account common.Address, signer Signer) (*DepositResult, error) {
	units, err := ToBaseUnits(amount, d.cfg.Decimals)
	if err != nil {
		return nil, err
	}
	if signer.Address() != account {
		return nil, fmt.Errorf("%w: %s", ErrSignerMismatch, account.Hex())
	}

	balance, err := d.token.BalanceOf(d.callOpts(ctx, nil), account)
	if err != nil {
		return nil, networkErr("read balance", err)
	}
	if balance.Cmp(units) < 0 {
		return nil, fmt.Errorf("%w: have %s %s (%s), need %s %s (%s)",
			ErrInsufficientBalance,
			FromBaseUnits(balance, d.cfg.Decimals), d.cfg.Symbol, balance,
			amount, d.cfg.Symbol, units,
		)
	}

	result := &DepositResult{Amount: amount, BaseUnits: units}

	allowed, err := d.CheckAllowance(ctx, account, units)
	if err != nil {
		return nil, err
	}
	if !allowed {
		d.log.Info().Str("amount", amount.String()).Msg("approving vault")
		approval, err := d.Approve(ctx, account, units, signer)
		result.Approval = approval
		if err != nil {
			if approval != nil {
				return result, err
			}
			return nil, err
		}
	}

	receipt, err := d.submit(ctx, KindDeposit, signer, d.cfg.DepositGasLimit, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return d.vault.Deposit(opts, units, account)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDepositFailed, err)
	}
	result.Receipt = receipt
	if !receipt.Succeeded() {
		return result, fmt.Errorf("%w: tx %s reverted in block %s", ErrDepositFailed, receipt.TxHash.Hex(), receipt.BlockNumber)
	}

	result.Shares = d.mintedShares(receipt.Receipt, account)
	d.log.Info().
		Str("tx", receipt.TxHash.Hex()).
		Str("amount", amount.String()).
		Msg("deposit confirmed")
	return result, nil
}

// submit drives one transaction through its lifecycle. build must use the
// supplied opts; they never send, so broadcasting stays under our control.
func (d *Depositor) submit(
	ctx context.Context,
	kind TxKind,
	signer Signer,
	gasLimit uint64,
	build func(*bind.TransactOpts) (*types.Transaction, error),
) (*Receipt, error) {
	from := signer.Address()
	opts := &bind.TransactOpts{
		From:     from,
		Context:  ctx,
		GasLimit: gasLimit,
		NoSend:   true,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			d.emit(ctx, Transition{Kind: kind, State: StateBuilt, Hash: tx.Hash()})
			signed, err := signer.SignTx(ctx, tx, d.cfg.ChainID)
			if err != nil {
				return nil, fmt.Errorf("sign: %w", err)
			}
			d.emit(ctx, Transition{Kind: kind, State: StateSigned, Hash: signed.Hash()})
			return signed, nil
		},
	}

	tx, err := build(opts)
	if err != nil {
		return nil, fmt.Errorf("build %s tx: %w", kind, err)
	}

	if err := d.backend.SendTransaction(ctx, tx); err != nil {
		d.emit(ctx, Transition{Kind: kind, State: StateFailed, Hash: tx.Hash(), Err: err})
		return nil, fmt.Errorf("broadcast %s tx %s: %w", kind, tx.Hash().Hex(), err)
	}
	sentAt := d.now()
	d.emit(ctx, Transition{Kind: kind, State: StateBroadcast, Hash: tx.Hash()})
	d.emit(ctx, Transition{Kind: kind, State: StatePending, Hash: tx.Hash()})

	receipt, err := d.backend.WaitMined(ctx, tx)
	if err != nil {
		d.emit(ctx, Transition{Kind: kind, State: StateFailed, Hash: tx.Hash(), Elapsed: d.now().Sub(sentAt), Err: err})
		if ctx.Err() == nil {
			err = networkErr("wait for receipt", err)
		}
		return nil, fmt.Errorf("%s tx %s not confirmed: %w", kind, tx.Hash().Hex(), err)
	}

	state := StateConfirmed
	if receipt.Status != types.ReceiptStatusSuccessful {
		state = StateFailed
	}
	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	d.emit(ctx, Transition{Kind: kind, State: state, Hash: tx.Hash(), BlockNumber: block, Elapsed: d.now().Sub(sentAt)})
	return &Receipt{Kind: kind, State: state, Receipt: receipt}, nil
}

func (d *Depositor) mintedShares(receipt *types.Receipt, owner common.Address) *big.Int {
	for _, log := range receipt.Logs {
		if log == nil || log.Address != d.vault.Address() {
			continue
		}
		event, err := d.vault.ParseDeposit(*log)
		if err != nil {
			continue
		}
		if event.Owner == owner {
			return event.Shares
		}
	}
	d.log.Warn().Str("tx", receipt.TxHash.Hex()).Msg("no Deposit event for receiver in receipt")
	return nil
}

func (d *Depositor) emit(ctx context.Context, t Transition) {
	ev := d.log.Debug()
	if t.Err != nil {
		ev = d.log.Warn().Err(t.Err)
	}
	ev.Str("kind", string(t.Kind)).
		Str("state", string(t.State)).
		Str("tx", t.Hash.Hex()).
		Msg("transaction state")
	for _, o := range d.observers {
		o.OnTransition(ctx, t)
	}
}

func (d *Depositor) callOpts(ctx context.Context, block *big.Int) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, BlockNumber: block}
}

func networkErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
}
