package journal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"vaultdeposit/internal/vault"
)

var (
	ErrInFlight       = errors.New("deposit with this key is still pending")
	ErrRequestChanged = errors.New("idempotency key reused for a different deposit")
)

// Tracker journals one keyed deposit. Begin decides whether the deposit may
// run; as a vault.Observer it records hashes and the final outcome.
type Tracker struct {
	store   Store
	key     string
	account common.Address
	amount  *big.Int
	log     zerolog.Logger
	now     func() time.Time

	record Record
}

func NewTracker(store Store, key string, account common.Address, amount *big.Int, log zerolog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		key:     key,
		account: account,
		amount:  amount,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Begin returns the earlier record when the deposit already confirmed, in
// which case nothing must be sent. A pending record yields ErrInFlight; a
// failed one may be retried under the same key.
func (t *Tracker) Begin(ctx context.Context) (*Record, error) {
	existing, err := t.store.Get(ctx, t.key)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if existing != nil {
		if !strings.EqualFold(existing.Account, t.account.Hex()) || existing.Amount != t.amount.String() {
			return nil, fmt.Errorf("%w: key %q was used for %s base units from %s",
				ErrRequestChanged, t.key, existing.Amount, existing.Account)
		}
		switch existing.Status {
		case StatusConfirmed:
			return existing, nil
		case StatusPending:
			return nil, fmt.Errorf("%w: key %q, deposit tx %q", ErrInFlight, t.key, existing.DepositTx)
		}
	}

	now := t.now()
	t.record = Record{
		Account:   t.account.Hex(),
		Amount:    t.amount.String(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		t.record.CreatedAt = existing.CreatedAt
	}
	return nil, t.save(ctx)
}

// Finish records an outcome that did not come through a transition, such as
// a deposit rejected before anything was broadcast. A broadcast deposit whose
// wait failed stays pending: it may still be mined.
func (t *Tracker) Finish(ctx context.Context, err error) {
	if t.record.Status != StatusPending {
		return
	}
	if err != nil && t.record.DepositTx != "" {
		t.log.Warn().Err(err).Str("key", t.key).Str("tx", t.record.DepositTx).Msg("deposit outcome unknown, journal left pending")
		return
	}
	if err == nil {
		t.record.Status = StatusConfirmed
	} else {
		t.record.Status = StatusFailed
		t.record.Error = err.Error()
	}
	if saveErr := t.save(ctx); saveErr != nil {
		t.log.Error().Err(saveErr).Str("key", t.key).Msg("journal update failed")
	}
}

func (t *Tracker) OnTransition(ctx context.Context, tr vault.Transition) {
	switch {
	case tr.State == vault.StateBroadcast && tr.Kind == vault.KindApprove:
		t.record.ApprovalTx = tr.Hash.Hex()
	case tr.State == vault.StateBroadcast && tr.Kind == vault.KindDeposit:
		t.record.DepositTx = tr.Hash.Hex()
	case tr.State == vault.StateConfirmed && tr.Kind == vault.KindDeposit:
		t.record.Status = StatusConfirmed
		t.record.BlockNumber = tr.BlockNumber
	case tr.State == vault.StateFailed && tr.Err != nil && tr.Kind == vault.KindDeposit && t.record.DepositTx != "":
		// Broadcast but never seen mined: the deposit may still land.
		t.log.Warn().Err(tr.Err).Str("key", t.key).Str("tx", t.record.DepositTx).Msg("deposit outcome unknown, journal left pending")
		return
	case tr.State == vault.StateFailed:
		t.record.Status = StatusFailed
		if tr.Err != nil {
			t.record.Error = tr.Err.Error()
		} else {
			t.record.Error = fmt.Sprintf("%s tx %s reverted", tr.Kind, tr.Hash.Hex())
		}
	default:
		return
	}
	if err := t.save(ctx); err != nil {
		t.log.Error().Err(err).Str("key", t.key).Msg("journal update failed")
	}
}

func (t *Tracker) save(ctx context.Context) error {
	t.record.UpdatedAt = t.now()
	return t.store.Save(ctx, t.key, t.record)
}
