package vault

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxKind names which step of the flow a transaction belongs to.
type TxKind string

const (
	KindApprove TxKind = "approve"
	KindDeposit TxKind = "deposit"
)

// TxState is a position in built -> signed -> broadcast -> pending -> confirmed|failed.
type TxState string

const (
	StateBuilt     TxState = "built"
	StateSigned    TxState = "signed"
	StateBroadcast TxState = "broadcast"
	StatePending   TxState = "pending"
	StateConfirmed TxState = "confirmed"
	StateFailed    TxState = "failed"
)

// Final reports whether no further transition follows.
func (s TxState) Final() bool {
	return s == StateConfirmed || s == StateFailed
}

// Transition is emitted to observers each time a transaction changes state.
// Elapsed is measured from broadcast and is only set on final states.
type Transition struct {
	Kind        TxKind
	State       TxState
	Hash        common.Hash
	BlockNumber uint64
	Elapsed     time.Duration
	Err         error
}

// Receipt is the outcome of a confirmed or failed transaction.
type Receipt struct {
	Kind  TxKind
	State TxState
	*types.Receipt
}

// Succeeded reports whether the transaction was mined without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.State == StateConfirmed
}
