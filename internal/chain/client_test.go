package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReceipts struct {
	calls   int
	pending int
	err     error
	receipt *types.Receipt
}

func (s *scriptedReceipts) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls <= s.pending {
		return nil, ethereum.NotFound
	}
	return s.receipt, nil
}

func TestWaitForReceiptPollsUntilMined(t *testing.T) {
	want := &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(9)}
	src := &scriptedReceipts{pending: 3, receipt: want}

	got, err := waitForReceipt(context.Background(), src, common.Hash{1}, backoff.NewConstantBackOff(time.Millisecond))
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 4, src.calls)
}

func TestWaitForReceiptStopsOnRPCError(t *testing.T) {
	src := &scriptedReceipts{err: errors.New("connection reset")}

	_, err := waitForReceipt(context.Background(), src, common.Hash{1}, backoff.NewConstantBackOff(time.Millisecond))
	require.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 1, src.calls)
}

func TestWaitForReceiptHonoursContext(t *testing.T) {
	src := &scriptedReceipts{pending: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := waitForReceipt(ctx, src, common.Hash{1}, backoff.NewConstantBackOff(time.Millisecond))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForReceiptGivesUpAfterMaxElapsed(t *testing.T) {
	src := &scriptedReceipts{pending: 1 << 30}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 2 * time.Millisecond
	b.MaxElapsedTime = 15 * time.Millisecond

	_, err := waitForReceipt(context.Background(), src, common.Hash{1}, b)
	require.ErrorIs(t, err, errReceiptPending)
}
