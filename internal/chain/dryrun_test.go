package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBlock uint64

func (b fixedBlock) BlockNumber(context.Context) (uint64, error) {
	return uint64(b), nil
}

func TestDryRunSwallowsBroadcasts(t *testing.T) {
	key, err := NewKeySigner(testKeyHex)
	require.NoError(t, err)
	tx, err := key.SignTx(context.Background(), unsignedTx(3), testChainID)
	require.NoError(t, err)

	d := NewDryRun(fixedBlock(42), zerolog.Nop())

	block, err := d.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), block)

	require.NoError(t, d.SendTransaction(context.Background(), tx))
	receipt, err := d.WaitMined(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, tx.Hash(), receipt.TxHash)
	assert.Nil(t, receipt.BlockNumber)
	require.Len(t, d.Sent(), 1)
	assert.Equal(t, tx.Hash(), d.Sent()[0].Hash())
}
