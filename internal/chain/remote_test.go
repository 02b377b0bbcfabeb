package chain

import (
	"context"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultdeposit/internal/signerd"
	"vaultdeposit/internal/telemetry"
)

func startSigner(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	key, err := NewKeySigner(testKeyHex)
	require.NoError(t, err)

	srv := signerd.NewServer(signerd.Config{
		Secret:  secret,
		MaxSkew: time.Minute,
		ChainID: testChainID,
	}, key, telemetry.NewRegistry(), zerolog.Nop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRemoteSignerRoundTrip(t *testing.T) {
	ts := startSigner(t, "shared-secret")

	s, err := NewRemoteSigner(context.Background(), ts.URL, "shared-secret", ts.Client())
	require.NoError(t, err)
	assert.Equal(t, testAddress(t), s.Address())

	tx := unsignedTx(5)
	signed, err := s.SignTx(context.Background(), tx, testChainID)
	require.NoError(t, err)
	assert.Equal(t, tx.Nonce(), signed.Nonce())

	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
}

func TestRemoteSignerRejectedWithoutSecret(t *testing.T) {
	ts := startSigner(t, "shared-secret")

	_, err := NewRemoteSigner(context.Background(), ts.URL, "", ts.Client())
	require.ErrorContains(t, err, "401")
}

func TestRemoteSignerRefusesOtherChain(t *testing.T) {
	ts := startSigner(t, "shared-secret")

	s, err := NewRemoteSigner(context.Background(), ts.URL, "shared-secret", ts.Client())
	require.NoError(t, err)

	_, err = s.SignTx(context.Background(), unsignedTx(1), big.NewInt(1))
	require.ErrorContains(t, err, "not served")
}
