package chain

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Throwaway key used only by tests.
const testKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testChainID = big.NewInt(34443)

func unsignedTx(nonce uint64) *types.Transaction {
	to := common.HexToAddress("0xCDe9ab402F1951E8A447f83E9D57Fa2F00CDC516")
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      500000,
		GasPrice: big.NewInt(1_000_000),
		Data:     []byte{0x6e, 0x55, 0x3f, 0x65},
	})
}

func TestKeySignerSignsForItsAddress(t *testing.T) {
	s, err := NewKeySigner(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, testAddress(t), s.Address())

	signed, err := s.SignTx(context.Background(), unsignedTx(1), testChainID)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
}

func TestNewKeySignerRejectsGarbage(t *testing.T) {
	_, err := NewKeySigner("0xnot-a-key")
	require.ErrorContains(t, err, "parse private key")
}

func TestKeystoreSigner(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex[2:])
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	blob, err := keystore.EncryptKey(&keystore.Key{Address: address, PrivateKey: key}, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	_, err = NewKeystoreSigner(path, "wrong")
	require.Error(t, err)

	s, err := NewKeystoreSigner(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, address, s.Address())

	for nonce := uint64(0); nonce < 2; nonce++ {
		signed, err := s.SignTx(context.Background(), unsignedTx(nonce), testChainID)
		require.NoError(t, err)
		sender, err := types.Sender(types.LatestSignerForChainID(testChainID), signed)
		require.NoError(t, err)
		assert.Equal(t, address, sender)
	}
}

func TestZeroKeyClearsScalar(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	zeroKey(key)
	assert.Equal(t, 0, key.D.Sign())
}

func testAddress(t *testing.T) common.Address {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex[2:])
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey)
}
