package signerd

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"vaultdeposit/internal/hmacauth"
	"vaultdeposit/internal/telemetry"
)

const testSecret = "signer-secret"

type keySigner struct {
	key *ecdsa.PrivateKey
}

func (k keySigner) Address() common.Address {
	return crypto.PubkeyToAddress(k.key.PublicKey)
}

func (k keySigner) SignTx(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), k.key)
}

func newTestServer(t *testing.T, chainID *big.Int) (*Server, keySigner) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := keySigner{key: key}
	srv := NewServer(Config{Secret: testSecret, MaxSkew: time.Minute, ChainID: chainID}, signer, telemetry.NewRegistry(), zerolog.Nop())
	return srv, signer
}

func unsignedTx(t *testing.T) string {
	t.Helper()
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(34443),
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       100000,
		To:        &to,
		Data:      []byte{0x09, 0x5e, 0xa7, 0xb3},
	})
	raw, err := tx.MarshalBinary()
	if err != nil {
		t.Fatalf("encode tx: %v", err)
	}
	return hexutil.Encode(raw)
}

func signedRequest(t *testing.T, method, path string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if err := hmacauth.Sign(req, testSecret, time.Now()); err != nil {
		t.Fatalf("sign request: %v", err)
	}
	return req
}

func TestSignReturnsTransactionFromServedKey(t *testing.T) {
	srv, signer := newTestServer(t, big.NewInt(34443))

	payload, _ := json.Marshal(SignRequest{ChainID: "34443", Tx: unsignedTx(t)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, http.MethodPost, PathSign, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SignResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	raw, err := hexutil.Decode(resp.SignedTx)
	if err != nil {
		t.Fatalf("decode signed tx: %v", err)
	}
	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(raw); err != nil {
		t.Fatalf("unmarshal signed tx: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(34443)), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from != signer.Address() {
		t.Fatalf("expected sender %s got %s", signer.Address(), from)
	}
	if signed.Hash().Hex() != resp.Hash || signed.Nonce() != 7 {
		t.Fatalf("unexpected signed tx hash=%s nonce=%d", resp.Hash, signed.Nonce())
	}
	assertScraped(t, srv, `vaultdeposit_signatures_total{status="signed"} 1`)
}

func TestSignRejectsUnservedChain(t *testing.T) {
	srv, _ := newTestServer(t, big.NewInt(1))

	payload, _ := json.Marshal(SignRequest{ChainID: "34443", Tx: unsignedTx(t)})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, http.MethodPost, PathSign, payload))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	assertScraped(t, srv, `vaultdeposit_signatures_total{status="rejected"} 1`)
}

func TestSignRejectsGarbage(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, body := range []string{`{`, `{"chainId":"x","tx":"0x00"}`, `{"chainId":"1","tx":"zz"}`, `{"chainId":"1","tx":"0x01"}`} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, signedRequest(t, http.MethodPost, PathSign, []byte(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400 got %d", body, rec.Code)
		}
	}
}

func TestUnsignedRequestIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathAddress, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAddressAndHealth(t *testing.T) {
	srv, signer := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, http.MethodGet, PathAddress, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var addr AddressResponse
	if err := json.NewDecoder(rec.Body).Decode(&addr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if addr.Address != signer.Address().Hex() {
		t.Fatalf("expected %s got %s", signer.Address().Hex(), addr.Address)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathHealth, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, signedRequest(t, http.MethodPost, PathAddress, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}
}

func assertScraped(t *testing.T, srv *Server, line string) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathMetrics, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), line) {
		t.Fatalf("expected %q in scrape:\n%s", line, rec.Body.String())
	}
}
