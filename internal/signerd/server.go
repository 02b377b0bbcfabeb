// Package signerd is a small HTTP service that holds the depositor's key
// and signs transactions for authenticated callers, so the CLI never loads
// key material itself.
package signerd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"vaultdeposit/internal/hmacauth"
	"vaultdeposit/internal/telemetry"
	"vaultdeposit/internal/vault"
)

type Config struct {
	HTTPPort int
	Secret   string
	MaxSkew  time.Duration
	// ChainID, when set, is the only chain the service signs for.
	ChainID *big.Int
}

type Server struct {
	cfg        Config
	signer     vault.Signer
	hmac       *hmacauth.Verifier
	metrics    *telemetry.Registry
	httpServer *http.Server
	log        zerolog.Logger
}

func NewServer(cfg Config, signer vault.Signer, metrics *telemetry.Registry, log zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		signer: signer,
		hmac: &hmacauth.Verifier{
			Secret:  cfg.Secret,
			MaxSkew: cfg.MaxSkew,
		},
		metrics: metrics,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.Handle(PathAddress, s.hmac.Middleware(http.HandlerFunc(s.handleAddress)))
	mux.Handle(PathSign, s.hmac.Middleware(http.HandlerFunc(s.handleSign)))
	mux.Handle(PathMetrics, metrics.Handler())
	mux.HandleFunc(PathHealth, s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           requestIDMiddleware(mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Str("account", s.signer.Address().Hex()).
		Msg("signer listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{Address: s.signer.Address().Hex()})
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload SignRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}
	chainID, tx, err := s.decodeSignRequest(payload)
	if err != nil {
		s.metrics.ObserveSignature("rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	signed, err := s.signer.SignTx(r.Context(), tx, chainID)
	if err != nil {
		s.metrics.ObserveSignature("failed")
		s.log.Error().Err(err).Msg("sign transaction")
		http.Error(w, "failed to sign transaction", http.StatusInternalServerError)
		return
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		s.metrics.ObserveSignature("failed")
		http.Error(w, "failed to encode transaction", http.StatusInternalServerError)
		return
	}

	s.metrics.ObserveSignature("signed")
	s.log.Info().
		Str("request_id", r.Header.Get("X-Request-Id")).
		Str("tx", signed.Hash().Hex()).
		Uint64("nonce", signed.Nonce()).
		Msg("transaction signed")

	writeJSON(w, http.StatusOK, SignResponse{
		Address:  s.signer.Address().Hex(),
		SignedTx: hexutil.Encode(raw),
		Hash:     signed.Hash().Hex(),
	})
}

func (s *Server) decodeSignRequest(req SignRequest) (*big.Int, *types.Transaction, error) {
	chainID, ok := new(big.Int).SetString(req.ChainID, 10)
	if !ok || chainID.Sign() <= 0 {
		return nil, nil, fmt.Errorf("invalid chainId %q", req.ChainID)
	}
	if s.cfg.ChainID != nil && s.cfg.ChainID.Cmp(chainID) != 0 {
		return nil, nil, fmt.Errorf("chain %s is not served", chainID)
	}
	raw, err := hexutil.Decode(req.Tx)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid tx encoding: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, nil, fmt.Errorf("invalid tx: %w", err)
	}
	return chainID, tx, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Account string `json:"account"`
	}{
		Status:  "healthy",
		Account: s.signer.Address().Hex(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		next.ServeHTTP(w, r)
	})
}
