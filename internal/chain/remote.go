package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultdeposit/internal/hmacauth"
	"vaultdeposit/internal/signerd"
)

// RemoteSigner delegates signing to a signerd instance. Every signed
// transaction is checked to come from the advertised address.
type RemoteSigner struct {
	baseURL string
	secret  string
	http    *http.Client
	address common.Address
	now     func() time.Time
}

func NewRemoteSigner(ctx context.Context, baseURL, secret string, client *http.Client) (*RemoteSigner, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &RemoteSigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    client,
		now:     time.Now,
	}

	var resp signerd.AddressResponse
	if err := s.do(ctx, http.MethodGet, signerd.PathAddress, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch signer address: %w", err)
	}
	if !common.IsHexAddress(resp.Address) {
		return nil, fmt.Errorf("signer returned invalid address %q", resp.Address)
	}
	s.address = common.HexToAddress(resp.Address)
	return s, nil
}

func (s *RemoteSigner) Address() common.Address {
	return s.address
}

func (s *RemoteSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode tx: %w", err)
	}

	var resp signerd.SignResponse
	req := signerd.SignRequest{ChainID: chainID.String(), Tx: hexutil.Encode(raw)}
	if err := s.do(ctx, http.MethodPost, signerd.PathSign, req, &resp); err != nil {
		return nil, err
	}

	signedRaw, err := hexutil.Decode(resp.SignedTx)
	if err != nil {
		return nil, fmt.Errorf("decode signed tx: %w", err)
	}
	signed := new(types.Transaction)
	if err := signed.UnmarshalBinary(signedRaw); err != nil {
		return nil, fmt.Errorf("decode signed tx: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		return nil, fmt.Errorf("recover signer: %w", err)
	}
	if sender != s.address {
		return nil, fmt.Errorf("remote signer signed as %s, expected %s", sender.Hex(), s.address.Hex())
	}
	if signed.Nonce() != tx.Nonce() || !bytes.Equal(signed.Data(), tx.Data()) || signed.To() == nil || tx.To() == nil || *signed.To() != *tx.To() {
		return nil, fmt.Errorf("remote signer altered the transaction")
	}
	return signed, nil
}

func (s *RemoteSigner) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		blob, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		if err := hmacauth.Sign(req, s.secret, s.now()); err != nil {
			return err
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
