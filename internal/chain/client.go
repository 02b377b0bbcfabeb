// Package chain talks to the EVM node: it dials the RPC endpoint, broadcasts
// signed transactions and waits for their receipts. It also provides the
// signing capabilities used by the depositor.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

var errReceiptPending = errors.New("receipt not yet available")

// Client wraps an ethclient connection.
type Client struct {
	eth          *ethclient.Client
	chainID      *big.Int
	pollInterval time.Duration
	maxWait      time.Duration
	log          zerolog.Logger
}

type Config struct {
	RPCURL string
	// ExpectedChainID, when non-zero, must match the node's chain id.
	ExpectedChainID int64
	PollInterval    time.Duration
	// MaxWait bounds receipt polling independently of the caller's context.
	// Zero leaves it to the context.
	MaxWait time.Duration
}

func Dial(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	if cfg.ExpectedChainID != 0 && chainID.Int64() != cfg.ExpectedChainID {
		cli.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %d", chainID, cfg.ExpectedChainID)
	}

	log.Debug().Str("rpc", cfg.RPCURL).Str("chain_id", chainID.String()).Msg("connected to node")
	return &Client{
		eth:          cli,
		chainID:      chainID,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		log:          log,
	}, nil
}

// Eth exposes the underlying client for contract bindings.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.eth.SendTransaction(ctx, tx); err != nil {
		return err
	}
	c.log.Info().
		Str("tx", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Uint64("gas", tx.Gas()).
		Msg("transaction broadcast")
	return nil
}

// WaitMined polls until the transaction is mined or ctx is done.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 4 * c.pollInterval
	b.MaxElapsedTime = c.maxWait
	return waitForReceipt(ctx, c.eth, tx.Hash(), b)
}

func (c *Client) Close() {
	c.eth.Close()
}

type receiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

func waitForReceipt(ctx context.Context, src receiptSource, hash common.Hash, b backoff.BackOff) (*types.Receipt, error) {
	receipt, err := backoff.RetryWithData(func() (*types.Receipt, error) {
		receipt, err := src.TransactionReceipt(ctx, hash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, backoff.Permanent(err)
		}
		return nil, errReceiptPending
	}, backoff.WithContext(b, ctx))
	if errors.Is(err, errReceiptPending) {
		return nil, fmt.Errorf("gave up waiting for %s: %w", hash.Hex(), err)
	}
	return receipt, err
}
