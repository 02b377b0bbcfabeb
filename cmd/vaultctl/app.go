package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"vaultdeposit/internal/chain"
	"vaultdeposit/internal/config"
	"vaultdeposit/internal/contracts"
	"vaultdeposit/internal/journal"
	"vaultdeposit/internal/telemetry"
	"vaultdeposit/internal/vault"
)

var errNoCredential = errors.New("no credential configured: set REMOTE_SIGNER_URL, KEYSTORE_PATH or PRIVATE_KEY")

// app is the wired object graph of one command invocation.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	client  *chain.Client
	backend vault.Backend
	dryRun  *chain.DryRun
	token   *contracts.ERC20
	vault   *contracts.Vault
	metrics *telemetry.Registry
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, dryRun bool) (*app, error) {
	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:          cfg.RPCURL,
		ExpectedChainID: cfg.ChainID,
		PollInterval:    cfg.PollInterval,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vault.ErrNetwork, err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		client:  client,
		backend: client,
		metrics: telemetry.NewRegistry(),
	}
	if dryRun {
		a.dryRun = chain.NewDryRun(client, log)
		a.backend = a.dryRun
	}

	if err := a.bindContracts(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) bindContracts(ctx context.Context) error {
	vaultABI, err := contracts.LoadABI(a.cfg.VaultABIPath, contracts.VaultABI)
	if err != nil {
		return fmt.Errorf("vault abi: %w", err)
	}
	tokenABI, err := contracts.LoadABI(a.cfg.TokenABIPath, contracts.ERC20ABI)
	if err != nil {
		return fmt.Errorf("token abi: %w", err)
	}

	a.vault, err = contracts.NewVault(common.HexToAddress(a.cfg.VaultAddress), vaultABI, a.client.Eth())
	if err != nil {
		return err
	}

	tokenAddr := common.HexToAddress(a.cfg.TokenAddress)
	if a.cfg.TokenAddress == "" {
		tokenAddr, err = a.vault.Asset(&bind.CallOpts{Context: ctx})
		if err != nil {
			return fmt.Errorf("%w: read vault asset: %w", vault.ErrNetwork, err)
		}
		a.log.Debug().Str("token", tokenAddr.Hex()).Msg("token address taken from vault")
	}
	a.token, err = contracts.NewERC20(tokenAddr, tokenABI, a.client.Eth())
	return err
}

func (a *app) depositor(extra ...vault.Option) *vault.Depositor {
	opts := []vault.Option{
		vault.WithLogger(a.log),
		vault.WithObserver(a.metrics),
	}
	opts = append(opts, extra...)
	return vault.NewDepositor(a.token, a.vault, a.backend, vault.Config{
		ChainID:         a.client.ChainID(),
		Decimals:        a.cfg.TokenDecimals,
		Symbol:          a.cfg.TokenSymbol,
		ApproveGasLimit: a.cfg.ApproveGasLimit,
		DepositGasLimit: a.cfg.DepositGasLimit,
		ApprovalPolicy:  vault.ApprovalPolicy(a.cfg.ApprovalPolicy),
	}, opts...)
}

// flushMetrics writes the textfile when one is configured. Failures are
// logged only; they never change the command's outcome.
func (a *app) flushMetrics() {
	if a.cfg.MetricsTextfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.MetricsTextfile).Msg("metrics textfile not written")
	}
}

func (a *app) Close() {
	a.flushMetrics()
	a.client.Close()
}

// newSigner picks the credential source: remote signer, then keystore, then
// raw private key.
func newSigner(ctx context.Context, cfg *config.Config) (vault.Signer, error) {
	switch cfg.Credential() {
	case "remote":
		s, err := chain.NewRemoteSigner(ctx, cfg.RemoteSignerURL, cfg.RemoteSignerSecret, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "keystore", "key":
		return localSigner(cfg)
	default:
		return nil, errNoCredential
	}
}

// localSigner is newSigner restricted to key material held by this process.
func localSigner(cfg *config.Config) (vault.Signer, error) {
	switch {
	case cfg.KeystorePath != "":
		s, err := chain.NewKeystoreSigner(cfg.KeystorePath, cfg.KeystorePassword)
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.PrivateKey != "":
		s, err := chain.NewKeySigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.New("signer service needs KEYSTORE_PATH or PRIVATE_KEY")
	}
}

// resolveAccount prefers ACCOUNT_ADDRESS and falls back to the signer's own
// address. A mismatch between the two is left for the depositor to reject.
func resolveAccount(cfg *config.Config, signer vault.Signer) (common.Address, error) {
	if cfg.AccountAddress != "" {
		return common.HexToAddress(cfg.AccountAddress), nil
	}
	if signer != nil {
		return signer.Address(), nil
	}
	return common.Address{}, errors.New("no account: set ACCOUNT_ADDRESS or a credential")
}

// openJournal returns the configured store and a function releasing it.
func openJournal(ctx context.Context, cfg *config.Config) (journal.Store, func(), error) {
	if cfg.JournalDSN != "" {
		store, err := journal.NewPostgresStore(ctx, cfg.JournalDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		return store, store.Close, nil
	}

	path := cfg.JournalPath
	if path == "" {
		path = filepath.Join(os.TempDir(), "vaultctl-journal.json")
	}
	store, err := journal.NewFileStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	return store, func() {}, nil
}

func baseUnitsString(v *big.Int) string {
	if v == nil {
		return "-"
	}
	return v.String()
}
