package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vaultdeposit/internal/config"
)

func isolate(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, key := range []string{
		"RPC_URL", "CHAIN_ID", "VAULT_ADDRESS", "TOKEN_ADDRESS", "ACCOUNT_ADDRESS",
		"PRIVATE_KEY", "KEYSTORE_PATH", "REMOTE_SIGNER_URL", "APPROVAL_POLICY",
		"CONFIRM_TIMEOUT", "DEPLOYMENTS_PATH", "TOKEN_DECIMALS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.RPCURL != "https://mainnet.mode.network/" {
		t.Fatalf("unexpected default RPC URL %q", cfg.RPCURL)
	}
	if cfg.VaultAddress != "0xCDe9ab402F1951E8A447f83E9D57Fa2F00CDC516" {
		t.Fatalf("unexpected default vault %q", cfg.VaultAddress)
	}
	if cfg.TokenDecimals != 6 || cfg.TokenSymbol != "USDC" {
		t.Fatalf("unexpected token defaults %d %s", cfg.TokenDecimals, cfg.TokenSymbol)
	}
	if cfg.ApproveGasLimit != 100000 || cfg.DepositGasLimit != 500000 {
		t.Fatalf("unexpected gas defaults %d %d", cfg.ApproveGasLimit, cfg.DepositGasLimit)
	}
	if cfg.ConfirmTimeout != 5*time.Minute {
		t.Fatalf("unexpected confirm timeout %s", cfg.ConfirmTimeout)
	}
	if cfg.Credential() != "" {
		t.Fatalf("expected no credential, got %q", cfg.Credential())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("CHAIN_ID", "31337")
	t.Setenv("APPROVAL_POLICY", "unlimited")
	t.Setenv("CONFIRM_TIMEOUT", "45s")
	t.Setenv("PRIVATE_KEY", "0xabc")
	t.Setenv("KEYSTORE_PATH", "/tmp/key.json")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.RPCURL != "http://localhost:8545" || cfg.ChainID != 31337 {
		t.Fatalf("expected chain overrides, got %s %d", cfg.RPCURL, cfg.ChainID)
	}
	if cfg.ApprovalPolicy != "unlimited" || cfg.ConfirmTimeout != 45*time.Second {
		t.Fatalf("unexpected overrides %s %s", cfg.ApprovalPolicy, cfg.ConfirmTimeout)
	}
	if cfg.Credential() != "keystore" {
		t.Fatalf("keystore should take precedence over raw key, got %q", cfg.Credential())
	}
}

func TestLoadDeploymentsFillsUnsetAddresses(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "deployments.json")
	blob := `{"chainId": 34443, "contracts": {"Vault": "0x00000000000000000000000000000000000000aa", "USDC": "0x00000000000000000000000000000000000000bb"}}`
	if err := os.WriteFile(path, []byte(blob), 0o600); err != nil {
		t.Fatalf("write deployments: %v", err)
	}
	t.Setenv("DEPLOYMENTS_PATH", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VaultAddress != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("expected vault from deployments, got %s", cfg.VaultAddress)
	}
	if cfg.TokenAddress != "0x00000000000000000000000000000000000000bb" || cfg.ChainID != 34443 {
		t.Fatalf("expected token and chain from deployments, got %s %d", cfg.TokenAddress, cfg.ChainID)
	}

	t.Setenv("VAULT_ADDRESS", "0x00000000000000000000000000000000000000cc")
	cfg, err = config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VaultAddress != "0x00000000000000000000000000000000000000cc" {
		t.Fatalf("environment should win over deployments, got %s", cfg.VaultAddress)
	}
}

func TestLoadMalformedDeployments(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "deployments.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write deployments: %v", err)
	}
	t.Setenv("DEPLOYMENTS_PATH", path)

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected malformed deployments to fail")
	}
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			RPCURL:         "http://localhost:8545",
			VaultAddress:   "0x00000000000000000000000000000000000000aa",
			ApprovalPolicy: "exact",
			TokenDecimals:  6,
			ConfirmTimeout: time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"valid", func(*config.Config) {}, false},
		{"bad vault", func(c *config.Config) { c.VaultAddress = "vault" }, true},
		{"bad account", func(c *config.Config) { c.AccountAddress = "0x123" }, true},
		{"bad token", func(c *config.Config) { c.TokenAddress = "nope" }, true},
		{"bad policy", func(c *config.Config) { c.ApprovalPolicy = "infinite" }, true},
		{"missing rpc", func(c *config.Config) { c.RPCURL = "" }, true},
		{"zero timeout", func(c *config.Config) { c.ConfirmTimeout = 0 }, true},
		{"zero decimals", func(c *config.Config) { c.TokenDecimals = 0 }, true},
		{"too many decimals", func(c *config.Config) { c.TokenDecimals = 37 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
