package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all vaultctl configuration.
type Config struct {
	// Chain
	RPCURL  string `env:"RPC_URL"  envDefault:"https://mainnet.mode.network/"`
	ChainID int64  `env:"CHAIN_ID" envDefault:"0"`

	// Contracts
	VaultAddress string `env:"VAULT_ADDRESS" envDefault:"0xCDe9ab402F1951E8A447f83E9D57Fa2F00CDC516"`
	TokenAddress string `env:"TOKEN_ADDRESS"`
	VaultABIPath string `env:"VAULT_ABI_PATH"`
	TokenABIPath string `env:"TOKEN_ABI_PATH"`

	// Token
	TokenDecimals int32  `env:"TOKEN_DECIMALS" envDefault:"6"`
	TokenSymbol   string `env:"TOKEN_SYMBOL"   envDefault:"USDC"`

	// Account and credentials
	AccountAddress     string `env:"ACCOUNT_ADDRESS"`
	PrivateKey         string `env:"PRIVATE_KEY"`
	KeystorePath       string `env:"KEYSTORE_PATH"`
	KeystorePassword   string `env:"KEYSTORE_PASSWORD"`
	RemoteSignerURL    string `env:"REMOTE_SIGNER_URL"`
	RemoteSignerSecret string `env:"REMOTE_SIGNER_SECRET"`

	// Transactions
	ApproveGasLimit uint64        `env:"APPROVE_GAS_LIMIT" envDefault:"100000"`
	DepositGasLimit uint64        `env:"DEPOSIT_GAS_LIMIT" envDefault:"500000"`
	ApprovalPolicy  string        `env:"APPROVAL_POLICY"   envDefault:"exact"`
	ConfirmTimeout  time.Duration `env:"CONFIRM_TIMEOUT"   envDefault:"5m"`
	PollInterval    time.Duration `env:"POLL_INTERVAL"     envDefault:"2s"`

	// Journal and metrics
	JournalPath     string `env:"JOURNAL_PATH"`
	JournalDSN      string `env:"JOURNAL_DSN"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Signing service
	SignerPort    int           `env:"SIGNER_PORT"     envDefault:"8645"`
	SignerMaxSkew time.Duration `env:"SIGNER_MAX_SKEW" envDefault:"60s"`

	DeploymentsPath string `env:"DEPLOYMENTS_PATH" envDefault:"deployments.json"`
}

// Deployment represents deployments.json.
type Deployment struct {
	ChainID   int64 `json:"chainId"`
	Contracts struct {
		Vault string `json:"Vault"`
		USDC  string `json:"USDC"`
	} `json:"contracts"`
}

// Load reads an optional .env file, the environment and an optional
// deployments file. Explicit environment values win over the deployments file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	deploy, err := loadDeployments(cfg.DeploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}
	if deploy != nil {
		cfg.applyDeployment(deploy)
	}

	return cfg, nil
}

func (c *Config) applyDeployment(d *Deployment) {
	if _, set := os.LookupEnv("VAULT_ADDRESS"); !set && d.Contracts.Vault != "" {
		c.VaultAddress = d.Contracts.Vault
	}
	if c.TokenAddress == "" {
		c.TokenAddress = d.Contracts.USDC
	}
	if c.ChainID == 0 {
		c.ChainID = d.ChainID
	}
}

func loadDeployments(path string) (*Deployment, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d Deployment
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate rejects malformed addresses and unknown policies.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("RPC_URL is required")
	}
	if !common.IsHexAddress(c.VaultAddress) {
		return fmt.Errorf("VAULT_ADDRESS %q is not a hex address", c.VaultAddress)
	}
	for name, addr := range map[string]string{
		"TOKEN_ADDRESS":   c.TokenAddress,
		"ACCOUNT_ADDRESS": c.AccountAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s %q is not a hex address", name, addr)
		}
	}
	switch c.ApprovalPolicy {
	case "exact", "unlimited":
	default:
		return fmt.Errorf("APPROVAL_POLICY must be exact or unlimited, got %q", c.ApprovalPolicy)
	}
	if c.TokenDecimals < 1 || c.TokenDecimals > 36 {
		return fmt.Errorf("TOKEN_DECIMALS out of range: %d", c.TokenDecimals)
	}
	if c.ConfirmTimeout <= 0 {
		return errors.New("CONFIRM_TIMEOUT must be positive")
	}
	return nil
}

// Credential names which signing source the settings select, in order of
// precedence: remote signer, keystore, raw private key.
func (c *Config) Credential() string {
	switch {
	case c.RemoteSignerURL != "":
		return "remote"
	case c.KeystorePath != "":
		return "keystore"
	case c.PrivateKey != "":
		return "key"
	default:
		return ""
	}
}
