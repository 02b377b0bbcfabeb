// Package contracts holds the ABIs of the vault and its stablecoin together
// with thin typed bindings over bind.BoundContract.
package contracts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	//go:embed abi/vault.json
	VaultABI []byte

	//go:embed abi/erc20.json
	ERC20ABI []byte
)

// LoadABI parses the ABI file at path, falling back to the embedded copy when
// path is empty.
func LoadABI(path string, fallback []byte) (abi.ABI, error) {
	raw := fallback
	if path != "" {
		blob, err := os.ReadFile(path)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("read abi %s: %w", path, err)
		}
		raw = blob
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

// requireMethods fails when the parsed ABI lacks any of the named methods.
func requireMethods(parsed abi.ABI, names ...string) error {
	for _, name := range names {
		if _, ok := parsed.Methods[name]; !ok {
			return fmt.Errorf("abi is missing method %q", name)
		}
	}
	return nil
}
