package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Vault is a binding to the deposit vault.
type Vault struct {
	address  common.Address
	contract *bind.BoundContract
}

// VaultDeposit is the vault's Deposit(sender, owner, assets, shares) event.
type VaultDeposit struct {
	Sender common.Address
	Owner  common.Address
	Assets *big.Int
	Shares *big.Int
	Raw    types.Log
}

func NewVault(address common.Address, parsed abi.ABI, backend bind.ContractBackend) (*Vault, error) {
	err := requireMethods(parsed,
		"deposit", "totalAssets", "maxDeposit", "balanceOf",
		"latestVaultValue", "currentVaultFundsInvestedAmount",
	)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	if _, ok := parsed.Events["Deposit"]; !ok {
		return nil, fmt.Errorf("vault: abi is missing event \"Deposit\"")
	}
	return &Vault{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

func (v *Vault) Address() common.Address {
	return v.address
}

// Asset returns the token address the vault accepts, via its usdc() getter.
func (v *Vault) Asset(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	if err := v.contract.Call(opts, &out, "usdc"); err != nil {
		return common.Address{}, fmt.Errorf("call usdc: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (v *Vault) TotalAssets(opts *bind.CallOpts) (*big.Int, error) {
	return callBig(v.contract, opts, "totalAssets")
}

func (v *Vault) MaxDeposit(opts *bind.CallOpts, receiver common.Address) (*big.Int, error) {
	return callBig(v.contract, opts, "maxDeposit", receiver)
}

// BalanceOf returns the vault shares held by owner.
func (v *Vault) BalanceOf(opts *bind.CallOpts, owner common.Address) (*big.Int, error) {
	return callBig(v.contract, opts, "balanceOf", owner)
}

func (v *Vault) LatestVaultValue(opts *bind.CallOpts) (*big.Int, error) {
	return callBig(v.contract, opts, "latestVaultValue")
}

func (v *Vault) CurrentVaultFundsInvestedAmount(opts *bind.CallOpts) (*big.Int, error) {
	return callBig(v.contract, opts, "currentVaultFundsInvestedAmount")
}

func (v *Vault) Deposit(opts *bind.TransactOpts, assets *big.Int, receiver common.Address) (*types.Transaction, error) {
	return v.contract.Transact(opts, "deposit", assets, receiver)
}

// ParseDeposit decodes a Deposit event emitted by the vault.
func (v *Vault) ParseDeposit(log types.Log) (*VaultDeposit, error) {
	event := new(VaultDeposit)
	if err := v.contract.UnpackLog(event, "Deposit", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
