package vault

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultdeposit/internal/contracts"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// Token is the part of the ERC-20 surface the depositor needs.
type Token interface {
	Address() common.Address
	BalanceOf(opts *bind.CallOpts, owner common.Address) (*big.Int, error)
	Allowance(opts *bind.CallOpts, owner, spender common.Address) (*big.Int, error)
	Decimals(opts *bind.CallOpts) (uint8, error)
	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// Vault is the deposit vault contract.
type Vault interface {
	Address() common.Address
	TotalAssets(opts *bind.CallOpts) (*big.Int, error)
	MaxDeposit(opts *bind.CallOpts, receiver common.Address) (*big.Int, error)
	BalanceOf(opts *bind.CallOpts, owner common.Address) (*big.Int, error)
	LatestVaultValue(opts *bind.CallOpts) (*big.Int, error)
	CurrentVaultFundsInvestedAmount(opts *bind.CallOpts) (*big.Int, error)
	Deposit(opts *bind.TransactOpts, assets *big.Int, receiver common.Address) (*types.Transaction, error)
	ParseDeposit(log types.Log) (*contracts.VaultDeposit, error)
}

// Backend broadcasts signed transactions and waits for them to be mined.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Signer is a signing capability for one account. Implementations may hold a
// key in memory, decrypt one per call, or delegate to a remote service.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Observer receives every lifecycle transition of approval and deposit
// transactions.
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}
