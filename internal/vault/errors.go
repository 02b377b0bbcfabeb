package vault

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrApprovalFailed      = errors.New("approval failed")
	ErrDepositFailed       = errors.New("deposit failed")
	ErrNetwork             = errors.New("network failure")
	ErrSignerMismatch      = errors.New("signer does not control account")
	ErrDecimalsMismatch    = errors.New("token decimals mismatch")
)
