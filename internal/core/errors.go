package core

import "errors"

// Validation errors.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidPeriod      = errors.New("invalid recurrence period")
	ErrInvalidInterval    = errors.New("invalid recurrence interval")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrInvalidRate        = errors.New("invalid exchange rate")
	ErrCurrencyMismatch   = errors.New("currency mismatch: explicit exchange rate required")
	ErrSameWallet         = errors.New("source and destination wallet are the same")
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 100 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEndsBeforeStart    = errors.New("end date before first occurrence")
)

// Domain errors surfaced by ledger and scheduler operations.
var (
	// ErrInsufficientBalance rejects a transfer whose source wallet cannot
	// cover the amount. Nothing is mutated on this path.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferLeg rejects direct mutation of a transaction that belongs
	// to a transfer; legs change only through transfer-level operations.
	ErrTransferLeg = errors.New("transaction is a transfer leg")

	// ErrWalletHasTransactions rejects a non-cascading wallet delete while
	// transactions still reference the wallet.
	ErrWalletHasTransactions = errors.New("wallet still has transactions")

	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrRuleNotFound        = errors.New("recurring rule not found")
)
