package core

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Daily   RecurrencePeriod = "daily"
	Weekly  RecurrencePeriod = "weekly"
	Monthly RecurrencePeriod = "monthly"
	Yearly  RecurrencePeriod = "yearly"
)

type (
	TransactionType  string
	RecurrencePeriod string

	// Wallet holds a balance in a single currency. The balance is the
	// running sum of all live non-transfer-leg transactions against it and
	// is only ever written by the ledger package.
	Wallet struct {
		ID        int64
		UserID    int64
		Name      string
		Currency  string
		Balance   Money
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Transaction is a signed monetary movement against a wallet. The
	// amount is always a positive magnitude; direction comes from Type.
	// TransferID is set only when the transaction is one leg of a Transfer.
	Transaction struct {
		ID          int64
		UserID      int64
		WalletID    *int64
		Type        TransactionType
		Amount      Money
		OccurredAt  time.Time
		Description string
		PartyID     *int64
		TransferID  *int64
		CategoryIDs []int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Transfer moves money between two wallets as two linked transaction
	// legs created in one unit of work.
	Transfer struct {
		ID             int64
		UserID         int64
		FromWalletID   int64
		ToWalletID     int64
		AmountSent     Money
		AmountReceived Money
		ExchangeRate   decimal.Decimal
		CreatedAt      time.Time
	}

	// RecurringRule replicates its original transaction on a schedule.
	// Exactly one rule exists per original transaction.
	RecurringRule struct {
		ID              int64
		UserID          int64
		TransactionID   int64
		Period          RecurrencePeriod
		Interval        int
		EndsAt          *time.Time
		NextScheduledAt time.Time
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// Party is a counterparty a transaction can be tagged with.
	Party struct {
		ID     int64
		UserID int64
		Name   string
	}

	// Category is a user-defined transaction label.
	Category struct {
		ID     int64
		UserID int64
		Name   string
	}
)

// Signed returns the amount with the direction applied: positive for income,
// negative for expense.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// IsTransferLeg reports whether the transaction belongs to a transfer. Legs
// are excluded from the ledger's balance path and from direct mutation.
func (t Transaction) IsTransferLeg() bool {
	return t.TransferID != nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p RecurrencePeriod) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// ValidCurrency checks for an ISO-4217-like three-letter uppercase code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if !unicode.IsUpper(r) || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	if len(w.Name) > 100 {
		return ErrNameTooLong
	}
	if !ValidCurrency(w.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.OccurredAt.IsZero() {
		return ErrInvalidDate
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if !r.Period.Valid() {
		return ErrInvalidPeriod
	}
	if r.Interval < 1 {
		return ErrInvalidInterval
	}
	if r.EndsAt != nil && r.NextScheduledAt.After(*r.EndsAt) {
		return ErrEndsBeforeStart
	}
	return nil
}

// Expired reports whether the rule's end date has passed at the given time.
// Rules without an end date never expire.
func (r RecurringRule) Expired(now time.Time) bool {
	return r.EndsAt != nil && r.EndsAt.Before(now)
}
