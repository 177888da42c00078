package core

// WalletSummary aggregates a wallet's activity for one calendar month.
type WalletSummary struct {
	WalletID int64
	Year     int
	Month    int
	Income   Money
	Expense  Money
	Net      Money
}
