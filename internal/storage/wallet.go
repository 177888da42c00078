package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneta/internal/core"
	"moneta/internal/log"
)

// CreateWallet inserts a wallet with a zero balance unless one was seeded.
func (r *Repository) CreateWallet(ctx context.Context, w *core.Wallet) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, name, currency, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.UserID, w.Name, w.Currency, w.Balance.String(), now, now)
	if err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("wallet id: %w", err)
	}
	w.ID = id
	w.CreatedAt = now
	w.UpdatedAt = now

	slog.InfoContext(ctx, "Wallet created",
		log.FieldComponent, log.ComponentStorage,
		log.FieldWalletID, w.ID,
		"name", w.Name,
		log.FieldCurrency, w.Currency)
	return nil
}

// Wallet loads a wallet by id.
func (r *Repository) Wallet(ctx context.Context, id int64) (core.Wallet, error) {
	return getWallet(ctx, r.db, id)
}

// WalletTx loads a wallet inside an open transaction, so the read is covered
// by the transaction's write lock for check-then-debit sequences.
func (r *Repository) WalletTx(ctx context.Context, tx *sql.Tx, id int64) (core.Wallet, error) {
	return getWallet(ctx, tx, id)
}

func getWallet(ctx context.Context, q DBTX, id int64) (core.Wallet, error) {
	var (
		w       core.Wallet
		balance string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, currency, balance, created_at, updated_at
		FROM wallets WHERE id = ?`, id).
		Scan(&w.ID, &w.UserID, &w.Name, &w.Currency, &balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Wallet{}, core.ErrWalletNotFound
	}
	if err != nil {
		return core.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	w.Balance, err = core.MoneyFromString(balance)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("wallet %d balance %q: %w", w.ID, balance, err)
	}
	return w, nil
}

// ListWallets returns all wallets owned by a user.
func (r *Repository) ListWallets(ctx context.Context, userID int64) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, currency, balance, created_at, updated_at
		FROM wallets WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []core.Wallet
	for rows.Next() {
		var (
			w       core.Wallet
			balance string
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Currency, &balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		w.Balance, err = core.MoneyFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("wallet %d balance %q: %w", w.ID, balance, err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// ApplyBalanceDelta adds delta to a wallet balance in place. This is the
// single mutation site for wallet.balance; both the transaction ledger and
// the transfer engine go through it, never around it.
func (r *Repository) ApplyBalanceDelta(ctx context.Context, tx *sql.Tx, walletID int64, delta core.Money) error {
	w, err := getWallet(ctx, tx, walletID)
	if err != nil {
		return err
	}

	newBalance := w.Balance.Add(delta)
	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
		newBalance.String(), time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}
	return nil
}

// WalletTransactionCountTx counts transactions referencing the wallet.
func (r *Repository) WalletTransactionCountTx(ctx context.Context, tx *sql.Tx, walletID int64) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE wallet_id = ?`, walletID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count wallet transactions: %w", err)
	}
	return n, nil
}

// DeleteWalletTransactionsTx removes every transaction on the wallet,
// including transfer legs, together with their category links.
func (r *Repository) DeleteWalletTransactionsTx(ctx context.Context, tx *sql.Tx, walletID int64) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM transaction_categories WHERE transaction_id IN
			(SELECT id FROM transactions WHERE wallet_id = ?)`, walletID)
	if err != nil {
		return fmt.Errorf("delete wallet transaction categories: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE wallet_id = ?`, walletID); err != nil {
		return fmt.Errorf("delete wallet transactions: %w", err)
	}
	return nil
}

// DeleteWalletTx removes the wallet row itself.
func (r *Repository) DeleteWalletTx(ctx context.Context, tx *sql.Tx, walletID int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM wallets WHERE id = ?`, walletID)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrWalletNotFound
	}
	return nil
}

// MonthSummary sums live income and expense amounts for a wallet in one
// calendar month. Transfer legs count: they are real movements on the wallet.
func (r *Repository) MonthSummary(ctx context.Context, walletID int64, year, month int) (core.WalletSummary, error) {
	summary := core.WalletSummary{WalletID: walletID, Year: year, Month: month}

	rows, err := r.db.QueryContext(ctx, `
		SELECT type, amount FROM transactions
		WHERE wallet_id = ?
		  AND CAST(strftime('%Y', occurred_at) AS INTEGER) = ?
		  AND CAST(strftime('%m', occurred_at) AS INTEGER) = ?`,
		walletID, year, month)
	if err != nil {
		return summary, fmt.Errorf("month summary: %w", err)
	}
	defer rows.Close()

	income, expense := core.Zero, core.Zero
	for rows.Next() {
		var (
			typ    string
			amount string
		)
		if err := rows.Scan(&typ, &amount); err != nil {
			return summary, fmt.Errorf("scan summary row: %w", err)
		}
		m, err := core.MoneyFromString(amount)
		if err != nil {
			return summary, fmt.Errorf("summary amount %q: %w", amount, err)
		}
		if core.TransactionType(typ) == core.Income {
			income = income.Add(m)
		} else {
			expense = expense.Add(m)
		}
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}

	summary.Income = income
	summary.Expense = expense
	summary.Net = income.Sub(expense)
	return summary, nil
}
