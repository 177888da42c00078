package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moneta/internal/core"
)

const transactionColumns = `id, user_id, wallet_id, type, amount, occurred_at,
	description, party_id, transfer_id, created_at, updated_at`

// InsertTransactionTx inserts a transaction row and its category links,
// filling in ID and timestamps on the passed entity.
func (r *Repository) InsertTransactionTx(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, wallet_id, type, amount, occurred_at,
			description, party_id, transfer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, nullID(t.WalletID), string(t.Type), t.Amount.String(),
		t.OccurredAt.UTC(), t.Description, nullID(t.PartyID), nullID(t.TransferID),
		now, now)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now

	return r.replaceTransactionCategories(ctx, tx, t.ID, t.CategoryIDs)
}

// UpdateTransactionTx rewrites the mutable columns of a transaction row and
// replaces its category links.
func (r *Repository) UpdateTransactionTx(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET wallet_id = ?, type = ?, amount = ?, occurred_at = ?,
			description = ?, party_id = ?, updated_at = ?
		WHERE id = ?`,
		nullID(t.WalletID), string(t.Type), t.Amount.String(), t.OccurredAt.UTC(),
		t.Description, nullID(t.PartyID), now, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrTransactionNotFound
	}
	t.UpdatedAt = now

	return r.replaceTransactionCategories(ctx, tx, t.ID, t.CategoryIDs)
}

// DeleteTransactionTx removes the row and its category links.
func (r *Repository) DeleteTransactionTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_categories WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction categories: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrTransactionNotFound
	}
	return nil
}

// Transaction loads a transaction with its category ids.
func (r *Repository) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	return r.getTransaction(ctx, r.db, id)
}

// TransactionTx loads a transaction inside an open transaction; the ledger
// uses it to read pre-images before applying inverse deltas.
func (r *Repository) TransactionTx(ctx context.Context, tx *sql.Tx, id int64) (core.Transaction, error) {
	return r.getTransaction(ctx, tx, id)
}

func (r *Repository) getTransaction(ctx context.Context, q DBTX, id int64) (core.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, err
	}

	t.CategoryIDs, err = transactionCategories(ctx, q, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                  core.Transaction
		walletID, partyID  sql.NullInt64
		transferID         sql.NullInt64
		typ, amount        string
	)
	err := row.Scan(&t.ID, &t.UserID, &walletID, &typ, &amount, &t.OccurredAt,
		&t.Description, &partyID, &transferID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	t.Type = core.TransactionType(typ)
	t.WalletID = idPtr(walletID)
	t.PartyID = idPtr(partyID)
	t.TransferID = idPtr(transferID)
	t.Amount, err = core.MoneyFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", t.ID, amount, err)
	}
	return t, nil
}

// ListTransactions returns a user's transactions, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].CategoryIDs, err = transactionCategories(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TransferLegs returns the transactions that make up a transfer.
func (r *Repository) TransferLegs(ctx context.Context, transferID int64) ([]core.Transaction, error) {
	return transferLegs(ctx, r.db, transferID)
}

// TransferLegsTx is TransferLegs inside an open transaction; the ledger uses
// it while unwinding a wallet's transfer history.
func (r *Repository) TransferLegsTx(ctx context.Context, tx *sql.Tx, transferID int64) ([]core.Transaction, error) {
	return transferLegs(ctx, tx, transferID)
}

func transferLegs(ctx context.Context, q DBTX, transferID int64) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE transfer_id = ? ORDER BY id`, transferID)
	if err != nil {
		return nil, fmt.Errorf("transfer legs: %w", err)
	}
	defer rows.Close()

	var legs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		legs = append(legs, t)
	}
	return legs, rows.Err()
}

func transactionCategories(ctx context.Context, q DBTX, txID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT category_id FROM transaction_categories WHERE transaction_id = ? ORDER BY category_id`, txID)
	if err != nil {
		return nil, fmt.Errorf("transaction categories: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) replaceTransactionCategories(ctx context.Context, tx *sql.Tx, txID int64, categoryIDs []int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_categories WHERE transaction_id = ?`, txID); err != nil {
		return fmt.Errorf("clear transaction categories: %w", err)
	}
	for _, cid := range categoryIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transaction_categories (transaction_id, category_id) VALUES (?, ?)`,
			txID, cid); err != nil {
			return fmt.Errorf("link category %d: %w", cid, err)
		}
	}
	return nil
}
