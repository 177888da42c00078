package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moneta/internal/core"

	"github.com/shopspring/decimal"
)

// InsertTransferTx inserts the transfer row; the engine inserts the two legs
// afterwards inside the same database transaction.
func (r *Repository) InsertTransferTx(ctx context.Context, tx *sql.Tx, t *core.Transfer) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transfers (user_id, from_wallet_id, to_wallet_id,
			amount_sent, amount_received, exchange_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.FromWalletID, t.ToWalletID,
		t.AmountSent.String(), t.AmountReceived.String(), t.ExchangeRate.String(), now)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transfer id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	return nil
}

// DeleteTransferTx removes the transfer row. Callers delete the legs first;
// the legs' FK on transfer_id would abort this otherwise.
func (r *Repository) DeleteTransferTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrTransferNotFound
	}
	return nil
}

// WalletTransfersTx returns every transfer the wallet participates in, on
// either side, inside an open transaction.
func (r *Repository) WalletTransfersTx(ctx context.Context, tx *sql.Tx, walletID int64) ([]core.Transfer, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, from_wallet_id, to_wallet_id,
			amount_sent, amount_received, exchange_rate, created_at
		FROM transfers WHERE from_wallet_id = ? OR to_wallet_id = ? ORDER BY id`,
		walletID, walletID)
	if err != nil {
		return nil, fmt.Errorf("wallet transfers: %w", err)
	}
	defer rows.Close()

	var out []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Transfer loads a transfer by id.
func (r *Repository) Transfer(ctx context.Context, id int64) (core.Transfer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, from_wallet_id, to_wallet_id,
			amount_sent, amount_received, exchange_rate, created_at
		FROM transfers WHERE id = ?`, id)
	return scanTransfer(row)
}

// ListTransfers returns a user's transfers, newest first.
func (r *Repository) ListTransfers(ctx context.Context, userID int64, limit int) ([]core.Transfer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, from_wallet_id, to_wallet_id,
			amount_sent, amount_received, exchange_rate, created_at
		FROM transfers WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransfer(row rowScanner) (core.Transfer, error) {
	var (
		t                    core.Transfer
		sent, received, rate string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.FromWalletID, &t.ToWalletID,
		&sent, &received, &rate, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transfer{}, core.ErrTransferNotFound
	}
	if err != nil {
		return core.Transfer{}, fmt.Errorf("scan transfer: %w", err)
	}

	if t.AmountSent, err = core.MoneyFromString(sent); err != nil {
		return core.Transfer{}, fmt.Errorf("transfer %d amount_sent %q: %w", t.ID, sent, err)
	}
	if t.AmountReceived, err = core.MoneyFromString(received); err != nil {
		return core.Transfer{}, fmt.Errorf("transfer %d amount_received %q: %w", t.ID, received, err)
	}
	if t.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return core.Transfer{}, fmt.Errorf("transfer %d exchange_rate %q: %w", t.ID, rate, err)
	}
	return t, nil
}
