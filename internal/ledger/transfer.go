package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/storage"

	"github.com/shopspring/decimal"
)

// TransferEngine performs a complete transfer as one unit of work: balance
// check, transfer row, both legs, both balance updates. Either everything
// commits or nothing does.
type TransferEngine struct {
	repo *storage.Repository
}

func NewTransferEngine(repo *storage.Repository) *TransferEngine {
	return &TransferEngine{repo: repo}
}

// TransferRequest describes a transfer. ExchangeRate must already be
// resolved by the caller: 1 for same-currency transfers, an explicit
// positive rate otherwise.
type TransferRequest struct {
	UserID       int64
	FromWalletID int64
	ToWalletID   int64
	AmountSent   core.Money
	ExchangeRate decimal.Decimal
	OccurredAt   time.Time
}

// Transfer debits the source wallet and credits the destination with
// AmountSent × ExchangeRate, creating the transfer row and its two legs.
//
// ErrInsufficientBalance is returned before any mutation; the balance check
// and the debit run under the same transaction's write lock, so a
// concurrent transfer cannot slip between them.
func (e *TransferEngine) Transfer(ctx context.Context, req TransferRequest) (*core.Transfer, error) {
	if !req.AmountSent.IsPositive() {
		return nil, core.ErrInvalidAmount
	}
	if !req.ExchangeRate.IsPositive() {
		return nil, core.ErrInvalidRate
	}
	if req.FromWalletID == req.ToWalletID {
		return nil, core.ErrSameWallet
	}
	if req.OccurredAt.IsZero() {
		req.OccurredAt = time.Now().UTC()
	}

	var transfer *core.Transfer
	err := e.repo.WithTx(ctx, func(tx *sql.Tx) error {
		from, err := e.repo.WalletTx(ctx, tx, req.FromWalletID)
		if err != nil {
			return err
		}
		to, err := e.repo.WalletTx(ctx, tx, req.ToWalletID)
		if err != nil {
			return err
		}

		if from.Balance.LessThan(req.AmountSent) {
			return core.ErrInsufficientBalance
		}

		received := req.AmountSent.Convert(req.ExchangeRate)

		t := &core.Transfer{
			UserID:         req.UserID,
			FromWalletID:   from.ID,
			ToWalletID:     to.ID,
			AmountSent:     req.AmountSent,
			AmountReceived: received,
			ExchangeRate:   req.ExchangeRate,
		}
		if err := e.repo.InsertTransferTx(ctx, tx, t); err != nil {
			return err
		}

		// The legs carry the transfer id, which keeps the ledger's own
		// balance path away from them; the engine is the sole writer for
		// transfer-driven balance changes.
		out := &core.Transaction{
			UserID:      req.UserID,
			WalletID:    &from.ID,
			Type:        core.Expense,
			Amount:      req.AmountSent,
			OccurredAt:  req.OccurredAt,
			Description: fmt.Sprintf("Transfer to %s", to.Name),
			TransferID:  &t.ID,
		}
		if err := e.repo.InsertTransactionTx(ctx, tx, out); err != nil {
			return err
		}
		if err := e.repo.ApplyBalanceDelta(ctx, tx, from.ID, req.AmountSent.Neg()); err != nil {
			return err
		}

		in := &core.Transaction{
			UserID:      req.UserID,
			WalletID:    &to.ID,
			Type:        core.Income,
			Amount:      received,
			OccurredAt:  req.OccurredAt,
			Description: fmt.Sprintf("Transfer from %s", from.Name),
			TransferID:  &t.ID,
		}
		if err := e.repo.InsertTransactionTx(ctx, tx, in); err != nil {
			return err
		}
		if err := e.repo.ApplyBalanceDelta(ctx, tx, to.ID, received); err != nil {
			return err
		}

		transfer = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	slog.InfoContext(ctx, "Transfer completed",
		log.FieldComponent, log.ComponentTransfer,
		log.FieldOperation, log.OpTransfer,
		log.FieldTransferID, transfer.ID,
		"from_wallet", transfer.FromWalletID,
		"to_wallet", transfer.ToWalletID,
		"amount_sent", transfer.AmountSent.String(),
		"amount_received", transfer.AmountReceived.String(),
		"exchange_rate", transfer.ExchangeRate.String())
	return transfer, nil
}
