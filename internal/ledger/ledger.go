// Package ledger keeps wallet balances consistent with transaction history.
//
// Two components live here: the balance ledger, which applies signed deltas
// as ordinary transactions are created, updated and deleted, and the
// transfer engine, which moves money between two wallets as two linked legs
// in one unit of work. Both funnel every balance write through the storage
// layer's ApplyBalanceDelta so a wallet's balance has exactly one writer per
// logical change: transfer legs are skipped by the ledger path because the
// engine has already applied their deltas itself.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"moneta/internal/core"
	"moneta/internal/log"
	"moneta/internal/storage"
)

// Ledger owns the transaction lifecycle. It is the only entry point for
// creating, updating and deleting ordinary transactions; handlers never
// reach into storage for these.
type Ledger struct {
	repo *storage.Repository
}

func New(repo *storage.Repository) *Ledger {
	return &Ledger{repo: repo}
}

// CreateTransaction inserts the transaction and applies its signed amount to
// the wallet, if any. Transactions without a wallet are recorded with no
// balance effect. Transfer legs never come through here; the engine inserts
// them itself.
func (l *Ledger) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	err := l.repo.WithTx(ctx, func(tx *sql.Tx) error {
		return l.CreateTransactionTx(ctx, tx, t)
	})
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpCreate,
		log.FieldTransactionID, t.ID,
		"type", t.Type,
		log.FieldAmount, t.Amount.String(),
		log.FieldWalletID, t.WalletID)
	return nil
}

// CreateTransactionTx is CreateTransaction inside a caller-owned unit of
// work, for flows that pair the insert with other writes, like the scheduler
// advancing a rule's schedule in the same transaction as the occurrence it
// creates.
func (l *Ledger) CreateTransactionTx(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	// Resolve the wallet before inserting so an unknown id surfaces as
	// ErrWalletNotFound, not a raw FK failure from the insert.
	if t.WalletID != nil {
		if _, err := l.repo.WalletTx(ctx, tx, *t.WalletID); err != nil {
			return err
		}
	}
	if err := l.repo.InsertTransactionTx(ctx, tx, t); err != nil {
		return err
	}
	return l.applyEffect(ctx, tx, *t, false)
}

// UpdateTransaction rewrites a transaction, reversing the pre-image's
// balance effect on the wallet that held it and applying the new effect to
// the (possibly different) current wallet. Transfer legs are rejected:
// they change only through transfer-level operations.
func (l *Ledger) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}

	err := l.repo.WithTx(ctx, func(tx *sql.Tx) error {
		prior, err := l.repo.TransactionTx(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if prior.IsTransferLeg() {
			return core.ErrTransferLeg
		}

		// Ownership and transfer linkage are not updatable.
		t.UserID = prior.UserID
		t.TransferID = nil

		if t.WalletID != nil {
			if _, err := l.repo.WalletTx(ctx, tx, *t.WalletID); err != nil {
				return err
			}
		}

		if err := l.applyEffect(ctx, tx, prior, true); err != nil {
			return err
		}
		if err := l.repo.UpdateTransactionTx(ctx, tx, t); err != nil {
			return err
		}
		return l.applyEffect(ctx, tx, *t, false)
	})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpUpdate,
		log.FieldTransactionID, t.ID,
		"type", t.Type,
		log.FieldAmount, t.Amount.String(),
		log.FieldWalletID, t.WalletID)
	return nil
}

// DeleteTransaction removes a transaction and reverses its balance effect.
// Deleting one leg of a transfer is rejected.
func (l *Ledger) DeleteTransaction(ctx context.Context, id int64) error {
	err := l.repo.WithTx(ctx, func(tx *sql.Tx) error {
		prior, err := l.repo.TransactionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if prior.IsTransferLeg() {
			return core.ErrTransferLeg
		}

		if err := l.applyEffect(ctx, tx, prior, true); err != nil {
			return err
		}
		return l.repo.DeleteTransactionTx(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpDelete,
		log.FieldTransactionID, id)
	return nil
}

// DeleteWallet removes a wallet. Without cascade it fails while transactions
// still reference the wallet; with cascade the wallet's transactions and
// transfers go first, in the same unit of work. Each transfer is unwound on
// the counterparty side too: its leg is removed and the leg's balance effect
// reversed, so the surviving wallet's balance still matches its history.
func (l *Ledger) DeleteWallet(ctx context.Context, id int64, cascade bool) error {
	err := l.repo.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := l.repo.WalletTx(ctx, tx, id); err != nil {
			return err
		}

		n, err := l.repo.WalletTransactionCountTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			if !cascade {
				return core.ErrWalletHasTransactions
			}
			if err := l.deleteWalletTransfers(ctx, tx, id); err != nil {
				return err
			}
			if err := l.repo.DeleteWalletTransactionsTx(ctx, tx, id); err != nil {
				return err
			}
		}
		return l.repo.DeleteWalletTx(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}

	slog.InfoContext(ctx, "Wallet deleted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldWalletID, id,
		"cascade", cascade)
	return nil
}

// deleteWalletTransfers removes every transfer the wallet took part in,
// together with both legs. Counterparty legs get their balance effect
// reversed before removal; the doomed wallet's own legs need no reversal.
func (l *Ledger) deleteWalletTransfers(ctx context.Context, tx *sql.Tx, walletID int64) error {
	transfers, err := l.repo.WalletTransfersTx(ctx, tx, walletID)
	if err != nil {
		return err
	}
	for _, tr := range transfers {
		legs, err := l.repo.TransferLegsTx(ctx, tx, tr.ID)
		if err != nil {
			return err
		}
		for _, leg := range legs {
			if leg.WalletID != nil && *leg.WalletID != walletID {
				if err := l.repo.ApplyBalanceDelta(ctx, tx, *leg.WalletID, leg.Signed().Neg()); err != nil {
					return err
				}
			}
			if err := l.repo.DeleteTransactionTx(ctx, tx, leg.ID); err != nil {
				return err
			}
		}
		if err := l.repo.DeleteTransferTx(ctx, tx, tr.ID); err != nil {
			return err
		}
	}
	return nil
}

// applyEffect applies (or, inverted, reverses) a transaction's signed amount
// to its wallet. No wallet or a transfer linkage means no effect; this path
// never validates and never rejects.
func (l *Ledger) applyEffect(ctx context.Context, tx *sql.Tx, t core.Transaction, invert bool) error {
	if t.WalletID == nil || t.IsTransferLeg() {
		return nil
	}
	delta := t.Signed()
	if invert {
		delta = delta.Neg()
	}
	return l.repo.ApplyBalanceDelta(ctx, tx, *t.WalletID, delta)
}
