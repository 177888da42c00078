package ledger

import (
	"context"
	"testing"
	"time"

	"moneta/internal/core"
	"moneta/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*storage.Repository, *Ledger) {
	t.Helper()
	repo, err := storage.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, New(repo)
}

func newTestWallet(t *testing.T, repo *storage.Repository, balance core.Money) core.Wallet {
	t.Helper()
	w := core.Wallet{UserID: 1, Name: "Checking", Currency: "EUR", Balance: balance}
	require.NoError(t, repo.CreateWallet(context.Background(), &w))
	return w
}

func walletBalance(t *testing.T, repo *storage.Repository, id int64) string {
	t.Helper()
	w, err := repo.Wallet(context.Background(), id)
	require.NoError(t, err)
	return w.Balance.String()
}

func TestCreateTransactionAppliesSignedAmount(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	w := newTestWallet(t, repo, core.NewMoney(100, 0))

	income := core.Transaction{
		UserID:     1,
		WalletID:   &w.ID,
		Type:       core.Income,
		Amount:     core.NewMoney(40, 50),
		OccurredAt: time.Now(),
	}
	require.NoError(t, l.CreateTransaction(ctx, &income))
	assert.Equal(t, "140.50", walletBalance(t, repo, w.ID))

	expense := core.Transaction{
		UserID:     1,
		WalletID:   &w.ID,
		Type:       core.Expense,
		Amount:     core.NewMoney(15, 25),
		OccurredAt: time.Now(),
	}
	require.NoError(t, l.CreateTransaction(ctx, &expense))
	assert.Equal(t, "125.25", walletBalance(t, repo, w.ID))
}

func TestCreateTransactionWithoutWalletIsNoOp(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	w := newTestWallet(t, repo, core.NewMoney(100, 0))

	tx := core.Transaction{
		UserID:     1,
		Type:       core.Expense,
		Amount:     core.NewMoney(10, 0),
		OccurredAt: time.Now(),
	}
	require.NoError(t, l.CreateTransaction(ctx, &tx))
	assert.Equal(t, "100.00", walletBalance(t, repo, w.ID))
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	w := newTestWallet(t, repo, core.Zero)

	tx := core.Transaction{
		UserID:     1,
		WalletID:   &w.ID,
		Type:       "refund",
		Amount:     core.NewMoney(10, 0),
		OccurredAt: time.Now(),
	}
	err := l.CreateTransaction(ctx, &tx)
	assert.ErrorIs(t, err, core.ErrInvalidType)
	assert.Equal(t, "0.00", walletBalance(t, repo, w.ID))
}

func TestUpdateTransactionReappliesDelta(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	w := newTestWallet(t, repo, core.NewMoney(100, 0))

	tx := core.Transaction{
		UserID:     1,
		WalletID:   &w.ID,
		Type:       core.Expense,
		Amount:     core.NewMoney(30, 0),
		OccurredAt: time.Now(),
	}
	require.NoError(t, l.CreateTransaction(ctx, &tx))
	assert.Equal(t, "70.00", walletBalance(t, repo, w.ID))

	// Amount change: inverse of the old delta, then the new one.
	tx.Amount = core.NewMoney(50, 0)
	require.NoError(t, l.UpdateTransaction(ctx, &tx))
	assert.Equal(t, "50.00", walletBalance(t, repo, w.ID))

	// Type flip: expense 50 becomes income 50.
	tx.Type = core.Income
	require.NoError(t, l.UpdateTransaction(ctx, &tx))
	assert.Equal(t, "150.00", walletBalance(t, repo, w.ID))
}

func TestUpdateTransactionMovesBetweenWallets(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	a := newTestWallet(t, repo, core.NewMoney(100, 0))
	b := newTestWallet(t, repo, core.NewMoney(100, 0))

	tx := core.Transaction{
		UserID:     1,
		WalletID:   &a.ID,
		Type:       core.Expense,
		Amount:     core.NewMoney(20, 0),
		OccurredAt: time.Now(),
	}
	require.NoError(t, l.CreateTransaction(ctx, &tx))
	assert.Equal(t, "80.00", walletBalance(t, repo, a.ID))

	tx.WalletID = &b.ID
	require.NoError(t, l.UpdateTransaction(ctx, &tx))
	assert.Equal(t, "100.00", walletBalance(t, repo, a.ID))
	assert.Equal(t, "80.00", walletBalance(t, repo, b.ID))
}

func TestDeleteTransactionRoundTrip(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	w := newTestWallet(t, repo, core.NewMoney(500, 0))

	tx := core.Transaction{
		UserID:     1,
		WalletID:   &w.ID,
		Type:       core.Expense,
		Amount:     core.NewMoney(123, 45),
		OccurredAt: time.Now(),
	}
	require.NoError(t, l.CreateTransaction(ctx, &tx))
	require.NoError(t, l.DeleteTransaction(ctx, tx.ID))

	// Create then delete leaves the balance exactly where it started.
	assert.Equal(t, "500.00", walletBalance(t, repo, w.ID))

	_, err := repo.Transaction(ctx, tx.ID)
	assert.ErrorIs(t, err, core.ErrTransactionNotFound)
}

func TestBalanceConservation(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	w := newTestWallet(t, repo, core.Zero)

	amounts := []struct {
		typ   core.TransactionType
		units int64
		cents int64
	}{
		{core.Income, 1000, 0},
		{core.Expense, 249, 99},
		{core.Income, 12, 34},
		{core.Expense, 0, 1},
		{core.Income, 3, 33},
	}

	running := core.Zero
	var ids []int64
	for _, a := range amounts {
		tx := core.Transaction{
			UserID:     1,
			WalletID:   &w.ID,
			Type:       a.typ,
			Amount:     core.NewMoney(a.units, a.cents),
			OccurredAt: time.Now(),
		}
		require.NoError(t, l.CreateTransaction(ctx, &tx))
		running = running.Add(tx.Signed())
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, running.String(), walletBalance(t, repo, w.ID))

	// Deleting a middle entry keeps the invariant.
	victim, err := repo.Transaction(ctx, ids[1])
	require.NoError(t, err)
	require.NoError(t, l.DeleteTransaction(ctx, victim.ID))
	running = running.Sub(victim.Signed())
	assert.Equal(t, running.String(), walletBalance(t, repo, w.ID))
}

func TestTransferLegCannotBeMutatedDirectly(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	from := newTestWallet(t, repo, core.NewMoney(1000, 0))
	to := newTestWallet(t, repo, core.Zero)

	engine := NewTransferEngine(repo)
	tr, err := engine.Transfer(ctx, TransferRequest{
		UserID:       1,
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		AmountSent:   core.NewMoney(100, 0),
		ExchangeRate: one(),
	})
	require.NoError(t, err)

	legs, err := repo.TransferLegs(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, legs, 2)

	for _, leg := range legs {
		leg.Amount = core.NewMoney(999, 0)
		assert.ErrorIs(t, l.UpdateTransaction(ctx, &leg), core.ErrTransferLeg)
		assert.ErrorIs(t, l.DeleteTransaction(ctx, leg.ID), core.ErrTransferLeg)
	}

	// Nothing moved.
	assert.Equal(t, "900.00", walletBalance(t, repo, from.ID))
	assert.Equal(t, "100.00", walletBalance(t, repo, to.ID))
}

func TestDeleteWallet(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()

	t.Run("refuses while transactions exist", func(t *testing.T) {
		w := newTestWallet(t, repo, core.Zero)
		tx := core.Transaction{
			UserID:     1,
			WalletID:   &w.ID,
			Type:       core.Income,
			Amount:     core.NewMoney(5, 0),
			OccurredAt: time.Now(),
		}
		require.NoError(t, l.CreateTransaction(ctx, &tx))

		assert.ErrorIs(t, l.DeleteWallet(ctx, w.ID, false), core.ErrWalletHasTransactions)

		_, err := repo.Wallet(ctx, w.ID)
		assert.NoError(t, err)
	})

	t.Run("cascade removes transactions first", func(t *testing.T) {
		w := newTestWallet(t, repo, core.Zero)
		tx := core.Transaction{
			UserID:     1,
			WalletID:   &w.ID,
			Type:       core.Income,
			Amount:     core.NewMoney(5, 0),
			OccurredAt: time.Now(),
		}
		require.NoError(t, l.CreateTransaction(ctx, &tx))

		require.NoError(t, l.DeleteWallet(ctx, w.ID, true))

		_, err := repo.Wallet(ctx, w.ID)
		assert.ErrorIs(t, err, core.ErrWalletNotFound)
		_, err = repo.Transaction(ctx, tx.ID)
		assert.ErrorIs(t, err, core.ErrTransactionNotFound)
	})

	t.Run("empty wallet deletes without cascade", func(t *testing.T) {
		w := newTestWallet(t, repo, core.Zero)
		require.NoError(t, l.DeleteWallet(ctx, w.ID, false))
	})

	t.Run("refuses transfer history without cascade", func(t *testing.T) {
		from := newTestWallet(t, repo, core.NewMoney(200, 0))
		to := newTestWallet(t, repo, core.Zero)

		_, err := NewTransferEngine(repo).Transfer(ctx, TransferRequest{
			UserID:       1,
			FromWalletID: from.ID,
			ToWalletID:   to.ID,
			AmountSent:   core.NewMoney(50, 0),
			ExchangeRate: one(),
		})
		require.NoError(t, err)

		assert.ErrorIs(t, l.DeleteWallet(ctx, from.ID, false), core.ErrWalletHasTransactions)
	})

	t.Run("cascade unwinds transfer history", func(t *testing.T) {
		from := newTestWallet(t, repo, core.NewMoney(1000, 0))
		to := newTestWallet(t, repo, core.NewMoney(50, 0))

		tr, err := NewTransferEngine(repo).Transfer(ctx, TransferRequest{
			UserID:       1,
			FromWalletID: from.ID,
			ToWalletID:   to.ID,
			AmountSent:   core.NewMoney(100, 0),
			ExchangeRate: one(),
		})
		require.NoError(t, err)
		require.Equal(t, "150.00", walletBalance(t, repo, to.ID))

		require.NoError(t, l.DeleteWallet(ctx, from.ID, true))

		_, err = repo.Wallet(ctx, from.ID)
		assert.ErrorIs(t, err, core.ErrWalletNotFound)
		_, err = repo.Transfer(ctx, tr.ID)
		assert.ErrorIs(t, err, core.ErrTransferNotFound)

		// Both legs are gone and the counterparty's credit is reversed.
		legs, err := repo.TransferLegs(ctx, tr.ID)
		require.NoError(t, err)
		assert.Empty(t, legs)
		assert.Equal(t, "50.00", walletBalance(t, repo, to.ID))
	})

	t.Run("cascade keeps an incoming-transfer wallet consistent", func(t *testing.T) {
		from := newTestWallet(t, repo, core.NewMoney(300, 0))
		to := newTestWallet(t, repo, core.Zero)

		_, err := NewTransferEngine(repo).Transfer(ctx, TransferRequest{
			UserID:       1,
			FromWalletID: from.ID,
			ToWalletID:   to.ID,
			AmountSent:   core.NewMoney(75, 0),
			ExchangeRate: one(),
		})
		require.NoError(t, err)

		// Deleting the receiving side hands the debit back to the sender.
		require.NoError(t, l.DeleteWallet(ctx, to.ID, true))
		assert.Equal(t, "300.00", walletBalance(t, repo, from.ID))
	})
}

func TestCreateTransactionUnknownWallet(t *testing.T) {
	repo, l := newTestLedger(t)
	ctx := context.Background()
	w := newTestWallet(t, repo, core.NewMoney(100, 0))

	missing := w.ID + 100
	tx := core.Transaction{
		UserID:     1,
		WalletID:   &missing,
		Type:       core.Expense,
		Amount:     core.NewMoney(10, 0),
		OccurredAt: time.Now(),
	}
	assert.ErrorIs(t, l.CreateTransaction(ctx, &tx), core.ErrWalletNotFound)

	// An update moving an existing transaction onto an unknown wallet is
	// rejected the same way, with no balance drift.
	tx.WalletID = &w.ID
	require.NoError(t, l.CreateTransaction(ctx, &tx))
	tx.WalletID = &missing
	assert.ErrorIs(t, l.UpdateTransaction(ctx, &tx), core.ErrWalletNotFound)
	assert.Equal(t, "90.00", walletBalance(t, repo, w.ID))
}
