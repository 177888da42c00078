package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"moneta/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewMemoryRepository()
	require.NoError(t, err)

	s := NewServer("127.0.0.1:0", repo, Options{})
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		repo.Close()
	})
	return s
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createWallet(t *testing.T, s *Server, name, currency, balance string) walletResponse {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/api/wallets", map[string]any{
		"name": name, "currency": currency, "balance": balance,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[walletResponse](t, rec)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWalletLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := createWallet(t, s, "Checking", "EUR", "150.00")
	assert.Equal(t, "150.00", w.Balance)
	assert.Equal(t, "EUR", w.Currency)

	rec := doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/wallets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]walletResponse](t, rec), 1)

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/wallets/%d", w.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateWalletRejectsBadCurrency(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/wallets", map[string]any{
		"name": "Checking", "currency": "euro",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTransactionAffectsBalance(t *testing.T) {
	s := newTestServer(t)
	w := createWallet(t, s, "Checking", "EUR", "100.00")

	rec := doRequest(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"wallet_id": w.ID, "type": "expense", "amount": "30.50", "description": "Groceries",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/wallets/%d", w.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "69.50", decodeBody[walletResponse](t, rec).Balance)
}

func TestUpdateTransferLegRejected(t *testing.T) {
	s := newTestServer(t)
	from := createWallet(t, s, "Checking", "EUR", "300.00")
	to := createWallet(t, s, "Savings", "EUR", "0.00")

	rec := doRequest(t, s, http.MethodPost, "/api/transfers", map[string]any{
		"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, s, http.MethodGet, "/api/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	legs := decodeBody[[]transactionResponse](t, rec)
	require.Len(t, legs, 2)

	rec = doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/transactions/%d", legs[0].ID), map[string]any{
		"wallet_id": from.ID, "type": "expense", "amount": "1.00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", legs[0].ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransferSameCurrency(t *testing.T) {
	s := newTestServer(t)
	from := createWallet(t, s, "Checking", "EUR", "1000.00")
	to := createWallet(t, s, "Savings", "EUR", "0.00")

	rec := doRequest(t, s, http.MethodPost, "/api/transfers", map[string]any{
		"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tr := decodeBody[transferResponse](t, rec)
	assert.Equal(t, "100.00", tr.AmountSent)
	assert.Equal(t, "100.00", tr.AmountReceived)

	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/wallets/%d", from.ID), nil)
	assert.Equal(t, "900.00", decodeBody[walletResponse](t, rec).Balance)
	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/wallets/%d", to.ID), nil)
	assert.Equal(t, "100.00", decodeBody[walletResponse](t, rec).Balance)
}

func TestTransferCrossCurrency(t *testing.T) {
	s := newTestServer(t)
	from := createWallet(t, s, "Checking", "EUR", "500.00")
	to := createWallet(t, s, "Travel", "USD", "0.00")

	// Missing rate across currencies is rejected.
	rec := doRequest(t, s, http.MethodPost, "/api/transfers", map[string]any{
		"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": "100.00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/transfers", map[string]any{
		"from_wallet_id": from.ID, "to_wallet_id": to.ID,
		"amount": "100.00", "exchange_rate": "1.08",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tr := decodeBody[transferResponse](t, rec)
	assert.Equal(t, "108.00", tr.AmountReceived)
}

func TestTransferInsufficientBalance(t *testing.T) {
	s := newTestServer(t)
	from := createWallet(t, s, "Checking", "EUR", "50.00")
	to := createWallet(t, s, "Savings", "EUR", "0.00")

	rec := doRequest(t, s, http.MethodPost, "/api/transfers", map[string]any{
		"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": "100.00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Nothing moved.
	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/wallets/%d", from.ID), nil)
	assert.Equal(t, "50.00", decodeBody[walletResponse](t, rec).Balance)
}

func TestDeleteWalletWithTransactions(t *testing.T) {
	s := newTestServer(t)
	w := createWallet(t, s, "Checking", "EUR", "100.00")

	rec := doRequest(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"wallet_id": w.ID, "type": "expense", "amount": "10.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/wallets/%d", w.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/wallets/%d?cascade=true", w.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteWalletWithTransferHistory(t *testing.T) {
	s := newTestServer(t)
	from := createWallet(t, s, "Checking", "EUR", "400.00")
	to := createWallet(t, s, "Savings", "EUR", "100.00")

	rec := doRequest(t, s, http.MethodPost, "/api/transfers", map[string]any{
		"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": "50.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/wallets/%d", from.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/wallets/%d?cascade=true", from.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// The counterparty loses the credited leg along with the transfer.
	rec = doRequest(t, s, http.MethodGet, fmt.Sprintf("/api/wallets/%d", to.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100.00", decodeBody[walletResponse](t, rec).Balance)
}

func TestCreateTransactionUnknownWalletRejected(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"wallet_id": 9999, "type": "expense", "amount": "10.00",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletSummaryReflectsNewTransactions(t *testing.T) {
	s := newTestServer(t)
	w := createWallet(t, s, "Checking", "EUR", "0.00")

	post := func(kind, amount string) {
		rec := doRequest(t, s, http.MethodPost, "/api/transactions", map[string]any{
			"wallet_id": w.ID, "type": kind, "amount": amount,
			"occurred_at": "2025-03-15T10:00:00Z",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	post("income", "200.00")
	post("expense", "75.00")

	url := fmt.Sprintf("/api/wallets/%d/summary?year=2025&month=3", w.ID)
	rec := doRequest(t, s, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decodeBody[summaryResponse](t, rec)
	assert.Equal(t, "200.00", sum.Income)
	assert.Equal(t, "75.00", sum.Expense)
	assert.Equal(t, "125.00", sum.Net)

	// A new transaction must invalidate the cached month.
	post("expense", "25.00")
	rec = doRequest(t, s, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100.00", decodeBody[summaryResponse](t, rec).Net)
}

func TestWalletSummaryUnknownWallet(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/wallets/999/summary?year=2025&month=3", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecurringRuleEndpoints(t *testing.T) {
	s := newTestServer(t)
	w := createWallet(t, s, "Checking", "EUR", "100.00")

	rec := doRequest(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"wallet_id": w.ID, "type": "expense", "amount": "9.99",
		"occurred_at": "2025-01-31T08:00:00Z", "description": "Streaming",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tx := decodeBody[transactionResponse](t, rec)

	rec = doRequest(t, s, http.MethodPost, "/api/recurring", map[string]any{
		"transaction_id": tx.ID, "period": "monthly", "interval": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rule := decodeBody[ruleResponse](t, rec)
	assert.Equal(t, "2025-02-28T08:00:00Z", rule.NextScheduledAt.Format("2006-01-02T15:04:05Z07:00"))

	rec = doRequest(t, s, http.MethodGet, "/api/recurring", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ruleResponse](t, rec), 1)

	rec = doRequest(t, s, http.MethodDelete, fmt.Sprintf("/api/recurring/%d", rule.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTaxonomyEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/categories", map[string]any{"name": "Food"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/parties", map[string]any{"name": "Supermarket"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]namedResponse](t, rec), 1)

	rec = doRequest(t, s, http.MethodGet, "/api/parties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]namedResponse](t, rec), 1)
}
