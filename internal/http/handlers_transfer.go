package http

import (
	"net/http"
	"time"

	"moneta/internal/core"
	"moneta/internal/ledger"

	"github.com/shopspring/decimal"
)

type transferRequest struct {
	UserID       int64  `json:"user_id"`
	FromWalletID int64  `json:"from_wallet_id"`
	ToWalletID   int64  `json:"to_wallet_id"`
	Amount       string `json:"amount"`
	ExchangeRate string `json:"exchange_rate"`
	OccurredAt   string `json:"occurred_at"`
}

type transferResponse struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	FromWalletID   int64     `json:"from_wallet_id"`
	ToWalletID     int64     `json:"to_wallet_id"`
	AmountSent     string    `json:"amount_sent"`
	AmountReceived string    `json:"amount_received"`
	ExchangeRate   string    `json:"exchange_rate"`
	CreatedAt      time.Time `json:"created_at"`
}

func toTransferResponse(t core.Transfer) transferResponse {
	return transferResponse{
		ID:             t.ID,
		UserID:         t.UserID,
		FromWalletID:   t.FromWalletID,
		ToWalletID:     t.ToWalletID,
		AmountSent:     t.AmountSent.String(),
		AmountReceived: t.AmountReceived.String(),
		ExchangeRate:   t.ExchangeRate.String(),
		CreatedAt:      t.CreatedAt,
	}
}

// resolveRate picks the exchange rate for a transfer: 1 when both wallets
// share a currency, an explicit positive rate otherwise.
func resolveRate(from, to core.Wallet, raw string) (decimal.Decimal, error) {
	sameCurrency := from.Currency == to.Currency

	if raw == "" {
		if !sameCurrency {
			return decimal.Decimal{}, core.ErrCurrencyMismatch
		}
		return decimal.NewFromInt(1), nil
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Decimal{}, core.ErrInvalidRate
	}
	if sameCurrency && !rate.Equal(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, core.ErrInvalidRate
	}
	return rate, nil
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.UserID == 0 {
		req.UserID = 1
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			respondError(w, r, core.ErrInvalidDate)
			return
		}
		occurredAt = parsed.UTC()
	}

	from, err := s.repo.Wallet(r.Context(), req.FromWalletID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := s.repo.Wallet(r.Context(), req.ToWalletID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rate, err := resolveRate(from, to, req.ExchangeRate)
	if err != nil {
		respondError(w, r, err)
		return
	}

	transfer, err := s.transfers.Transfer(r.Context(), ledger.TransferRequest{
		UserID:       req.UserID,
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		AmountSent:   amount,
		ExchangeRate: rate,
		OccurredAt:   occurredAt,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateWalletSummaries(req.FromWalletID)
	s.invalidateWalletSummaries(req.ToWalletID)
	respondJSON(w, http.StatusCreated, toTransferResponse(*transfer))
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	transfers, err := s.repo.ListTransfers(r.Context(), queryUserID(r), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]transferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, toTransferResponse(t))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transfer id")
		return
	}

	transfer, err := s.repo.Transfer(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransferResponse(transfer))
}
