package http

import (
	"errors"
	"net/http"
	"time"

	"moneta/internal/core"
)

type transactionRequest struct {
	UserID      int64   `json:"user_id"`
	WalletID    *int64  `json:"wallet_id"`
	Type        string  `json:"type"`
	Amount      string  `json:"amount"`
	OccurredAt  string  `json:"occurred_at"`
	Description string  `json:"description"`
	PartyID     *int64  `json:"party_id"`
	CategoryIDs []int64 `json:"category_ids"`
}

type transactionResponse struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	WalletID    *int64    `json:"wallet_id,omitempty"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description,omitempty"`
	PartyID     *int64    `json:"party_id,omitempty"`
	TransferID  *int64    `json:"transfer_id,omitempty"`
	CategoryIDs []int64   `json:"category_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		WalletID:    t.WalletID,
		Type:        string(t.Type),
		Amount:      t.Amount.String(),
		OccurredAt:  t.OccurredAt,
		Description: t.Description,
		PartyID:     t.PartyID,
		TransferID:  t.TransferID,
		CategoryIDs: t.CategoryIDs,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// parseTransaction builds a core.Transaction from the request payload.
// Validation proper happens in the ledger; only parse failures surface here.
func parseTransaction(req transactionRequest) (core.Transaction, error) {
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return core.Transaction{}, core.ErrInvalidDate
		}
		occurredAt = parsed.UTC()
	}

	if req.UserID == 0 {
		req.UserID = 1
	}

	return core.Transaction{
		UserID:      req.UserID,
		WalletID:    req.WalletID,
		Type:        core.TransactionType(req.Type),
		Amount:      amount,
		OccurredAt:  occurredAt,
		Description: req.Description,
		PartyID:     req.PartyID,
		CategoryIDs: req.CategoryIDs,
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	t, err := parseTransaction(req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.ledger.CreateTransaction(r.Context(), &t); err != nil {
		respondError(w, r, err)
		return
	}

	if t.WalletID != nil {
		s.invalidateWalletSummaries(*t.WalletID)
	}
	respondJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	txs, err := s.repo.ListTransactions(r.Context(), queryUserID(r), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	t, err := s.repo.Transaction(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	t, err := parseTransaction(req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	t.ID = id

	// The pre-image's wallet needs its cached summaries dropped too when
	// the update moves the transaction between wallets.
	prior, err := s.repo.Transaction(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.ledger.UpdateTransaction(r.Context(), &t); err != nil {
		respondError(w, r, err)
		return
	}

	if prior.WalletID != nil {
		s.invalidateWalletSummaries(*prior.WalletID)
	}
	if t.WalletID != nil && (prior.WalletID == nil || *t.WalletID != *prior.WalletID) {
		s.invalidateWalletSummaries(*t.WalletID)
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	prior, err := s.repo.Transaction(r.Context(), id)
	if err != nil && !errors.Is(err, core.ErrTransactionNotFound) {
		respondError(w, r, err)
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	if prior.WalletID != nil {
		s.invalidateWalletSummaries(*prior.WalletID)
	}
	respondJSON(w, http.StatusNoContent, nil)
}
