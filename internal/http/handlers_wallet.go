package http

import (
	"fmt"
	"net/http"
	"time"

	"moneta/internal/core"
)

type walletRequest struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

type walletResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWalletResponse(w core.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Name:      w.Name,
		Currency:  w.Currency,
		Balance:   w.Balance.String(),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.UserID == 0 {
		req.UserID = 1
	}

	balance := core.Zero
	if req.Balance != "" {
		b, err := core.MoneyFromString(req.Balance)
		if err != nil {
			respondError(w, r, err)
			return
		}
		balance = b
	}

	wallet := core.Wallet{
		UserID:   req.UserID,
		Name:     req.Name,
		Currency: req.Currency,
		Balance:  balance,
	}
	if err := wallet.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.repo.CreateWallet(r.Context(), &wallet); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.repo.ListWallets(r.Context(), queryUserID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]walletResponse, 0, len(wallets))
	for _, wallet := range wallets {
		out = append(out, toWalletResponse(wallet))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid wallet id")
		return
	}

	wallet, err := s.repo.Wallet(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toWalletResponse(wallet))
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid wallet id")
		return
	}
	cascade := r.URL.Query().Get("cascade") == "true"

	if err := s.ledger.DeleteWallet(r.Context(), id, cascade); err != nil {
		respondError(w, r, err)
		return
	}

	if cascade {
		// Unwinding transfers touches counterparty balances too.
		s.summaryCache.DeletePrefix("wallet:")
	} else {
		s.invalidateWalletSummaries(id)
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func summaryCacheKey(walletID int64, year, month int) string {
	return fmt.Sprintf("wallet:%d:%04d-%02d", walletID, year, month)
}

func (s *Server) invalidateWalletSummaries(walletID int64) {
	s.summaryCache.DeletePrefix(fmt.Sprintf("wallet:%d:", walletID))
}

type summaryResponse struct {
	WalletID int64  `json:"wallet_id"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Income   string `json:"income"`
	Expense  string `json:"expense"`
	Net      string `json:"net"`
}

func (s *Server) handleWalletSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid wallet id")
		return
	}

	now := time.Now().UTC()
	year := queryInt(r, "year", now.Year())
	month := queryInt(r, "month", int(now.Month()))
	if month < 1 || month > 12 {
		badRequest(w, "month must be between 1 and 12")
		return
	}

	key := summaryCacheKey(id, year, month)
	summary, found := s.summaryCache.Get(key)
	if !found {
		// Make sure a summary of zeros is not silently served for a
		// wallet that does not exist.
		if _, err := s.repo.Wallet(r.Context(), id); err != nil {
			respondError(w, r, err)
			return
		}

		summary, err = s.repo.MonthSummary(r.Context(), id, year, month)
		if err != nil {
			respondError(w, r, err)
			return
		}
		s.summaryCache.Set(key, summary)
	}

	respondJSON(w, http.StatusOK, summaryResponse{
		WalletID: summary.WalletID,
		Year:     summary.Year,
		Month:    summary.Month,
		Income:   summary.Income.String(),
		Expense:  summary.Expense.String(),
		Net:      summary.Net.String(),
	})
}
