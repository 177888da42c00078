package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"moneta/internal/core"
	"moneta/internal/log"

	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError maps domain sentinels to HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500 body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrWalletNotFound),
		errors.Is(err, core.ErrTransactionNotFound),
		errors.Is(err, core.ErrTransferNotFound),
		errors.Is(err, core.ErrRuleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrTransferLeg),
		errors.Is(err, core.ErrWalletHasTransactions):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrCurrencyMismatch),
		errors.Is(err, core.ErrSameWallet),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidInterval),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidRate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrEndsBeforeStart):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}

	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// queryUserID reads the user_id query parameter, defaulting to 1 for the
// single-user setup.
func queryUserID(r *http.Request) int64 {
	if v := r.URL.Query().Get("user_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
