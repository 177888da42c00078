package http

import (
	"net/http"
	"time"

	"moneta/internal/core"
)

type ruleRequest struct {
	TransactionID   int64  `json:"transaction_id"`
	Period          string `json:"period"`
	Interval        int    `json:"interval"`
	EndsAt          string `json:"ends_at"`
	NextScheduledAt string `json:"next_scheduled_at"`
}

type ruleResponse struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	TransactionID   int64      `json:"transaction_id"`
	Period          string     `json:"period"`
	Interval        int        `json:"interval"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	NextScheduledAt time.Time  `json:"next_scheduled_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toRuleResponse(rule core.RecurringRule) ruleResponse {
	return ruleResponse{
		ID:              rule.ID,
		UserID:          rule.UserID,
		TransactionID:   rule.TransactionID,
		Period:          string(rule.Period),
		Interval:        rule.Interval,
		EndsAt:          rule.EndsAt,
		NextScheduledAt: rule.NextScheduledAt,
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	rule := core.RecurringRule{
		TransactionID: req.TransactionID,
		Period:        core.RecurrencePeriod(req.Period),
		Interval:      req.Interval,
	}

	if req.EndsAt != "" {
		ends, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			respondError(w, r, core.ErrInvalidDate)
			return
		}
		ends = ends.UTC()
		rule.EndsAt = &ends
	}
	if req.NextScheduledAt != "" {
		next, err := time.Parse(time.RFC3339, req.NextScheduledAt)
		if err != nil {
			respondError(w, r, core.ErrInvalidDate)
			return
		}
		rule.NextScheduledAt = next.UTC()
	}

	if err := s.scheduler.CreateRule(r.Context(), &rule); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toRuleResponse(rule))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.repo.ListRules(r.Context(), queryUserID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid rule id")
		return
	}

	if err := s.repo.DeleteRule(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
