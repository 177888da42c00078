package http

import (
	"net/http"
	"strings"

	"moneta/internal/core"
)

type namedRequest struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

type namedResponse struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.UserID == 0 {
		req.UserID = 1
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, r, core.ErrEmptyName)
		return
	}

	category := core.Category{UserID: req.UserID, Name: strings.TrimSpace(req.Name)}
	if err := s.repo.CreateCategory(r.Context(), &category); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, namedResponse{ID: category.ID, UserID: category.UserID, Name: category.Name})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.ListCategories(r.Context(), queryUserID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]namedResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, namedResponse{ID: c.ID, UserID: c.UserID, Name: c.Name})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.UserID == 0 {
		req.UserID = 1
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, r, core.ErrEmptyName)
		return
	}

	party := core.Party{UserID: req.UserID, Name: strings.TrimSpace(req.Name)}
	if err := s.repo.CreateParty(r.Context(), &party); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, namedResponse{ID: party.ID, UserID: party.UserID, Name: party.Name})
}

func (s *Server) handleListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := s.repo.ListParties(r.Context(), queryUserID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]namedResponse, 0, len(parties))
	for _, p := range parties {
		out = append(out, namedResponse{ID: p.ID, UserID: p.UserID, Name: p.Name})
	}
	respondJSON(w, http.StatusOK, out)
}
