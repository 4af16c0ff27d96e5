package http

import (
	"net/http"

	"scontrini/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.store.ListExpenses(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	signed := s.presenter.SignAll(r.Context(), expenses)
	respondJSON(w, http.StatusOK, map[string]any{"expenses": signed})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"expense": s.presenter.Sign(r.Context(), expense)})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in core.CreateExpense
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := s.store.CreateExpense(r.Context(), in)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

// handleReplaceExpense is a full update: every stored field takes the
// request's value, and an omitted fileUrl clears the attachment.
func (s *Server) handleReplaceExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in struct {
		Title   string  `json:"title"`
		Amount  int64   `json:"amount"`
		FileURL *string `json:"fileUrl"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	fileURL := ""
	if in.FileURL != nil {
		fileURL = *in.FileURL
	}
	patch := core.UpdateExpense{
		Title:   &in.Title,
		Amount:  &in.Amount,
		FileURL: &fileURL,
	}

	expense, err := s.store.UpdateExpense(r.Context(), id, patch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	s.invalidateSigned(patch, expense)
	respondJSON(w, http.StatusOK, map[string]any{"expense": s.presenter.Sign(r.Context(), expense)})
}

func (s *Server) handlePatchExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch core.UpdateExpense
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.IsEmpty() {
		respondError(w, http.StatusBadRequest, "Empty patch")
		return
	}

	expense, err := s.store.UpdateExpense(r.Context(), id, patch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	s.invalidateSigned(patch, expense)
	respondJSON(w, http.StatusOK, map[string]any{"expense": s.presenter.Sign(r.Context(), expense)})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := s.store.DeleteExpense(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	if expense.FileURL != nil {
		s.presenter.Invalidate(*expense.FileURL)
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": expense})
}

// invalidateSigned drops cached signed URLs for any key the patch moved
// away from or onto, so the next read re-signs the current key.
func (s *Server) invalidateSigned(patch core.UpdateExpense, updated core.Expense) {
	if !patch.TouchesFile() {
		return
	}
	if v := patch.FileValue(); v != nil && *v != "" {
		s.presenter.Invalidate(*v)
	}
	if updated.FileURL != nil {
		s.presenter.Invalidate(*updated.FileURL)
	}
}
