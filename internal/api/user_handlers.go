package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/validation"
)

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUserRequest
	if err := decodeJSON(r, validation.SchemaUser, &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	user, err := s.staffing.RegisterUser(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	users, err := s.staffing.ListUsers(r.Context(), models.UserFilters{
		Role:   models.UserRole(r.URL.Query().Get("role")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.staffing.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	user, err := s.staffing.UpdateUser(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleAutoInterview(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.staffing.AutoInterview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	passed := 0
	for _, o := range outcomes {
		if o.Result == models.InterviewPassed {
			passed++
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"interviews": outcomes,
		"total":      len(outcomes),
		"passed":     passed,
	})
}

func (s *Server) handleUserPerformance(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	userID := chi.URLParam(r, "id")
	if _, err := s.staffing.GetUser(r.Context(), userID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	records, err := s.staffing.ListPerformance(r.Context(), models.PerformanceFilters{UserID: userID, Limit: limit})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}

func (s *Server) handleAnalyzePerformance(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.staffing.AnalyzePerformance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}
