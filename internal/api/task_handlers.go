package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.staffing.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProgressRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	task, err := s.staffing.UpdateTaskProgress(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Interviews and offers

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	interviews, err := s.staffing.ListInterviews(r.Context(), storage.InterviewFilters{
		ProjectID: q.Get("projectId"),
		UserID:    q.Get("userId"),
		Limit:     limit,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"interviews": interviews,
		"total":      len(interviews),
	})
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "userId is required")
		return
	}

	offers, err := s.staffing.ListOffers(r.Context(), storage.OfferFilters{
		UserID: userID,
		Status: models.OfferStatus(q.Get("status")),
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"offers": offers,
		"total":  len(offers),
	})
}

func (s *Server) handleRespondOffer(w http.ResponseWriter, r *http.Request) {
	var req models.RespondOfferRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	offer, err := s.staffing.RespondOffer(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, offer)
}

// Notifications

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unread, _ := strconv.ParseBool(q.Get("unread"))

	list, err := s.staffing.ListNotifications(r.Context(), q.Get("userId"), unread)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": list,
		"total":         len(list),
	})
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNotificationRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	n, err := s.staffing.CreateNotification(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.staffing.MarkNotificationRead(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":   id,
		"read": true,
	})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.staffing.DeleteNotification(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"deleted": true,
	})
}

// Performance

func (s *Server) handleRegisterPerformance(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterPerformanceRequest
	if err := decodeJSON(r, "", &req); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	record, err := s.staffing.RegisterPerformance(r.Context(), &req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListPerformance(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	records, err := s.staffing.ListPerformance(r.Context(), models.PerformanceFilters{
		UserID:    q.Get("userId"),
		AgentID:   q.Get("agentId"),
		ProjectID: q.Get("projectId"),
		Limit:     limit,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   len(records),
	})
}
