package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/staffing"
	"github.com/terra-clan/staffing-engine/internal/validation"
)

const maxBodyBytes = 1 << 20

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func respondError(w http.ResponseWriter, status int, code, message string, details ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// respondServiceError maps service errors onto status codes
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *validation.Error
	switch {
	case errors.As(err, &schemaErr):
		respondError(w, http.StatusBadRequest, "validation_error", "document does not match the "+schemaErr.Schema+" schema", schemaErr.Issues...)
	case errors.Is(err, staffing.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, staffing.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, staffing.ErrDuplicate):
		respondError(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, staffing.ErrLocked):
		respondError(w, http.StatusConflict, "locked", err.Error())
	case errors.Is(err, staffing.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, staffing.ErrExecutionDisabled):
		respondError(w, http.StatusServiceUnavailable, "execution_disabled", err.Error())
	default:
		s.requestLogger(r).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads the body, checks it against schema when one is given and
// decodes it into dst
func decodeJSON(r *http.Request, schema string, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read body", staffing.ErrValidation)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("%w: request body is required", staffing.ErrValidation)
	}
	if schema != "" {
		if err := validation.ValidateJSON(schema, body); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", staffing.ErrValidation, err)
	}
	return nil
}

// queryInt reads a non-negative integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", staffing.ErrValidation, name)
	}
	return v, nil
}

func pagination(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.registry != nil {
		if err := s.registry.Ready(r.Context()); err != nil {
			s.logger.Warn("not ready", zap.Error(err))
			respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
