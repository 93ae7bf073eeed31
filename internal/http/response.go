package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"planner/internal/service"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// writeServiceError maps service errors onto HTTP responses. entity names
// the resource in not-found messages.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error, entity string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", entity+" not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Not authorized to modify this "+strings.ToLower(entity))
	case errors.Is(err, service.ErrInvalidArgs):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+strings.ToLower(entity)+" data")
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "EMAIL_TAKEN", "Email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect email or password")
	default:
		a.Log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// writeTaskError is writeServiceError for task operations whose only lookup
// that can miss is the referenced goal.
func (a *API) writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Goal not found")
		return
	}
	a.writeServiceError(w, r, err, "Task")
}
