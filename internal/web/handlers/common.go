package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// errorMapping maps engine outcomes to HTTP statuses. Order matters only for
// errors wrapping more than one sentinel.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{checkin.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	{checkin.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
	{checkin.ErrNoActiveEvent, http.StatusConflict, "no_active_event"},
	{checkin.ErrEventFinished, http.StatusConflict, "event_finished"},
	{checkin.ErrCompanionsNotAllowed, http.StatusConflict, "companions_not_allowed"},
	{checkin.ErrLimitExceeded, http.StatusConflict, "limit_exceeded"},
	{checkin.ErrDocumentAlreadyRegistered, http.StatusConflict, "document_already_registered"},
	{checkin.ErrCheckoutDisabled, http.StatusConflict, "checkout_disabled"},
	{checkin.ErrAlreadyCheckedOut, http.StatusConflict, "already_checked_out"},
	{checkin.ErrInvalidSample, http.StatusUnprocessableEntity, "invalid_sample"},
	{checkin.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{checkin.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout"},
}

// respondServiceError maps an engine error to its HTTP response.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				slog.Error("request failed", "method", r.Method, "path", sanitizeForLog(r.URL.Path), "error", err)
			}
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		// client went away, nobody reads the response
		return
	}
	slog.Error("unexpected error", "method", r.Method, "path", sanitizeForLog(r.URL.Path), "error", err)
	respondError(w, http.StatusInternalServerError, "internal", "internal error")
}

// decodeJSON reads a bounded JSON body into dst. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", errInvalidRequestBody)
		return false
	}
	return true
}

// parseIDParam reads a positive integer URL parameter. On failure it writes a
// 400 and returns false.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return 0, false
	}
	return id, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
