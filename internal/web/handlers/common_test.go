package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusNoContent, nil)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"event not found", checkin.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
		{"participant not found", checkin.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
		{"no active event", checkin.ErrNoActiveEvent, http.StatusConflict, "no_active_event"},
		{"companions not allowed", checkin.ErrCompanionsNotAllowed, http.StatusConflict, "companions_not_allowed"},
		{"limit exceeded wrapped", fmt.Errorf("%w: 2 of 2", checkin.ErrLimitExceeded), http.StatusConflict, "limit_exceeded"},
		{"document taken", checkin.ErrDocumentAlreadyRegistered, http.StatusConflict, "document_already_registered"},
		{"event finished", checkin.ErrEventFinished, http.StatusConflict, "event_finished"},
		{"checked out", checkin.ErrAlreadyCheckedOut, http.StatusConflict, "already_checked_out"},
		{"checkout disabled", checkin.ErrCheckoutDisabled, http.StatusConflict, "checkout_disabled"},
		{"invalid sample", checkin.ErrInvalidSample, http.StatusUnprocessableEntity, "invalid_sample"},
		{"invalid request", checkin.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{"store unavailable", fmt.Errorf("op: %w: %w", checkin.ErrStoreUnavailable, errors.New("conn refused")), http.StatusServiceUnavailable, "store_unavailable"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
			respondServiceError(recorder, req, tc.err)

			assertStatusCode(t, recorder, tc.wantStatus)
			assertErrorCode(t, recorder, tc.wantCode)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var dst ConfirmRequest
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"participant_id": 5}`))
		if !decodeJSON(recorder, req, &dst) || dst.ParticipantID != 5 {
			t.Errorf("expected participant_id 5, got %+v", dst)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		var dst ConfirmRequest
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"participant_id":`))
		if decodeJSON(recorder, req, &dst) {
			t.Fatal("expected decode failure")
		}
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertErrorCode(t, recorder, "invalid_request")
	})
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"12", true},
		{"0", false},
		{"-3", false},
		{"abc", false},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tc.value})
			_, ok := parseIDParam(recorder, req, "id")
			if ok != tc.ok {
				t.Errorf("parseIDParam(%q) ok = %v, want %v", tc.value, ok, tc.ok)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var body map[string]string
	parseJSONResponse(t, recorder, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body)
	}
}
