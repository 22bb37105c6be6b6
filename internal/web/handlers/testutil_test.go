package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/database/mock"
)

type testEnv struct {
	store       *mock.MockStore
	svc         *checkin.Service
	broadcaster *RecordBroadcaster
}

// newTestEnv wires a service over an in-memory store with the simulated matcher
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := mock.NewMockStore()
	b := NewRecordBroadcaster()
	svc := checkin.NewService(store, checkin.Options{
		Matcher:  checkin.MarkerMatcher{},
		Notifier: b,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testEnv{store: store, svc: svc, broadcaster: b}
}

func (e *testEnv) activeEvent(allowed bool, maxPerEscort int, checkout bool) int64 {
	return e.store.AddEvent(database.StoredEvent{
		Name:            "UniEvento Tech 2026",
		Date:            "2026-03-14",
		Status:          database.EventActive,
		Companions:      database.CompanionPolicy{Allowed: allowed, MaxPerEscort: maxPerEscort},
		CheckoutEnabled: checkout,
	})
}

func (e *testEnv) participant(name, document, marker string) int64 {
	return e.store.AddParticipant(database.StoredParticipant{
		Name:     name,
		Document: document,
		Active:   true,
		Template: database.Template{Marker: marker},
	})
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertErrorCode checks if the response is a JSON error with the expected code
func assertErrorCode(t *testing.T, recorder *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	var result errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result.Code != expectedCode {
		t.Errorf("expected error code '%s', got '%s' (%s)", expectedCode, result.Code, result.Error)
	}
}
