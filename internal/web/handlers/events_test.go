package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

func TestEventsHandler_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	h := NewEventsHandler(env.svc, env.broadcaster)

	recorder := httptest.NewRecorder()
	h.Create(recorder, jsonRequest(t, http.MethodPost, "/api/v1/events", CreateEventRequest{
		Name: "UniEvento Tech 2026", Date: "2026-03-14", CompanionsAllowed: true, MaxCompanions: 2,
	}))
	assertStatusCode(t, recorder, http.StatusCreated)

	var created EventResponse
	parseJSONResponse(t, recorder, &created)
	if created.ID == 0 || created.Status != "scheduled" || created.MaxCompanions != 2 {
		t.Errorf("unexpected event %+v", created)
	}

	recorder = httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var list []EventResponse
	parseJSONResponse(t, recorder, &list)
	if len(list) != 1 || list[0].Name != "UniEvento Tech 2026" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestEventsHandler_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	h := NewEventsHandler(env.svc, env.broadcaster)

	recorder := httptest.NewRecorder()
	h.Create(recorder, jsonRequest(t, http.MethodPost, "/api/v1/events", CreateEventRequest{Name: "X", Date: "14/03/2026"}))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertErrorCode(t, recorder, "invalid_request")
}

func TestEventsHandler_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := NewEventsHandler(env.svc, env.broadcaster)
	first := env.activeEvent(false, 0, false)
	second := env.store.AddEvent(database.StoredEvent{Name: "Second", Date: "2026-04-01"})

	call := func(fn http.HandlerFunc, id int64) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		req := requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil),
			map[string]string{"id": itoa(id)})
		fn(recorder, req)
		return recorder
	}

	recorder := call(h.Activate, second)
	assertStatusCode(t, recorder, http.StatusOK)
	if env.store.ActiveCount() != 1 {
		t.Errorf("expected a single active event, got %d", env.store.ActiveCount())
	}

	recorder = httptest.NewRecorder()
	h.Active(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/events/active", nil))
	var active EventResponse
	parseJSONResponse(t, recorder, &active)
	if active.ID != second {
		t.Errorf("expected event %d active, got %d", second, active.ID)
	}

	recorder = call(h.Finalize, first)
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = call(h.Activate, first)
	assertStatusCode(t, recorder, http.StatusConflict)
	assertErrorCode(t, recorder, "event_finished")

	recorder = call(h.Reopen, first)
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = call(h.Activate, 999)
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertErrorCode(t, recorder, "event_not_found")
}

func TestEventsHandler_ActiveNone(t *testing.T) {
	env := newTestEnv(t)
	h := NewEventsHandler(env.svc, env.broadcaster)

	recorder := httptest.NewRecorder()
	h.Active(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/events/active", nil))

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertErrorCode(t, recorder, "no_active_event")
}

func TestEventsHandler_SummaryAndRecords(t *testing.T) {
	env := newTestEnv(t)
	h := NewEventsHandler(env.svc, env.broadcaster)
	eventID := env.activeEvent(false, 0, false)
	pid := env.participant("Ana Lima", "1", "bio_1")

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	env.store.AddRecord(database.StoredAccessRecord{EventID: eventID, ParticipantID: &pid,
		Direction: database.DirectionEntry, Outcome: database.OutcomeMatched, Device: "scan_web", Timestamp: base})
	env.store.AddRecord(database.StoredAccessRecord{EventID: eventID,
		Direction: database.DirectionEntry, Outcome: database.OutcomeUnmatched, Device: "scan_web", Timestamp: base.Add(time.Second)})

	params := map[string]string{"id": itoa(eventID)}

	recorder := httptest.NewRecorder()
	h.Summary(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), params))
	assertStatusCode(t, recorder, http.StatusOK)
	var summary database.EventSummary
	parseJSONResponse(t, recorder, &summary)
	if summary.Total != 2 || summary.Matched != 1 || summary.Unmatched != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}

	tests := []struct {
		query      string
		wantStatus int
		wantLen    int
	}{
		{"", http.StatusOK, 2},
		{"?outcome=success", http.StatusOK, 1},
		{"?outcome=unmatched", http.StatusOK, 1},
		{"?limit=1", http.StatusOK, 1},
		{"?limit=5000", http.StatusOK, 2},
		{"?limit=zero", http.StatusBadRequest, 0},
		{"?outcome=maybe", http.StatusBadRequest, 0},
		{"?direction=exit", http.StatusOK, 0},
	}
	for _, tc := range tests {
		t.Run("records"+tc.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/events/1/records"+tc.query, nil), params)
			h.Records(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}
			var records []RecordResponse
			parseJSONResponse(t, recorder, &records)
			if len(records) != tc.wantLen {
				t.Errorf("expected %d records, got %d", tc.wantLen, len(records))
			}
		})
	}

	recorder = httptest.NewRecorder()
	h.Summary(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "77"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestEventsHandler_Stream(t *testing.T) {
	env := newTestEnv(t)
	h := NewEventsHandler(env.svc, env.broadcaster)
	eventID := env.activeEvent(false, 0, false)
	env.participant("Ana Lima", "1", "bio_1")

	ctx, cancel := context.WithCancel(context.Background())
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx),
		map[string]string{"id": itoa(eventID)})
	recorder := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(recorder, req)
	}()

	// wait for the listener before producing a record
	deadline := time.Now().Add(2 * time.Second)
	for env.broadcaster.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream did not register a listener")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := env.svc.ConfirmManualAdmit(context.Background(), confirmFor(1)); err != nil {
		t.Fatalf("ConfirmManualAdmit: %v", err)
	}

	// the record is written asynchronously by the stream goroutine
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := recorder.Body.String()
	if !strings.Contains(body, "event: status") {
		t.Errorf("expected initial status event, got %q", body)
	}
	if !strings.Contains(body, "event: record") || !strings.Contains(body, `"participant_name":"Ana Lima"`) {
		t.Errorf("expected record event for Ana Lima, got %q", body)
	}
	if env.broadcaster.Len() != 0 {
		t.Error("expected listener to be removed after disconnect")
	}
}
