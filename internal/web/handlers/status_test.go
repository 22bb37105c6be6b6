package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	h := NewStatusHandler(env.svc, env.broadcaster)
	env.activeEvent(true, 2, false)
	env.participant("Ana Lima", "1", "bio_1")
	env.participant("Sem Template", "2", "")

	recorder := httptest.NewRecorder()
	h.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var status StatusResponse
	parseJSONResponse(t, recorder, &status)
	if status.Backend != "memory" || status.Matcher != "simulated" {
		t.Errorf("unexpected backend/matcher %q/%q", status.Backend, status.Matcher)
	}
	if status.ActiveEvent == nil || !status.ActiveEvent.CompanionsAllowed {
		t.Errorf("expected active event, got %+v", status.ActiveEvent)
	}
	if status.Participants != 2 || status.Enrolled != 1 {
		t.Errorf("expected 2 participants and 1 enrolled, got %d/%d", status.Participants, status.Enrolled)
	}
}
