package handlers

import (
	"net/http"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
)

// StatusHandler reports the state of the running engine
type StatusHandler struct {
	svc         *checkin.Service
	broadcaster *RecordBroadcaster
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(svc *checkin.Service, b *RecordBroadcaster) *StatusHandler {
	return &StatusHandler{svc: svc, broadcaster: b}
}

// Get returns backend, matcher, active event and roster counts
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Status(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Status:       "ok",
		Backend:      report.Backend,
		Matcher:      report.Matcher,
		ActiveEvent:  newEventResponse(report.ActiveEvent),
		Participants: report.Participants,
		Enrolled:     report.Enrolled,
		Listeners:    h.broadcaster.Len(),
	})
}
