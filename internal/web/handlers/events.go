package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// EventsHandler handles event lifecycle, dashboard and record endpoints
type EventsHandler struct {
	svc         *checkin.Service
	broadcaster *RecordBroadcaster
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(svc *checkin.Service, b *RecordBroadcaster) *EventsHandler {
	return &EventsHandler{svc: svc, broadcaster: b}
}

// CreateEventRequest is the body of POST /events
type CreateEventRequest struct {
	Name              string `json:"name"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Location          string `json:"location"`
	ImageURL          string `json:"image_url"`
	CompanionsAllowed bool   `json:"companions_allowed"`
	MaxCompanions     int    `json:"max_companions"`
	CheckoutEnabled   bool   `json:"checkout_enabled"`
}

// List returns all events, newest date first
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]*EventResponse, 0, len(events))
	for i := range events {
		out = append(out, newEventResponse(&events[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// Create stores a new scheduled event
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.svc.CreateEvent(r.Context(), checkin.CreateEventRequest{
		Name:              req.Name,
		Date:              req.Date,
		Time:              req.Time,
		Location:          req.Location,
		ImageURL:          req.ImageURL,
		CompanionsAllowed: req.CompanionsAllowed,
		MaxCompanions:     req.MaxCompanions,
		CheckoutEnabled:   req.CheckoutEnabled,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newEventResponse(event))
}

// Active returns the active event, 404 when none is active
func (h *EventsHandler) Active(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetActiveEvent(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if event == nil {
		respondError(w, http.StatusNotFound, "no_active_event", checkin.ErrNoActiveEvent.Error())
		return
	}
	respondJSON(w, http.StatusOK, newEventResponse(event))
}

// Activate makes the event the single active one
func (h *EventsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.ActivateEvent)
}

// Finalize finishes the event
func (h *EventsHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.FinalizeEvent)
}

// Reopen moves a finished event back to scheduled
func (h *EventsHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.ReopenEvent)
}

func (h *EventsHandler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id int64) (*database.StoredEvent, error)) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	event, err := fn(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newEventResponse(event))
}

// Summary returns the dashboard counters of an event
func (h *EventsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	summary, err := h.svc.EventSummary(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// parseRecordFilter reads the limit, outcome and direction query parameters.
// outcome=success is accepted as an alias of matched.
func parseRecordFilter(r *http.Request, eventID int64) (database.RecordFilter, string) {
	q := r.URL.Query()
	filter := database.RecordFilter{EventID: eventID, Limit: constants.DefaultRecordLimit}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return filter, "limit must be a positive integer"
		}
		filter.Limit = min(n, constants.DefaultRecordLimit)
	}

	switch q.Get("outcome") {
	case "":
	case "matched", "success":
		filter.Outcome = database.OutcomeMatched
	case "unmatched":
		filter.Outcome = database.OutcomeUnmatched
	default:
		return filter, "outcome must be matched or unmatched"
	}

	switch q.Get("direction") {
	case "":
	case "entry":
		filter.Direction = database.DirectionEntry
	case "exit":
		filter.Direction = database.DirectionExit
	default:
		return filter, "direction must be entry or exit"
	}
	return filter, ""
}

// Records lists the access records of an event, newest first
func (h *EventsHandler) Records(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	filter, msg := parseRecordFilter(r, id)
	if msg != "" {
		respondError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}
	records, err := h.svc.ListAccessRecords(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, newRecordResponse(rec))
	}
	respondJSON(w, http.StatusOK, out)
}

// Stream pushes new access records of an event as server-sent events.
// The first message carries the current summary.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	summary, err := h.svc.EventSummary(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	streamRecords(w, r, h.broadcaster, id, summary)
}
