package handlers

import (
	"net/http"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

// AccessHandler handles the admission endpoints used by the kiosk and the
// operator console
type AccessHandler struct {
	svc *checkin.Service
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(svc *checkin.Service) *AccessHandler {
	return &AccessHandler{svc: svc}
}

// ScanRequest is one captured sample
type ScanRequest struct {
	TemplateRequest

	EventID *int64 `json:"event_id,omitempty"`
	Device  string `json:"device"`
}

// ConfirmRequest admits an operator-selected participant
type ConfirmRequest struct {
	ParticipantID int64  `json:"participant_id"`
	Device        string `json:"device"`
}

// CompanionRequest admits a companion under a responsible participant
type CompanionRequest struct {
	ResponsibleID int64  `json:"responsible_id"`
	Name          string `json:"name"`
}

// ExitRequest records a participant leaving
type ExitRequest struct {
	ParticipantID int64  `json:"participant_id"`
	Device        string `json:"device"`
}

// Scan submits a sample. Denials and duplicates are 200 responses.
func (h *AccessHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Manual, companion and checkout tags belong to their own endpoints.
	switch req.Device {
	case "", constants.DeviceScan, constants.DeviceSimulation:
	default:
		respondError(w, http.StatusBadRequest, "invalid_request",
			"device must be "+constants.DeviceScan+" or "+constants.DeviceSimulation)
		return
	}
	res, err := h.svc.SubmitSample(r.Context(), checkin.SubmitSampleRequest{
		EventID: req.EventID,
		Sample:  checkin.Sample{Vector: req.Vector, Marker: req.Marker},
		Device:  req.Device,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newAdmitResponse(res))
}

// Confirm admits the participant an operator picked from a manual lookup
func (h *AccessHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ConfirmManualAdmit(r.Context(), checkin.ConfirmAdmitRequest{
		ParticipantID: req.ParticipantID,
		Device:        req.Device,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newAdmitResponse(res))
}

// Create enrolls a walk-in participant and admits them
func (h *AccessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateAndAdmit(r.Context(), req.toService())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newAdmitResponse(res))
}

// Companion admits a companion under the responsible's quota
func (h *AccessHandler) Companion(w http.ResponseWriter, r *http.Request) {
	var req CompanionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RegisterCompanion(r.Context(), checkin.CompanionRequest{
		ResponsibleID: req.ResponsibleID,
		Name:          req.Name,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	rec := newRecordResponse(res.Record)
	rec.ParticipantName = res.Companion.Name
	rec.ParticipantDocument = res.Companion.Document
	respondJSON(w, http.StatusCreated, CompanionResponse{
		Companion: *newParticipantResponse(&res.Companion),
		Record:    rec,
		Event:     *newEventResponse(&res.Event),
	})
}

// Exit records a checkout
func (h *AccessHandler) Exit(w http.ResponseWriter, r *http.Request) {
	var req ExitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.svc.RegisterExit(r.Context(), checkin.ExitRequest{
		ParticipantID: req.ParticipantID,
		Device:        req.Device,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newRecordResponse(rec))
}
