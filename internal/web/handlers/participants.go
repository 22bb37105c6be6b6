package handlers

import (
	"net/http"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// ParticipantsHandler handles roster endpoints
type ParticipantsHandler struct {
	svc *checkin.Service
}

// NewParticipantsHandler creates a new participants handler
func NewParticipantsHandler(svc *checkin.Service) *ParticipantsHandler {
	return &ParticipantsHandler{svc: svc}
}

// TemplateRequest carries a biometric template: a descriptor or a simulation marker
type TemplateRequest struct {
	Vector []float32 `json:"vector,omitempty"`
	Marker string    `json:"marker,omitempty"`
}

func (t TemplateRequest) template() database.Template {
	return database.Template{Vector: t.Vector, Marker: t.Marker}
}

// ParticipantRequest is the body of POST /participants and POST /access/create
type ParticipantRequest struct {
	TemplateRequest

	Name      string `json:"name"`
	Document  string `json:"document"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birth_date"`
	Category  string `json:"category"`
	CPF       string `json:"cpf"`
	CRM       string `json:"crm"`
	Device    string `json:"device"`
}

func (p ParticipantRequest) toService() checkin.CreateParticipantRequest {
	return checkin.CreateParticipantRequest{
		Name:      p.Name,
		Document:  p.Document,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
		Category:  p.Category,
		CPF:       p.CPF,
		CRM:       p.CRM,
		Template:  p.template(),
		Device:    p.Device,
	}
}

// List returns the roster ordered by name
func (h *ParticipantsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListParticipants(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParticipantList(list))
}

// Search is the manual lookup: exact document or accent-insensitive name substring
func (h *ParticipantsHandler) Search(w http.ResponseWriter, r *http.Request) {
	found, err := h.svc.SubmitManualLookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParticipantList(found))
}

// Enroll adds a participant to the roster without admitting them
func (h *ParticipantsHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.EnrollParticipant(r.Context(), req.toService())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newParticipantResponse(p))
}

// UpdateTemplate re-enrolls the template of a participant
func (h *ParticipantsHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req TemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateTemplate(r.Context(), id, req.template())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParticipantResponse(p))
}
