package handlers

import (
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// EventResponse represents an event in API responses
type EventResponse struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Date              string     `json:"date"`
	Time              string     `json:"time,omitempty"`
	Location          string     `json:"location,omitempty"`
	ImageURL          string     `json:"image_url,omitempty"`
	Status            string     `json:"status"`
	CompanionsAllowed bool       `json:"companions_allowed"`
	MaxCompanions     int        `json:"max_companions"`
	CheckoutEnabled   bool       `json:"checkout_enabled"`
	CreatedAt         time.Time  `json:"created_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
}

func newEventResponse(e *database.StoredEvent) *EventResponse {
	if e == nil {
		return nil
	}
	return &EventResponse{
		ID:                e.ID,
		Name:              e.Name,
		Date:              e.Date,
		Time:              e.Time,
		Location:          e.Location,
		ImageURL:          e.ImageURL,
		Status:            string(e.Status),
		CompanionsAllowed: e.Companions.Allowed,
		MaxCompanions:     e.Companions.MaxPerEscort,
		CheckoutEnabled:   e.CheckoutEnabled,
		CreatedAt:         e.CreatedAt,
		EndedAt:           e.EndedAt,
	}
}

// ParticipantResponse represents a roster entry. Templates are never returned.
type ParticipantResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	Companion bool      `json:"companion"`
	Gender    string    `json:"gender,omitempty"`
	BirthDate string    `json:"birth_date,omitempty"`
	Category  string    `json:"category,omitempty"`
	CRM       string    `json:"crm,omitempty"`
	Enrolled  bool      `json:"enrolled"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func newParticipantResponse(p *database.StoredParticipant) *ParticipantResponse {
	if p == nil {
		return nil
	}
	return &ParticipantResponse{
		ID:        p.ID,
		Name:      p.Name,
		Document:  p.Document,
		Companion: p.Companion,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
		Category:  p.Category,
		CRM:       p.CRM,
		Enrolled:  !p.Template.IsEmpty(),
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

func newParticipantList(list []database.StoredParticipant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(list))
	for i := range list {
		out = append(out, *newParticipantResponse(&list[i]))
	}
	return out
}

// RecordResponse represents one access record
type RecordResponse struct {
	ID                  int64     `json:"id"`
	EventID             int64     `json:"event_id"`
	ParticipantID       *int64    `json:"participant_id"`
	ParticipantName     string    `json:"participant_name,omitempty"`
	ParticipantDocument string    `json:"participant_document,omitempty"`
	Direction           string    `json:"direction"`
	Outcome             string    `json:"outcome"`
	Device              string    `json:"device"`
	ResponsibleID       *int64    `json:"responsible_id,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

func newRecordResponse(r database.StoredAccessRecord) RecordResponse {
	return RecordResponse{
		ID:                  r.ID,
		EventID:             r.EventID,
		ParticipantID:       r.ParticipantID,
		ParticipantName:     r.ParticipantName,
		ParticipantDocument: r.ParticipantDocument,
		Direction:           string(r.Direction),
		Outcome:             string(r.Outcome),
		Device:              r.Device,
		ResponsibleID:       r.ResponsibleID,
		Timestamp:           r.Timestamp,
	}
}

// AdmitResponse is the outcome of an admission attempt
type AdmitResponse struct {
	Admitted    bool                 `json:"admitted"`
	Duplicate   bool                 `json:"duplicate"`
	Participant *ParticipantResponse `json:"participant,omitempty"`
	Record      RecordResponse       `json:"record"`
	Distance    float64              `json:"distance,omitempty"`
}

func newAdmitResponse(res checkin.AdmitResult) AdmitResponse {
	rec := newRecordResponse(res.Record)
	if res.Participant != nil {
		rec.ParticipantName = res.Participant.Name
		rec.ParticipantDocument = res.Participant.Document
	}
	return AdmitResponse{
		Admitted:    res.Admitted,
		Duplicate:   res.Duplicate,
		Participant: newParticipantResponse(res.Participant),
		Record:      rec,
		Distance:    res.Distance,
	}
}

// CompanionResponse is the outcome of a companion registration
type CompanionResponse struct {
	Companion ParticipantResponse `json:"companion"`
	Record    RecordResponse      `json:"record"`
	Event     EventResponse       `json:"event"`
}

// StatusResponse describes the running engine
type StatusResponse struct {
	Status       string         `json:"status"`
	Backend      string         `json:"backend"`
	Matcher      string         `json:"matcher"`
	ActiveEvent  *EventResponse `json:"active_event"`
	Participants int            `json:"participants"`
	Enrolled     int            `json:"enrolled"`
	Listeners    int            `json:"stream_listeners"`
}
