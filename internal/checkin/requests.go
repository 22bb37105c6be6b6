package checkin

import (
	"strings"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// CreateEventRequest holds the operator-supplied fields of a new event.
type CreateEventRequest struct {
	Name              string
	Date              string // YYYY-MM-DD
	Time              string // HH:MM, optional
	Location          string
	ImageURL          string
	CompanionsAllowed bool
	MaxCompanions     int // 0 = unlimited
	CheckoutEnabled   bool
}

// Validate checks required fields and formats.
func (r *CreateEventRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	if r.Name == "" {
		return invalidRequest("event name is required")
	}
	if _, err := time.Parse(time.DateOnly, r.Date); err != nil {
		return invalidRequest("event date must be YYYY-MM-DD")
	}
	if r.Time != "" {
		if _, err := time.Parse("15:04", r.Time); err != nil {
			return invalidRequest("event time must be HH:MM")
		}
	}
	if r.MaxCompanions < 0 {
		return invalidRequest("max companions must not be negative")
	}
	return nil
}

func (r *CreateEventRequest) toStored() database.StoredEvent {
	return database.StoredEvent{
		Name:     r.Name,
		Date:     r.Date,
		Time:     r.Time,
		Location: strings.TrimSpace(r.Location),
		ImageURL: strings.TrimSpace(r.ImageURL),
		Companions: database.CompanionPolicy{
			Allowed:      r.CompanionsAllowed,
			MaxPerEscort: r.MaxCompanions,
		},
		CheckoutEnabled: r.CheckoutEnabled,
	}
}

// Allowed demographic values
var (
	validGenders    = map[string]bool{"": true, "M": true, "F": true, "Outro": true}
	validCategories = map[string]bool{"": true, "Medico": true, "Outros": true}
)

// CreateParticipantRequest holds enrollment data for a new participant.
type CreateParticipantRequest struct {
	Name      string
	Document  string
	Gender    string
	BirthDate string
	Category  string
	CPF       string
	CRM       string
	Template  database.Template
	Device    string // create-and-admit only
}

// Validate checks required fields, demographic values and the template shape.
func (r *CreateParticipantRequest) Validate(dim int) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Document = strings.TrimSpace(r.Document)
	if r.Name == "" {
		return invalidRequest("participant name is required")
	}
	if r.Document == "" {
		return invalidRequest("participant document is required")
	}
	if !validGenders[r.Gender] {
		return invalidRequest("gender must be M, F or Outro")
	}
	if !validCategories[r.Category] {
		return invalidRequest("category must be Medico or Outros")
	}
	if r.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, r.BirthDate); err != nil {
			return invalidRequest("birth date must be YYYY-MM-DD")
		}
	}
	return validateTemplate(r.Template, dim)
}

func validateTemplate(t database.Template, dim int) error {
	if len(t.Vector) > 0 {
		return ValidateVector(t.Vector, dim)
	}
	return nil
}

func (r *CreateParticipantRequest) toStored() database.StoredParticipant {
	return database.StoredParticipant{
		Name:      r.Name,
		Document:  r.Document,
		Gender:    r.Gender,
		BirthDate: r.BirthDate,
		Category:  r.Category,
		CPF:       strings.TrimSpace(r.CPF),
		CRM:       strings.TrimSpace(r.CRM),
		Template:  r.Template,
		Active:    true,
	}
}

// SubmitSampleRequest is one presented capture.
// EventID is optional; when set it must name the active event.
type SubmitSampleRequest struct {
	EventID *int64
	Sample  Sample
	Device  string
}

// ConfirmAdmitRequest admits a participant chosen by an operator.
type ConfirmAdmitRequest struct {
	ParticipantID int64
	Device        string
}

// CompanionRequest admits a companion under a responsible participant.
type CompanionRequest struct {
	ResponsibleID int64
	Name          string
}

// ExitRequest records a participant leaving the active event.
type ExitRequest struct {
	ParticipantID int64
	Device        string
}

// AdmitResult is the outcome of an admission attempt.
// Duplicate is set when the ledger returned a recent record instead of writing one.
type AdmitResult struct {
	Admitted    bool
	Duplicate   bool
	Participant *database.StoredParticipant
	Record      database.StoredAccessRecord
	Distance    float64
}

// StatusReport describes the running engine for status endpoints.
type StatusReport struct {
	Backend      string
	Matcher      string
	ActiveEvent  *database.StoredEvent
	Participants int
	Enrolled     int
}

func deviceOr(device, fallback string) string {
	if d := strings.TrimSpace(device); d != "" {
		return d
	}
	return fallback
}
