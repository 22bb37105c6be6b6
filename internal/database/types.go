package database

import (
	"time"
)

// EventStatus is the lifecycle state of an event
type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventActive    EventStatus = "active"
	EventFinished  EventStatus = "finished"
)

// Direction is the passage direction of an access record
type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// Outcome is the recognition result of an access record
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeUnmatched Outcome = "unmatched"
)

// CompanionPolicy controls escorted admissions for an event.
// MaxPerEscort of 0 means unlimited.
type CompanionPolicy struct {
	Allowed      bool
	MaxPerEscort int
}

// StoredEvent represents an event stored in the database
type StoredEvent struct {
	ID              int64
	Name            string
	Date            string // YYYY-MM-DD
	Time            string // HH:MM, empty if not scheduled
	Location        string
	ImageURL        string
	Status          EventStatus
	Companions      CompanionPolicy
	CheckoutEnabled bool
	CreatedAt       time.Time
	EndedAt         *time.Time
}

// Template is a participant's biometric template: an embedding vector or,
// in simulation mode, an opaque marker string. Both empty means not enrolled.
type Template struct {
	Vector []float32
	Marker string
}

// IsEmpty returns true if neither a vector nor a marker is set
func (t Template) IsEmpty() bool {
	return len(t.Vector) == 0 && t.Marker == ""
}

// StoredParticipant represents a participant stored in the database
type StoredParticipant struct {
	ID        int64
	Name      string
	Document  string
	Companion bool
	Gender    string // M, F, Outro or empty
	BirthDate string // YYYY-MM-DD or empty
	Category  string // Medico, Outros or empty
	CPF       string
	CRM       string
	Template  Template
	Active    bool
	CreatedAt time.Time
}

// StoredAccessRecord represents one entry of the access ledger
type StoredAccessRecord struct {
	ID            int64
	EventID       int64
	ParticipantID *int64 // nil when no participant was matched
	Direction     Direction
	Outcome       Outcome
	Device        string
	ResponsibleID *int64 // set only for companion admissions
	Timestamp     time.Time

	// Joined for listings, empty on insert
	ParticipantName     string
	ParticipantDocument string
}

// RecordFilter selects access records for listings. Zero values mean no filter.
type RecordFilter struct {
	EventID   int64
	Outcome   Outcome
	Direction Direction
	Limit     int
}

// EventSummary aggregates the access ledger of one event
type EventSummary struct {
	EventID            int64 `json:"event_id"`
	Total              int   `json:"total"`
	Matched            int   `json:"matched"`
	Unmatched          int   `json:"unmatched"`
	UniqueParticipants int   `json:"unique_participants"`
	Companions         int   `json:"companions"`
	Exits              int   `json:"exits"`
}
