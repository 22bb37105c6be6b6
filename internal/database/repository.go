package database

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateDocument is returned by CreateParticipant when the document is already taken.
var ErrDuplicateDocument = errors.New("document already registered")

// EventReader provides read-only access to events
type EventReader interface {
	// GetEvent retrieves an event by ID, returns nil if not found
	GetEvent(ctx context.Context, id int64) (*StoredEvent, error)
	// GetActiveEvent returns the single active event, or nil if none is active
	GetActiveEvent(ctx context.Context) (*StoredEvent, error)
	// ListEvents returns all events ordered by date, newest first
	ListEvents(ctx context.Context) ([]StoredEvent, error)
}

// EventWriter provides write access to events
type EventWriter interface {
	EventReader

	// CreateEvent stores a new event and sets its ID and CreatedAt
	CreateEvent(ctx context.Context, event *StoredEvent) error

	// UpdateEventStatus sets the status of an event. endedAt is stored only when non-nil.
	UpdateEventStatus(ctx context.Context, id int64, status EventStatus, endedAt *time.Time) error
}

// ParticipantReader provides read-only access to the roster
type ParticipantReader interface {
	// GetParticipant retrieves a participant by ID, returns nil if not found
	GetParticipant(ctx context.Context, id int64) (*StoredParticipant, error)
	// GetParticipantByDocument retrieves a participant by exact document, returns nil if not found
	GetParticipantByDocument(ctx context.Context, document string) (*StoredParticipant, error)
	// SearchParticipants matches the exact document or an accent-insensitive name substring
	SearchParticipants(ctx context.Context, query string, limit int) ([]StoredParticipant, error)
	// ListParticipants returns the roster ordered by name
	ListParticipants(ctx context.Context) ([]StoredParticipant, error)
	// ListEnrolled returns active participants carrying a template, ordered by ID
	ListEnrolled(ctx context.Context) ([]StoredParticipant, error)
}

// ParticipantWriter provides write access to the roster
type ParticipantWriter interface {
	ParticipantReader

	// CreateParticipant stores a new participant and sets its ID and CreatedAt.
	// Returns ErrDuplicateDocument if the document already exists.
	CreateParticipant(ctx context.Context, p *StoredParticipant) error

	// UpdateParticipantTemplate replaces the biometric template of a participant
	UpdateParticipantTemplate(ctx context.Context, id int64, tmpl Template) error
}

// AccessRecordReader provides read-only access to the access ledger
type AccessRecordReader interface {
	// LatestMatchedRecord returns the most recent matched record for the pair in the
	// given direction, or nil if there is none
	LatestMatchedRecord(ctx context.Context, eventID, participantID int64, dir Direction) (*StoredAccessRecord, error)
	// CountCompanionRecords counts records escorted by responsibleID within the event
	CountCompanionRecords(ctx context.Context, eventID, responsibleID int64) (int, error)
	// ListAccessRecords returns records newest first
	ListAccessRecords(ctx context.Context, filter RecordFilter) ([]StoredAccessRecord, error)
	// SummarizeEvent aggregates the ledger of one event
	SummarizeEvent(ctx context.Context, eventID int64) (*EventSummary, error)
}

// AccessRecordWriter appends to the access ledger
type AccessRecordWriter interface {
	AccessRecordReader

	// InsertAccessRecord appends a record and sets its ID
	InsertAccessRecord(ctx context.Context, rec *StoredAccessRecord) error
}

// Tx is the set of operations available inside a locked unit of work.
type Tx interface {
	EventWriter
	ParticipantWriter
	AccessRecordWriter
}

// TxFunc is a unit of work. Returning an error rolls back every write it made.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is a persistence backend. Its own methods run outside any unit of work.
type Store interface {
	Tx

	// WithLock runs fn in a single transaction, serialized against every other
	// WithLock call that uses the same key.
	WithLock(ctx context.Context, key string, fn TxFunc) error

	// Backend names the implementation for status reporting
	Backend() string

	Close() error
}
