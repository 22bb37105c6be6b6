// Package roster loads participant rosters and imports them into the engine.
package roster

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

//go:embed demo.yaml
var demoYAML []byte

// Event is the event block of a roster file.
type Event struct {
	Name              string `yaml:"name"`
	Date              string `yaml:"date"`
	Time              string `yaml:"time"`
	Location          string `yaml:"location"`
	ImageURL          string `yaml:"image_url"`
	CompanionsAllowed bool   `yaml:"companions_allowed"`
	MaxCompanions     int    `yaml:"max_companions"`
	CheckoutEnabled   bool   `yaml:"checkout_enabled"`
}

// Participant is one roster row. Either Vector or Marker enrolls a template.
type Participant struct {
	Name      string    `yaml:"name"`
	Document  string    `yaml:"document"`
	Gender    string    `yaml:"gender"`
	BirthDate string    `yaml:"birth_date"`
	Category  string    `yaml:"category"`
	CPF       string    `yaml:"cpf"`
	CRM       string    `yaml:"crm"`
	Vector    []float32 `yaml:"vector,flow"`
	Marker    string    `yaml:"marker"`
}

// File is a roster file: an optional event and its participants.
type File struct {
	Event        *Event        `yaml:"event"`
	Participants []Participant `yaml:"participants"`
}

// Parse decodes a YAML roster.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return &f, nil
}

// LoadFile reads and decodes a YAML roster from disk.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

// Demo returns the embedded demo roster: twenty participants with simulation
// markers bio_1..bio_20 and the default event.
func Demo() *File {
	f, err := Parse(demoYAML)
	if err != nil {
		// embedded file, cannot happen outside development
		panic("failed to unmarshal embedded demo.yaml: " + err.Error())
	}
	return f
}

func (p Participant) request() checkin.CreateParticipantRequest {
	return checkin.CreateParticipantRequest{
		Name:      p.Name,
		Document:  p.Document,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
		Category:  p.Category,
		CPF:       p.CPF,
		CRM:       p.CRM,
		Template:  database.Template{Vector: p.Vector, Marker: p.Marker},
	}
}

func (e Event) request() checkin.CreateEventRequest {
	return checkin.CreateEventRequest{
		Name:              e.Name,
		Date:              e.Date,
		Time:              e.Time,
		Location:          e.Location,
		ImageURL:          e.ImageURL,
		CompanionsAllowed: e.CompanionsAllowed,
		MaxCompanions:     e.MaxCompanions,
		CheckoutEnabled:   e.CheckoutEnabled,
	}
}

// Engine is the part of checkin.Service an import needs.
type Engine interface {
	CreateEvent(ctx context.Context, req checkin.CreateEventRequest) (*database.StoredEvent, error)
	ActivateEvent(ctx context.Context, id int64) (*database.StoredEvent, error)
	EnrollParticipant(ctx context.Context, req checkin.CreateParticipantRequest) (*database.StoredParticipant, error)
}

// Options controls an import.
type Options struct {
	Activate   bool   // activate the imported event
	OnProgress func() // called once per participant processed
}

// RowError is a participant that could not be imported.
type RowError struct {
	Row      int
	Document string
	Err      error
}

// Report summarizes an import.
type Report struct {
	Event    *database.StoredEvent
	Enrolled int
	Skipped  int // document already registered
	Failed   []RowError
}

// Import creates the file's event (when present) and enrolls every
// participant. Already registered documents are skipped, invalid rows are
// collected in the report and do not stop the import.
func Import(ctx context.Context, engine Engine, f *File, opts Options) (*Report, error) {
	report := &Report{}

	if f.Event != nil {
		event, err := engine.CreateEvent(ctx, f.Event.request())
		if err != nil {
			return nil, fmt.Errorf("create event: %w", err)
		}
		if opts.Activate {
			if event, err = engine.ActivateEvent(ctx, event.ID); err != nil {
				return nil, fmt.Errorf("activate event: %w", err)
			}
		}
		report.Event = event
	}

	for i, p := range f.Participants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := engine.EnrollParticipant(ctx, p.request())
		switch {
		case err == nil:
			report.Enrolled++
		case errors.Is(err, checkin.ErrDocumentAlreadyRegistered):
			report.Skipped++
		case errors.Is(err, checkin.ErrStoreUnavailable):
			return report, err
		default:
			report.Failed = append(report.Failed, RowError{Row: i + 1, Document: p.Document, Err: err})
		}
		if opts.OnProgress != nil {
			opts.OnProgress()
		}
	}
	return report, nil
}
