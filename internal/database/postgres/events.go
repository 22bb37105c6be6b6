package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

const eventColumns = `id, name, to_char(event_date, 'YYYY-MM-DD'), event_time, location, image_url,
	status, companions_allowed, max_companions, checkout_enabled, created_at, ended_at`

func scanEvent(scanner interface{ Scan(...any) error }) (database.StoredEvent, error) {
	var e database.StoredEvent
	var status string
	var endedAt sql.NullTime
	err := scanner.Scan(
		&e.ID, &e.Name, &e.Date, &e.Time, &e.Location, &e.ImageURL,
		&status, &e.Companions.Allowed, &e.Companions.MaxPerEscort, &e.CheckoutEnabled,
		&e.CreatedAt, &endedAt,
	)
	if err != nil {
		return e, err
	}
	e.Status = database.EventStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		e.EndedAt = &t
	}
	return e, nil
}

func (r queries) getEvent(ctx context.Context, where string, args ...any) (*database.StoredEvent, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE "+where, args...)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}

// GetEvent retrieves an event by ID, returns nil if not found
func (r queries) GetEvent(ctx context.Context, id int64) (*database.StoredEvent, error) {
	return r.getEvent(ctx, "id = $1", id)
}

// GetActiveEvent returns the active event, or nil if none is active
func (r queries) GetActiveEvent(ctx context.Context) (*database.StoredEvent, error) {
	return r.getEvent(ctx, "status = 'active' ORDER BY id LIMIT 1")
}

// ListEvents returns all events, newest date first
func (r queries) ListEvents(ctx context.Context) ([]database.StoredEvent, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+eventColumns+" FROM events ORDER BY event_date DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []database.StoredEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// CreateEvent inserts an event and sets its ID
func (r queries) CreateEvent(ctx context.Context, e *database.StoredEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = database.EventScheduled
	}

	query := `
		INSERT INTO events (name, event_date, event_time, location, image_url, status,
			companions_allowed, max_companions, checkout_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.q.QueryRowContext(ctx, query,
		e.Name, e.Date, e.Time, e.Location, e.ImageURL, string(e.Status),
		e.Companions.Allowed, e.Companions.MaxPerEscort, e.CheckoutEnabled, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpdateEventStatus sets the status of an event. A nil endedAt keeps the stored end time.
func (r queries) UpdateEventStatus(ctx context.Context, id int64, status database.EventStatus, endedAt *time.Time) error {
	var ended sql.NullTime
	if endedAt != nil {
		ended = sql.NullTime{Time: *endedAt, Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		"UPDATE events SET status = $2, ended_at = COALESCE($3, ended_at) WHERE id = $1",
		id, string(status), ended,
	)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	return nil
}
