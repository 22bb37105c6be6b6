// Package sqlite implements database.Store on an embedded SQLite file.
// Every write goes through a single-writer Worker; reads use the pool directly.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/KelvinMNH/FaceEventos/internal/config"
	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/names"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements the reader and writer interfaces over a querier.
type queries struct {
	q querier
}

// Store is the SQLite implementation of database.Store.
type Store struct {
	queries
	db     *sql.DB
	writer *Worker
}

var _ database.Store = (*Store)(nil)

// NewStore wraps an open, migrated database and starts its writer.
func NewStore(db *sql.DB) *Store {
	return &Store{queries: queries{q: db}, db: db, writer: NewWorker(db)}
}

// Backend returns the backend name.
func (s *Store) Backend() string { return config.DriverSQLite }

// Close stops the writer and closes the database.
func (s *Store) Close() error {
	s.writer.Close()
	return s.db.Close()
}

// WithLock runs fn as one writer job. The writer serializes every write, so
// the key needs no further handling.
func (s *Store) WithLock(ctx context.Context, key string, fn database.TxFunc) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, queries{q: tx})
	})
}

func (s *Store) write(ctx context.Context, fn func(q queries) error) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(queries{q: tx})
	})
}

// CreateEvent inserts an event through the writer.
func (s *Store) CreateEvent(ctx context.Context, e *database.StoredEvent) error {
	return s.write(ctx, func(q queries) error { return q.CreateEvent(ctx, e) })
}

// UpdateEventStatus updates an event through the writer.
func (s *Store) UpdateEventStatus(ctx context.Context, id int64, status database.EventStatus, endedAt *time.Time) error {
	return s.write(ctx, func(q queries) error { return q.UpdateEventStatus(ctx, id, status, endedAt) })
}

// CreateParticipant inserts a participant through the writer.
func (s *Store) CreateParticipant(ctx context.Context, p *database.StoredParticipant) error {
	return s.write(ctx, func(q queries) error { return q.CreateParticipant(ctx, p) })
}

// UpdateParticipantTemplate updates a template through the writer.
func (s *Store) UpdateParticipantTemplate(ctx context.Context, id int64, tmpl database.Template) error {
	return s.write(ctx, func(q queries) error { return q.UpdateParticipantTemplate(ctx, id, tmpl) })
}

// InsertAccessRecord appends a record through the writer.
func (s *Store) InsertAccessRecord(ctx context.Context, rec *database.StoredAccessRecord) error {
	return s.write(ctx, func(q queries) error { return q.InsertAccessRecord(ctx, rec) })
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// encodeVector stores a vector in pgvector's text form, or NULL when empty.
func encodeVector(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return pgvector.NewVector(v).Value()
}

func decodeVector(s sql.NullString) ([]float32, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var vec pgvector.Vector
	if err := vec.Scan(s.String); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return vec.Slice(), nil
}

// ---- events ----

const eventColumns = `id, name, event_date, event_time, location, image_url, status,
  companions_allowed, max_companions, checkout_enabled, created_at_ms, ended_at_ms`

func scanEvent(scanner interface{ Scan(...any) error }) (database.StoredEvent, error) {
	var e database.StoredEvent
	var status string
	var createdMs int64
	var endedMs sql.NullInt64
	err := scanner.Scan(
		&e.ID, &e.Name, &e.Date, &e.Time, &e.Location, &e.ImageURL, &status,
		&e.Companions.Allowed, &e.Companions.MaxPerEscort, &e.CheckoutEnabled, &createdMs, &endedMs,
	)
	if err != nil {
		return e, err
	}
	e.Status = database.EventStatus(status)
	e.CreatedAt = fromMillis(createdMs)
	if endedMs.Valid {
		t := fromMillis(endedMs.Int64)
		e.EndedAt = &t
	}
	return e, nil
}

func (r queries) getEvent(ctx context.Context, where string, args ...any) (*database.StoredEvent, error) {
	e, err := scanEvent(r.q.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetEvent scan: %w", err)
	}
	return &e, nil
}

func (r queries) GetEvent(ctx context.Context, id int64) (*database.StoredEvent, error) {
	return r.getEvent(ctx, "id = ?", id)
}

func (r queries) GetActiveEvent(ctx context.Context) (*database.StoredEvent, error) {
	return r.getEvent(ctx, "status = 'active' ORDER BY id LIMIT 1")
}

func (r queries) ListEvents(ctx context.Context) ([]database.StoredEvent, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+eventColumns+" FROM events ORDER BY event_date DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("ListEvents query: %w", err)
	}
	defer rows.Close()

	var events []database.StoredEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r queries) CreateEvent(ctx context.Context, e *database.StoredEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = database.EventScheduled
	}
	res, err := r.q.ExecContext(ctx, `
INSERT INTO events(name, event_date, event_time, location, image_url, status,
  companions_allowed, max_companions, checkout_enabled, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		e.Name, e.Date, e.Time, e.Location, e.ImageURL, string(e.Status),
		e.Companions.Allowed, e.Companions.MaxPerEscort, e.CheckoutEnabled, toMillis(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("CreateEvent insert: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (r queries) UpdateEventStatus(ctx context.Context, id int64, status database.EventStatus, endedAt *time.Time) error {
	var ended any
	if endedAt != nil {
		ended = toMillis(*endedAt)
	}
	_, err := r.q.ExecContext(ctx,
		"UPDATE events SET status = ?, ended_at_ms = COALESCE(?, ended_at_ms) WHERE id = ?;",
		string(status), ended, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateEventStatus: %w", err)
	}
	return nil
}

// ---- participants ----

const participantColumns = `id, name, document, companion, gender, birth_date, category, cpf, crm,
  embedding, marker, active, created_at_ms`

func scanParticipant(scanner interface{ Scan(...any) error }) (database.StoredParticipant, error) {
	var p database.StoredParticipant
	var embedding sql.NullString
	var createdMs int64
	err := scanner.Scan(
		&p.ID, &p.Name, &p.Document, &p.Companion, &p.Gender, &p.BirthDate, &p.Category,
		&p.CPF, &p.CRM, &embedding, &p.Template.Marker, &p.Active, &createdMs,
	)
	if err != nil {
		return p, err
	}
	p.CreatedAt = fromMillis(createdMs)
	p.Template.Vector, err = decodeVector(embedding)
	return p, err
}

func (r queries) listParticipants(ctx context.Context, query string, args ...any) ([]database.StoredParticipant, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []database.StoredParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r queries) getParticipant(ctx context.Context, where string, arg any) (*database.StoredParticipant, error) {
	p, err := scanParticipant(r.q.QueryRowContext(ctx, "SELECT "+participantColumns+" FROM participants WHERE "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	return &p, nil
}

func (r queries) GetParticipant(ctx context.Context, id int64) (*database.StoredParticipant, error) {
	return r.getParticipant(ctx, "id = ?", id)
}

func (r queries) GetParticipantByDocument(ctx context.Context, document string) (*database.StoredParticipant, error) {
	return r.getParticipant(ctx, "document = ?", document)
}

func (r queries) SearchParticipants(ctx context.Context, query string, limit int) ([]database.StoredParticipant, error) {
	normalized := names.Normalize(query)
	if normalized == "" {
		return nil, nil
	}
	return r.listParticipants(ctx, `
SELECT `+participantColumns+`
FROM participants
WHERE document = ? OR instr(normalized_name, ?) > 0
ORDER BY normalized_name, id
LIMIT ?;
`, query, normalized, limit)
}

func (r queries) ListParticipants(ctx context.Context) ([]database.StoredParticipant, error) {
	return r.listParticipants(ctx, "SELECT "+participantColumns+" FROM participants ORDER BY normalized_name, id;")
}

func (r queries) ListEnrolled(ctx context.Context) ([]database.StoredParticipant, error) {
	return r.listParticipants(ctx, `
SELECT `+participantColumns+`
FROM participants
WHERE active = 1 AND (embedding IS NOT NULL OR marker <> '')
ORDER BY id;
`)
}

func (r queries) CreateParticipant(ctx context.Context, p *database.StoredParticipant) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	embedding, err := encodeVector(p.Template.Vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	res, err := r.q.ExecContext(ctx, `
INSERT INTO participants(name, normalized_name, document, companion, gender, birth_date,
  category, cpf, crm, embedding, marker, active, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		p.Name, names.Normalize(p.Name), p.Document, p.Companion, p.Gender, p.BirthDate,
		p.Category, p.CPF, p.CRM, embedding, p.Template.Marker, p.Active, toMillis(p.CreatedAt),
	)
	if isUniqueViolation(err) {
		return database.ErrDuplicateDocument
	}
	if err != nil {
		return fmt.Errorf("CreateParticipant insert: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (r queries) UpdateParticipantTemplate(ctx context.Context, id int64, tmpl database.Template) error {
	embedding, err := encodeVector(tmpl.Vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	if _, err := r.q.ExecContext(ctx,
		"UPDATE participants SET embedding = ?, marker = ? WHERE id = ?;",
		embedding, tmpl.Marker, id,
	); err != nil {
		return fmt.Errorf("UpdateParticipantTemplate: %w", err)
	}
	return nil
}

// ---- access records ----

const recordColumns = `a.id, a.event_id, a.participant_id, a.direction, a.outcome, a.device,
  a.responsible_id, a.recorded_at_ms`

func scanRecord(scanner interface{ Scan(...any) error }, extraDest ...any) (database.StoredAccessRecord, error) {
	var rec database.StoredAccessRecord
	var participantID, responsibleID sql.NullInt64
	var direction, outcome string
	var recordedMs int64

	dest := append([]any{
		&rec.ID, &rec.EventID, &participantID, &direction, &outcome, &rec.Device, &responsibleID, &recordedMs,
	}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		return rec, err
	}
	rec.ParticipantID = int64Ptr(participantID)
	rec.ResponsibleID = int64Ptr(responsibleID)
	rec.Direction = database.Direction(direction)
	rec.Outcome = database.Outcome(outcome)
	rec.Timestamp = fromMillis(recordedMs)
	return rec, nil
}

func (r queries) LatestMatchedRecord(ctx context.Context, eventID, participantID int64, dir database.Direction) (*database.StoredAccessRecord, error) {
	rec, err := scanRecord(r.q.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM access_records a
WHERE a.event_id = ? AND a.participant_id = ? AND a.direction = ? AND a.outcome = 'matched'
ORDER BY a.recorded_at_ms DESC, a.id DESC
LIMIT 1;
`, eventID, participantID, string(dir)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LatestMatchedRecord: %w", err)
	}
	return &rec, nil
}

func (r queries) CountCompanionRecords(ctx context.Context, eventID, responsibleID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_records WHERE event_id = ? AND responsible_id = ?;",
		eventID, responsibleID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountCompanionRecords: %w", err)
	}
	return n, nil
}

func (r queries) ListAccessRecords(ctx context.Context, filter database.RecordFilter) ([]database.StoredAccessRecord, error) {
	var where []string
	var args []any
	if filter.EventID != 0 {
		where = append(where, "a.event_id = ?")
		args = append(args, filter.EventID)
	}
	if filter.Outcome != "" {
		where = append(where, "a.outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Direction != "" {
		where = append(where, "a.direction = ?")
		args = append(args, string(filter.Direction))
	}

	query := "SELECT " + recordColumns + ", COALESCE(p.name, ''), COALESCE(p.document, '')" +
		" FROM access_records a LEFT JOIN participants p ON p.id = a.participant_id"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.recorded_at_ms DESC, a.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListAccessRecords query: %w", err)
	}
	defer rows.Close()

	var out []database.StoredAccessRecord
	for rows.Next() {
		var name, document string
		rec, err := scanRecord(rows, &name, &document)
		if err != nil {
			return nil, fmt.Errorf("ListAccessRecords scan: %w", err)
		}
		rec.ParticipantName = name
		rec.ParticipantDocument = document
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r queries) SummarizeEvent(ctx context.Context, eventID int64) (*database.EventSummary, error) {
	s := &database.EventSummary{EventID: eventID}
	err := r.q.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN direction = 'entry' AND outcome = 'matched' THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN direction = 'entry' AND outcome = 'unmatched' THEN 1 ELSE 0 END), 0),
  COUNT(DISTINCT CASE WHEN direction = 'entry' AND outcome = 'matched' THEN participant_id END),
  COALESCE(SUM(CASE WHEN direction = 'entry' AND responsible_id IS NOT NULL THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN direction = 'exit' THEN 1 ELSE 0 END), 0)
FROM access_records
WHERE event_id = ?;
`, eventID).Scan(&s.Total, &s.Matched, &s.Unmatched, &s.UniqueParticipants, &s.Companions, &s.Exits)
	if err != nil {
		return nil, fmt.Errorf("SummarizeEvent: %w", err)
	}
	return s, nil
}

func (r queries) InsertAccessRecord(ctx context.Context, rec *database.StoredAccessRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
INSERT INTO access_records(event_id, participant_id, direction, outcome, device, responsible_id, recorded_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`,
		rec.EventID, nullInt64(rec.ParticipantID), string(rec.Direction), string(rec.Outcome),
		rec.Device, nullInt64(rec.ResponsibleID), toMillis(rec.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("InsertAccessRecord: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	return err
}
