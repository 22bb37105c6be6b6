package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// LatestMatchedRecord returns the most recent matched record of a participant
// in an event for the given direction, or nil.
func (r queries) LatestMatchedRecord(ctx context.Context, eventID, participantID int64, dir database.Direction) (*database.StoredAccessRecord, error) {
	query := `
		SELECT id, event_id, participant_id, direction, outcome, device, responsible_id, recorded_at
		FROM access_records
		WHERE event_id = $1 AND participant_id = $2 AND direction = $3 AND outcome = 'matched'
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`
	rec, err := scanRecord(r.q.QueryRowContext(ctx, query, eventID, participantID, string(dir)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest record: %w", err)
	}
	return &rec, nil
}

// CountCompanionRecords counts records escorted by responsibleID in an event
func (r queries) CountCompanionRecords(ctx context.Context, eventID, responsibleID int64) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_records WHERE event_id = $1 AND responsible_id = $2",
		eventID, responsibleID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count companion records: %w", err)
	}
	return count, nil
}

func scanRecord(scanner interface{ Scan(...any) error }, extraDest ...any) (database.StoredAccessRecord, error) {
	var rec database.StoredAccessRecord
	var participantID, responsibleID sql.NullInt64
	var direction, outcome string

	dest := append([]any{
		&rec.ID, &rec.EventID, &participantID, &direction, &outcome, &rec.Device, &responsibleID, &rec.Timestamp,
	}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		return rec, err
	}

	rec.ParticipantID = int64Ptr(participantID)
	rec.ResponsibleID = int64Ptr(responsibleID)
	rec.Direction = database.Direction(direction)
	rec.Outcome = database.Outcome(outcome)
	return rec, nil
}

// ListAccessRecords returns records matching filter, newest first, joined with participant data
func (r queries) ListAccessRecords(ctx context.Context, filter database.RecordFilter) ([]database.StoredAccessRecord, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.EventID != 0 {
		add("a.event_id = $%d", filter.EventID)
	}
	if filter.Outcome != "" {
		add("a.outcome = $%d", string(filter.Outcome))
	}
	if filter.Direction != "" {
		add("a.direction = $%d", string(filter.Direction))
	}

	query := `
		SELECT a.id, a.event_id, a.participant_id, a.direction, a.outcome, a.device, a.responsible_id,
		       a.recorded_at, COALESCE(p.name, ''), COALESCE(p.document, '')
		FROM access_records a
		LEFT JOIN participants p ON p.id = a.participant_id
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.recorded_at DESC, a.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query access records: %w", err)
	}
	defer rows.Close()

	var records []database.StoredAccessRecord
	for rows.Next() {
		var name, document string
		rec, err := scanRecord(rows, &name, &document)
		if err != nil {
			return nil, fmt.Errorf("scan access record: %w", err)
		}
		rec.ParticipantName = name
		rec.ParticipantDocument = document
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access records: %w", err)
	}
	return records, nil
}

// SummarizeEvent aggregates the ledger of one event
func (r queries) SummarizeEvent(ctx context.Context, eventID int64) (*database.EventSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE direction = 'entry' AND outcome = 'matched'),
			COUNT(*) FILTER (WHERE direction = 'entry' AND outcome = 'unmatched'),
			COUNT(DISTINCT participant_id) FILTER (WHERE direction = 'entry' AND outcome = 'matched'),
			COUNT(*) FILTER (WHERE direction = 'entry' AND responsible_id IS NOT NULL),
			COUNT(*) FILTER (WHERE direction = 'exit')
		FROM access_records
		WHERE event_id = $1
	`
	s := &database.EventSummary{EventID: eventID}
	err := r.q.QueryRowContext(ctx, query, eventID).Scan(
		&s.Total, &s.Matched, &s.Unmatched, &s.UniqueParticipants, &s.Companions, &s.Exits,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize event: %w", err)
	}
	return s, nil
}

// InsertAccessRecord appends a record and sets its ID
func (r queries) InsertAccessRecord(ctx context.Context, rec *database.StoredAccessRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	query := `
		INSERT INTO access_records (event_id, participant_id, direction, outcome, device, responsible_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.q.QueryRowContext(ctx, query,
		rec.EventID, nullInt64(rec.ParticipantID), string(rec.Direction), string(rec.Outcome),
		rec.Device, nullInt64(rec.ResponsibleID), rec.Timestamp,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert access record: %w", err)
	}
	return nil
}
