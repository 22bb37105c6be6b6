package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/names"
)

const participantColumns = `id, name, document, companion, gender, birth_date, category, cpf, crm,
	embedding, marker, active, created_at`

func scanParticipant(scanner interface{ Scan(...any) error }) (database.StoredParticipant, error) {
	var p database.StoredParticipant
	var embedding sql.NullString
	err := scanner.Scan(
		&p.ID, &p.Name, &p.Document, &p.Companion, &p.Gender, &p.BirthDate, &p.Category,
		&p.CPF, &p.CRM, &embedding, &p.Template.Marker, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	if embedding.Valid {
		var vec pgvector.Vector
		if err := vec.Scan(embedding.String); err != nil {
			return p, fmt.Errorf("parse embedding: %w", err)
		}
		p.Template.Vector = vec.Slice()
	}
	return p, nil
}

func scanParticipants(rows *sql.Rows) ([]database.StoredParticipant, error) {
	var out []database.StoredParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

// embeddingArg returns the vector parameter, or nil for a NULL column.
func embeddingArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func (r queries) getParticipant(ctx context.Context, where string, arg any) (*database.StoredParticipant, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+participantColumns+" FROM participants WHERE "+where, arg)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan participant: %w", err)
	}
	return &p, nil
}

// GetParticipant retrieves a participant by ID, returns nil if not found
func (r queries) GetParticipant(ctx context.Context, id int64) (*database.StoredParticipant, error) {
	return r.getParticipant(ctx, "id = $1", id)
}

// GetParticipantByDocument retrieves a participant by exact document
func (r queries) GetParticipantByDocument(ctx context.Context, document string) (*database.StoredParticipant, error) {
	return r.getParticipant(ctx, "document = $1", document)
}

// SearchParticipants matches the exact document or an accent-insensitive name substring.
// The normalized name is computed in Go on write, so no unaccent extension is needed.
func (r queries) SearchParticipants(ctx context.Context, query string, limit int) ([]database.StoredParticipant, error) {
	normalized := names.Normalize(query)
	if normalized == "" {
		return nil, nil
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE document = $1 OR strpos(normalized_name, $2) > 0
		ORDER BY normalized_name, id
		LIMIT $3
	`, query, normalized, limit)
	if err != nil {
		return nil, fmt.Errorf("search participants: %w", err)
	}
	defer rows.Close()

	return scanParticipants(rows)
}

// ListParticipants returns the roster ordered by name
func (r queries) ListParticipants(ctx context.Context) ([]database.StoredParticipant, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+participantColumns+" FROM participants ORDER BY normalized_name, id")
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	return scanParticipants(rows)
}

// ListEnrolled returns active participants carrying a template, ordered by ID
func (r queries) ListEnrolled(ctx context.Context) ([]database.StoredParticipant, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE active AND (embedding IS NOT NULL OR marker <> '')
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query enrolled participants: %w", err)
	}
	defer rows.Close()

	return scanParticipants(rows)
}

// CreateParticipant inserts a participant and sets its ID.
// Returns database.ErrDuplicateDocument when the document is taken.
func (r queries) CreateParticipant(ctx context.Context, p *database.StoredParticipant) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO participants (name, normalized_name, document, companion, gender, birth_date,
			category, cpf, crm, embedding, marker, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.q.QueryRowContext(ctx, query,
		p.Name, names.Normalize(p.Name), p.Document, p.Companion, p.Gender, p.BirthDate,
		p.Category, p.CPF, p.CRM, embeddingArg(p.Template.Vector), p.Template.Marker, p.Active, p.CreatedAt,
	).Scan(&p.ID)
	if isUniqueViolation(err) {
		return database.ErrDuplicateDocument
	}
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// UpdateParticipantTemplate replaces the biometric template of a participant
func (r queries) UpdateParticipantTemplate(ctx context.Context, id int64, tmpl database.Template) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE participants SET embedding = $2, marker = $3 WHERE id = $1",
		id, embeddingArg(tmpl.Vector), tmpl.Marker,
	)
	if err != nil {
		return fmt.Errorf("update participant template: %w", err)
	}
	return nil
}
