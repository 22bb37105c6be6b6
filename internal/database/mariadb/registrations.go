package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KelvinMNH/FaceEventos/internal/roster"
)

// registrationsQuery selects confirmed registrations. The event code filter is
// skipped when the argument is empty.
const registrationsQuery = `
	SELECT full_name, document, COALESCE(gender, ''), birth_date,
	       COALESCE(category, ''), COALESCE(cpf, ''), COALESCE(crm, ''), embedding_json
	FROM registrations
	WHERE status = 'confirmed' AND (? = '' OR event_code = ?)
	ORDER BY full_name, document
`

// ListRegistrations returns the confirmed registrations of eventCode (all
// events when empty) as roster rows. Face descriptors stored by the
// registration form in embedding_json ([e1, ..., e128]) become templates.
func (p *Pool) ListRegistrations(ctx context.Context, eventCode string) ([]roster.Participant, error) {
	rows, err := p.db.QueryContext(ctx, registrationsQuery, eventCode, eventCode)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	var out []roster.Participant
	for rows.Next() {
		var (
			r         roster.Participant
			birthDate sql.NullString
			embedding []byte
		)
		if err := rows.Scan(&r.Name, &r.Document, &r.Gender, &birthDate,
			&r.Category, &r.CPF, &r.CRM, &embedding); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if birthDate.Valid {
			r.BirthDate = birthDate.String
		}
		r.Gender = normalizeGender(r.Gender)
		r.Category = normalizeCategory(r.Category)
		if r.Vector, err = decodeEmbedding(embedding); err != nil {
			return nil, fmt.Errorf("registration %s: %w", r.Document, err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// decodeEmbedding parses a JSON descriptor. NULL and empty columns yield nil.
func decodeEmbedding(data []byte) ([]float32, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return v, nil
}

// The registration form stores free text; map it onto the values the roster accepts.
func normalizeGender(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MASCULINO":
		return "M"
	case "F", "FEMININO":
		return "F"
	case "":
		return ""
	default:
		return "Outro"
	}
}

func normalizeCategory(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "medico", "médico":
		return "Medico"
	default:
		return "Outros"
	}
}
