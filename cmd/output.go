package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// parseID parses a positional numeric identifier.
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

// parseVector parses a comma-separated list of floats.
func parseVector(s string) ([]float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vector := make([]float32, 0, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("vector component %d: %w", i, err)
		}
		vector = append(vector, float32(f))
	}
	return vector, nil
}

func participantLabel(id *int64, name string) string {
	switch {
	case id == nil:
		return "-"
	case name != "":
		return fmt.Sprintf("%s (#%d)", name, *id)
	default:
		return fmt.Sprintf("#%d", *id)
	}
}

func eventSchedule(e *database.StoredEvent) string {
	if e.Time == "" {
		return e.Date
	}
	return e.Date + " " + e.Time
}
