package sqlite_test

import (
	"context"
	"strings"
	"testing"

	"github.com/KelvinMNH/FaceEventos/internal/database/sqlite"
)

// openTestStore returns a store over a fresh in-memory database with the
// production schema. It is closed automatically when the test finishes.
func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	name := "test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlite.OpenDB(context.Background(), sqlite.MemoryDSN(name))
	if err != nil {
		t.Fatalf("openTestStore: %v", err)
	}

	s := sqlite.NewStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}
