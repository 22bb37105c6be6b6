package roster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/database/mock"
)

func newService() *checkin.Service {
	return checkin.NewService(mock.NewMockStore(), checkin.Options{
		Matcher: checkin.MarkerMatcher{},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestDemo(t *testing.T) {
	f := Demo()
	if f.Event == nil || f.Event.Name != "UniEvento Tech 2026" {
		t.Fatalf("unexpected demo event %+v", f.Event)
	}
	if !f.Event.CompanionsAllowed || f.Event.MaxCompanions != 2 {
		t.Errorf("expected companions allowed with max 2, got %+v", f.Event)
	}
	if len(f.Participants) != 20 {
		t.Fatalf("expected 20 participants, got %d", len(f.Participants))
	}

	docs := make(map[string]bool)
	for i, p := range f.Participants {
		if want := "bio_" + itoa(i+1); p.Marker != want {
			t.Errorf("participant %d marker = %q, want %q", i, p.Marker, want)
		}
		if docs[p.Document] {
			t.Errorf("duplicate document %s", p.Document)
		}
		docs[p.Document] = true
	}
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return itoa(n/10) + string(rune('0'+n%10))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantLen int
		wantVec int
	}{
		{"participants only", "participants:\n  - name: A\n    document: \"1\"\n", false, 1, 0},
		{"with vector", "participants:\n  - name: A\n    document: \"1\"\n    vector: [0.1, 0.2, 0.3]\n", false, 1, 3},
		{"empty", "", false, 0, 0},
		{"malformed", "participants: [", true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(f.Participants) != tt.wantLen {
				t.Fatalf("expected %d participants, got %d", tt.wantLen, len(f.Participants))
			}
			if tt.wantLen > 0 && len(f.Participants[0].Vector) != tt.wantVec {
				t.Errorf("expected vector of %d, got %d", tt.wantVec, len(f.Participants[0].Vector))
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte("participants:\n  - name: A\n    document: \"1\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := LoadFile(path)
	if err != nil || len(f.Participants) != 1 {
		t.Fatalf("LoadFile: %+v, %v", f, err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestImport_Demo(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	progress := 0
	report, err := Import(ctx, svc, Demo(), Options{Activate: true, OnProgress: func() { progress++ }})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Enrolled != 20 || report.Skipped != 0 || len(report.Failed) != 0 || progress != 20 {
		t.Errorf("unexpected report %+v (progress %d)", report, progress)
	}
	if report.Event == nil || report.Event.Status != database.EventActive {
		t.Fatalf("expected active event, got %+v", report.Event)
	}

	res, err := svc.SubmitSample(ctx, checkin.SubmitSampleRequest{Sample: checkin.Sample{Marker: "bio_7"}})
	if err != nil {
		t.Fatalf("SubmitSample: %v", err)
	}
	if !res.Admitted || res.Participant.Name != "Gabriela Nunes" {
		t.Errorf("expected bio_7 to admit Gabriela Nunes, got %+v", res)
	}
}

func TestImport_SkipsAndCollects(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	f := &File{Participants: []Participant{
		{Name: "A", Document: "1"},
		{Name: "A again", Document: "1"},
		{Name: "", Document: "2"},
		{Name: "C", Document: "3", Gender: "X"},
		{Name: "D", Document: "4", Marker: "bio_4"},
	}}
	report, err := Import(ctx, svc, f, Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Event != nil {
		t.Error("expected no event")
	}
	if report.Enrolled != 2 || report.Skipped != 1 || len(report.Failed) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Failed[0].Row != 3 || !errors.Is(report.Failed[0].Err, checkin.ErrInvalidRequest) {
		t.Errorf("unexpected first failure %+v", report.Failed[0])
	}
}
