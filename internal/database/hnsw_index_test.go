package database

import (
	"errors"
	"slices"
	"testing"
)

func axisVector(dim, axis int, scale float32) []float32 {
	v := make([]float32, dim)
	v[axis] = scale
	return v
}

func TestTemplateIndex_Search(t *testing.T) {
	idx := NewTemplateIndex(4)
	idx.Build([]StoredParticipant{
		{ID: 1, Active: true, Template: Template{Vector: axisVector(4, 0, 1)}},
		{ID: 2, Active: true, Template: Template{Vector: axisVector(4, 1, 1)}},
		{ID: 3, Active: true, Template: Template{Vector: axisVector(4, 2, 1)}},
		{ID: 4, Active: false, Template: Template{Vector: axisVector(4, 3, 1)}},
		{ID: 5, Active: true, Template: Template{Marker: "bio_5"}},
	})

	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed templates, got %d", idx.Len())
	}

	ids, err := idx.Search([]float32{0, 0.9, 0.1, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("expected nearest participant 2, got %v", ids)
	}
}

func TestTemplateIndex_Upsert(t *testing.T) {
	idx := NewTemplateIndex(2)
	idx.Upsert(StoredParticipant{ID: 7, Active: true, Template: Template{Vector: []float32{1, 0}}})
	idx.Upsert(StoredParticipant{ID: 8, Active: true, Template: Template{Vector: []float32{0, 1}}})

	// Re-enroll 7 near 8's position
	idx.Upsert(StoredParticipant{ID: 7, Active: true, Template: Template{Vector: []float32{0.1, 0.9}}})

	ids, err := idx.Search([]float32{0.1, 0.9}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !slices.Contains(ids, 7) {
		t.Errorf("expected re-enrolled participant 7 among results, got %v", ids)
	}
	if idx.Len() != 2 {
		t.Errorf("expected 2 templates after re-enrollment, got %d", idx.Len())
	}
}

func TestTemplateIndex_Empty(t *testing.T) {
	idx := NewTemplateIndex(2)
	if _, err := idx.Search([]float32{0, 1}, 1); !errors.Is(err, ErrIndexEmpty) {
		t.Errorf("expected ErrIndexEmpty, got %v", err)
	}
}

func TestTemplateIndex_Has(t *testing.T) {
	idx := NewTemplateIndex(2)
	idx.Upsert(StoredParticipant{ID: 3, Active: true, Template: Template{Vector: []float32{1, 1}}})
	if !idx.Has(3) {
		t.Error("expected participant 3 to be indexed")
	}
	idx.Upsert(StoredParticipant{ID: 3, Active: true, Template: Template{Marker: "bio_3"}})
	if idx.Has(3) {
		t.Error("expected participant 3 to be dropped after switching to a marker template")
	}
}

func TestTemplateIndex_Current(t *testing.T) {
	idx := NewTemplateIndex(2)
	idx.Upsert(StoredParticipant{ID: 3, Active: true, Template: Template{Vector: []float32{1, 1}}})

	tests := []struct {
		name   string
		id     int64
		vector []float32
		want   bool
	}{
		{"same vector", 3, []float32{1, 1}, true},
		{"re-enrolled vector", 3, []float32{0, 1}, false},
		{"not indexed", 4, []float32{1, 1}, false},
		{"no vector", 3, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idx.Current(tt.id, tt.vector); got != tt.want {
				t.Errorf("Current(%d, %v) = %v, want %v", tt.id, tt.vector, got, tt.want)
			}
		})
	}
}
