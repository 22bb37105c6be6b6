package database

import (
	"errors"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// ErrIndexEmpty is returned by Search when no template has been indexed.
var ErrIndexEmpty = errors.New("template index is empty")

// TemplateIndex wraps an HNSW graph over participant embedding vectors.
// It only narrows the candidate set; callers re-check distances exactly.
type TemplateIndex struct {
	graph *hnsw.Graph[int64]
	ids   map[int64][]float32 // indexed vector per participant
	dim   int
	mu    sync.RWMutex
}

// NewTemplateIndex creates an empty index accepting vectors of length dim.
func NewTemplateIndex(dim int) *TemplateIndex {
	return &TemplateIndex{dim: dim, ids: make(map[int64][]float32)}
}

func newTemplateGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index content with the vectors of the given participants.
// Participants without a vector of the index dimension are skipped.
func (h *TemplateIndex) Build(participants []StoredParticipant) {
	g := newTemplateGraph()
	ids := make(map[int64][]float32, len(participants))
	for i := range participants {
		p := &participants[i]
		if !p.Active || len(p.Template.Vector) != h.dim {
			continue
		}
		v := slices.Clone(p.Template.Vector)
		g.Add(hnsw.MakeNode(p.ID, v))
		ids[p.ID] = v
	}

	h.mu.Lock()
	h.graph = g
	h.ids = ids
	h.mu.Unlock()
}

// Upsert adds or replaces the vector of one participant.
func (h *TemplateIndex) Upsert(p StoredParticipant) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = newTemplateGraph()
	}
	if _, ok := h.ids[p.ID]; ok {
		h.graph.Delete(p.ID)
		delete(h.ids, p.ID)
	}
	if !p.Active || len(p.Template.Vector) != h.dim {
		return
	}
	v := slices.Clone(p.Template.Vector)
	h.graph.Add(hnsw.MakeNode(p.ID, v))
	h.ids[p.ID] = v
}

// Has reports whether the participant's vector is indexed.
func (h *TemplateIndex) Has(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.ids[id]
	return ok
}

// Current reports whether the participant is indexed with exactly vector.
// A participant re-enrolled elsewhere since the index was loaded is not current.
func (h *TemplateIndex) Current(id int64, vector []float32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	indexed, ok := h.ids[id]
	return ok && slices.Equal(indexed, vector)
}

// Search returns the IDs of up to k participants nearest to query.
func (h *TemplateIndex) Search(query []float32, k int) ([]int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || len(h.ids) == 0 {
		return nil, ErrIndexEmpty
	}
	if len(query) != h.dim {
		return nil, errors.New("query dimension does not match index")
	}

	neighbors := h.graph.Search(query, k)
	ids := make([]int64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids, nil
}

// Len returns the number of indexed templates.
func (h *TemplateIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ids)
}
