package checkin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KelvinMNH/FaceEventos/internal/config"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// Sample is one presented biometric sample: an embedding vector from the
// capture device, or a marker string in simulation and harness modes.
type Sample struct {
	Vector []float32
	Marker string
}

// Match is the result of Identify. Participant is nil when nothing matched.
type Match struct {
	Participant *database.StoredParticipant
	Distance    float64
}

// Found reports whether a participant was identified.
func (m Match) Found() bool {
	return m.Participant != nil
}

// Matcher resolves a sample against the enrolled roster.
type Matcher interface {
	Identify(sample Sample, enrolled []database.StoredParticipant) (Match, error)
}

// NewMatcher builds the strategy selected by configuration.
// The harness strategy accepts "id:<n>" markers and must never be enabled in production.
func NewMatcher(cfg config.MatcherConfig, index *database.TemplateIndex) (Matcher, error) {
	switch cfg.Strategy {
	case "", config.StrategyEuclidean:
		return NewEuclideanMatcher(cfg.Threshold, cfg.EmbeddingDim, index), nil
	case config.StrategySimulated:
		return MarkerMatcher{}, nil
	case config.StrategyHarness:
		return ForcedMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown matcher strategy %q", cfg.Strategy)
	}
}

// EuclideanMatcher picks the enrolled vector nearest to the sample, provided
// its distance is strictly below the threshold. Ties go to the lowest ID.
type EuclideanMatcher struct {
	threshold float64
	dim       int
	index     *database.TemplateIndex
}

// NewEuclideanMatcher creates a matcher. index may be nil for a full scan.
func NewEuclideanMatcher(threshold float64, dim int, index *database.TemplateIndex) *EuclideanMatcher {
	if threshold <= 0 {
		threshold = constants.DefaultDistanceThreshold
	}
	if dim <= 0 {
		dim = constants.DefaultEmbeddingDim
	}
	return &EuclideanMatcher{threshold: threshold, dim: dim, index: index}
}

// Threshold returns the exclusive distance bound.
func (m *EuclideanMatcher) Threshold() float64 { return m.threshold }

// Dim returns the expected sample length.
func (m *EuclideanMatcher) Dim() int { return m.dim }

// ValidateVector checks a vector against the expected dimensionality.
func ValidateVector(v []float32, dim int) error {
	if len(v) == 0 {
		return invalidSample("empty embedding")
	}
	if len(v) != dim {
		return invalidSample("embedding has %d values, expected %d", len(v), dim)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return invalidSample("embedding value %d is not finite", i)
		}
	}
	return nil
}

func (m *EuclideanMatcher) Identify(sample Sample, enrolled []database.StoredParticipant) (Match, error) {
	if err := ValidateVector(sample.Vector, m.dim); err != nil {
		return Match{}, err
	}

	candidates := m.candidates(sample.Vector, enrolled)

	var best Match
	for i := range candidates {
		p := candidates[i]
		if len(p.Template.Vector) != len(sample.Vector) {
			continue
		}
		d := database.EuclideanDistance(sample.Vector, p.Template.Vector)
		if d >= m.threshold {
			continue
		}
		if best.Participant == nil || d < best.Distance ||
			(d == best.Distance && p.ID < best.Participant.ID) {
			best = Match{Participant: p, Distance: d}
		}
	}
	if best.Participant != nil {
		cp := *best.Participant
		best.Participant = &cp
	}
	return best, nil
}

// candidates narrows the roster through the index when one is configured.
// The roster read for this request is authoritative: participants the index
// does not hold with their current vector are always kept, so a stale index
// cannot hide a fresh enrollment or a re-enrolled template.
func (m *EuclideanMatcher) candidates(vector []float32, enrolled []database.StoredParticipant) []*database.StoredParticipant {
	all := make([]*database.StoredParticipant, 0, len(enrolled))
	for i := range enrolled {
		all = append(all, &enrolled[i])
	}
	if m.index == nil || m.index.Len() == 0 {
		return all
	}

	ids, err := m.index.Search(vector, constants.IndexCandidateCount*database.HNSWSearchMultiplier)
	if err != nil {
		return all
	}
	near := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		near[id] = struct{}{}
	}

	out := make([]*database.StoredParticipant, 0, len(ids))
	for _, p := range all {
		if _, ok := near[p.ID]; ok || !m.index.Current(p.ID, p.Template.Vector) {
			out = append(out, p)
		}
	}
	return out
}

// MarkerMatcher compares the sample marker with stored simulation markers by
// exact equality. Used for demos and load tests without an embedding model.
type MarkerMatcher struct{}

func (MarkerMatcher) Identify(sample Sample, enrolled []database.StoredParticipant) (Match, error) {
	marker := strings.TrimSpace(sample.Marker)
	if marker == "" {
		return Match{}, invalidSample("simulation marker is required")
	}

	var best *database.StoredParticipant
	for i := range enrolled {
		p := &enrolled[i]
		if p.Template.Marker != marker {
			continue
		}
		if best == nil || p.ID < best.ID {
			best = p
		}
	}
	if best == nil {
		return Match{}, nil
	}
	cp := *best
	return Match{Participant: &cp}, nil
}

// ForcedMatcher resolves "id:<n>" markers straight to participant n.
// It exists for test harnesses only and is reachable solely through configuration.
type ForcedMatcher struct{}

var errForcedMarker = errors.New(`harness marker must look like "id:<participant id>"`)

func (ForcedMatcher) Identify(sample Sample, enrolled []database.StoredParticipant) (Match, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(sample.Marker), "id:")
	if !ok {
		return Match{}, fmt.Errorf("%w: %w", ErrInvalidSample, errForcedMarker)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Match{}, fmt.Errorf("%w: %w", ErrInvalidSample, errForcedMarker)
	}
	for i := range enrolled {
		if enrolled[i].ID == id {
			cp := enrolled[i]
			return Match{Participant: &cp}, nil
		}
	}
	return Match{}, nil
}
