// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/names"
)

// MockStore is an in-memory database.Store.
// WithLock serializes per key and undoes all writes of a failed unit of work.
type MockStore struct {
	mu           sync.RWMutex
	events       map[int64]*database.StoredEvent
	participants map[int64]*database.StoredParticipant
	records      []database.StoredAccessRecord
	nextID       map[string]int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// Error injection
	GetActiveEventError     error
	ListEnrolledError       error
	InsertAccessRecordError error
	CreateParticipantError  error
	WithLockError           error
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{
		events:       make(map[int64]*database.StoredEvent),
		participants: make(map[int64]*database.StoredParticipant),
		nextID:       make(map[string]int64),
		locks:        make(map[string]*sync.Mutex),
	}
}

func (m *MockStore) id(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

// Backend returns the backend name
func (m *MockStore) Backend() string { return "memory" }

// Close is a no-op
func (m *MockStore) Close() error { return nil }

func (m *MockStore) keyLock(key string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// WithLock runs fn serialized per key, rolling back its writes on error
func (m *MockStore) WithLock(ctx context.Context, key string, fn database.TxFunc) error {
	if m.WithLockError != nil {
		return m.WithLockError
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l := m.keyLock(key)
	l.Lock()
	defer l.Unlock()

	tx := &mockTx{MockStore: m}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// mockTx records an undo step for every write so a failed unit of work leaves no trace.
type mockTx struct {
	*MockStore
	undo []func()
}

func (t *mockTx) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (t *mockTx) CreateEvent(ctx context.Context, event *database.StoredEvent) error {
	if err := t.MockStore.CreateEvent(ctx, event); err != nil {
		return err
	}
	id := event.ID
	t.undo = append(t.undo, func() { delete(t.events, id) })
	return nil
}

func (t *mockTx) UpdateEventStatus(ctx context.Context, id int64, status database.EventStatus, endedAt *time.Time) error {
	t.mu.RLock()
	prev, ok := t.events[id]
	var saved database.StoredEvent
	if ok {
		saved = *prev
	}
	t.mu.RUnlock()

	if err := t.MockStore.UpdateEventStatus(ctx, id, status, endedAt); err != nil {
		return err
	}
	if ok {
		t.undo = append(t.undo, func() { *t.events[id] = saved })
	}
	return nil
}

func (t *mockTx) CreateParticipant(ctx context.Context, p *database.StoredParticipant) error {
	if err := t.MockStore.CreateParticipant(ctx, p); err != nil {
		return err
	}
	id := p.ID
	t.undo = append(t.undo, func() { delete(t.participants, id) })
	return nil
}

func (t *mockTx) UpdateParticipantTemplate(ctx context.Context, id int64, tmpl database.Template) error {
	t.mu.RLock()
	var saved database.Template
	if p, ok := t.participants[id]; ok {
		saved = p.Template
	}
	t.mu.RUnlock()

	if err := t.MockStore.UpdateParticipantTemplate(ctx, id, tmpl); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		if p, ok := t.participants[id]; ok {
			p.Template = saved
		}
	})
	return nil
}

func (t *mockTx) InsertAccessRecord(ctx context.Context, rec *database.StoredAccessRecord) error {
	if err := t.MockStore.InsertAccessRecord(ctx, rec); err != nil {
		return err
	}
	id := rec.ID
	t.undo = append(t.undo, func() {
		t.records = slices.DeleteFunc(t.records, func(r database.StoredAccessRecord) bool { return r.ID == id })
	})
	return nil
}

// AddEvent stores an event directly, assigning an ID when zero
func (m *MockStore) AddEvent(event database.StoredEvent) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == 0 {
		event.ID = m.id("events")
	} else if event.ID > m.nextID["events"] {
		m.nextID["events"] = event.ID
	}
	if event.Status == "" {
		event.Status = database.EventScheduled
	}
	m.events[event.ID] = &event
	return event.ID
}

// AddParticipant stores a participant directly, assigning an ID when zero
func (m *MockStore) AddParticipant(p database.StoredParticipant) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.id("participants")
	} else if p.ID > m.nextID["participants"] {
		m.nextID["participants"] = p.ID
	}
	m.participants[p.ID] = &p
	return p.ID
}

// AddRecord appends a record directly, assigning an ID when zero
func (m *MockStore) AddRecord(rec database.StoredAccessRecord) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = m.id("records")
	}
	m.records = append(m.records, rec)
	return rec.ID
}

// Records returns a copy of every stored access record in insertion order
func (m *MockStore) Records() []database.StoredAccessRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// ActiveCount returns how many events are currently active
func (m *MockStore) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.events {
		if e.Status == database.EventActive {
			n++
		}
	}
	return n
}

// GetEvent retrieves an event by ID
func (m *MockStore) GetEvent(ctx context.Context, id int64) (*database.StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// GetActiveEvent returns the active event with the lowest ID
func (m *MockStore) GetActiveEvent(ctx context.Context) (*database.StoredEvent, error) {
	if m.GetActiveEventError != nil {
		return nil, m.GetActiveEventError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active *database.StoredEvent
	for _, e := range m.events {
		if e.Status == database.EventActive && (active == nil || e.ID < active.ID) {
			active = e
		}
	}
	if active == nil {
		return nil, nil
	}
	cp := *active
	return &cp, nil
}

// ListEvents returns events ordered by date, newest first
func (m *MockStore) ListEvents(ctx context.Context) ([]database.StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]database.StoredEvent, 0, len(m.events))
	for _, e := range m.events {
		events = append(events, *e)
	}
	slices.SortFunc(events, func(a, b database.StoredEvent) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return events, nil
}

// CreateEvent stores a new event
func (m *MockStore) CreateEvent(ctx context.Context, event *database.StoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = m.id("events")
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	cp := *event
	m.events[event.ID] = &cp
	return nil
}

// UpdateEventStatus sets the status of an event
func (m *MockStore) UpdateEventStatus(ctx context.Context, id int64, status database.EventStatus, endedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil
	}
	e.Status = status
	if endedAt != nil {
		t := *endedAt
		e.EndedAt = &t
	}
	return nil
}

// GetParticipant retrieves a participant by ID
func (m *MockStore) GetParticipant(ctx context.Context, id int64) (*database.StoredParticipant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// GetParticipantByDocument retrieves a participant by exact document
func (m *MockStore) GetParticipantByDocument(ctx context.Context, document string) (*database.StoredParticipant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.participants {
		if p.Document == document {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockStore) sortedParticipants(keep func(*database.StoredParticipant) bool, byName bool) []database.StoredParticipant {
	var out []database.StoredParticipant
	for _, p := range m.participants {
		if keep(p) {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b database.StoredParticipant) int {
		if byName {
			if c := strings.Compare(names.Normalize(a.Name), names.Normalize(b.Name)); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// SearchParticipants matches exact document or accent-insensitive name substring
func (m *MockStore) SearchParticipants(ctx context.Context, query string, limit int) ([]database.StoredParticipant, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.sortedParticipants(func(p *database.StoredParticipant) bool {
		return p.Document == query || names.Matches(p.Name, query)
	}, true)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListParticipants returns the roster ordered by name
func (m *MockStore) ListParticipants(ctx context.Context) ([]database.StoredParticipant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedParticipants(func(*database.StoredParticipant) bool { return true }, true), nil
}

// ListEnrolled returns active participants with a template, ordered by ID
func (m *MockStore) ListEnrolled(ctx context.Context) ([]database.StoredParticipant, error) {
	if m.ListEnrolledError != nil {
		return nil, m.ListEnrolledError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedParticipants(func(p *database.StoredParticipant) bool {
		return p.Active && !p.Template.IsEmpty()
	}, false), nil
}

// CreateParticipant stores a new participant
func (m *MockStore) CreateParticipant(ctx context.Context, p *database.StoredParticipant) error {
	if m.CreateParticipantError != nil {
		return m.CreateParticipantError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.participants {
		if existing.Document == p.Document {
			return database.ErrDuplicateDocument
		}
	}
	p.ID = m.id("participants")
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	cp.Template.Vector = slices.Clone(p.Template.Vector)
	m.participants[p.ID] = &cp
	return nil
}

// UpdateParticipantTemplate replaces the template of a participant
func (m *MockStore) UpdateParticipantTemplate(ctx context.Context, id int64, tmpl database.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.participants[id]; ok {
		p.Template = database.Template{Vector: slices.Clone(tmpl.Vector), Marker: tmpl.Marker}
	}
	return nil
}

// LatestMatchedRecord returns the most recent matched record for the pair
func (m *MockStore) LatestMatchedRecord(ctx context.Context, eventID, participantID int64, dir database.Direction) (*database.StoredAccessRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *database.StoredAccessRecord
	for i := range m.records {
		r := &m.records[i]
		if r.EventID != eventID || r.ParticipantID == nil || *r.ParticipantID != participantID {
			continue
		}
		if r.Outcome != database.OutcomeMatched || r.Direction != dir {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) ||
			(r.Timestamp.Equal(latest.Timestamp) && r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// CountCompanionRecords counts records escorted by responsibleID within the event
func (m *MockStore) CountCompanionRecords(ctx context.Context, eventID, responsibleID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.records {
		if r.EventID == eventID && r.ResponsibleID != nil && *r.ResponsibleID == responsibleID {
			n++
		}
	}
	return n, nil
}

// ListAccessRecords returns records newest first
func (m *MockStore) ListAccessRecords(ctx context.Context, filter database.RecordFilter) ([]database.StoredAccessRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredAccessRecord
	for _, r := range m.records {
		if filter.EventID != 0 && r.EventID != filter.EventID {
			continue
		}
		if filter.Outcome != "" && r.Outcome != filter.Outcome {
			continue
		}
		if filter.Direction != "" && r.Direction != filter.Direction {
			continue
		}
		if r.ParticipantID != nil {
			if p, ok := m.participants[*r.ParticipantID]; ok {
				r.ParticipantName = p.Name
				r.ParticipantDocument = p.Document
			}
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b database.StoredAccessRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SummarizeEvent aggregates the ledger of one event
func (m *MockStore) SummarizeEvent(ctx context.Context, eventID int64) (*database.EventSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &database.EventSummary{EventID: eventID}
	seen := make(map[int64]struct{})
	for _, r := range m.records {
		if r.EventID != eventID {
			continue
		}
		s.Total++
		if r.Direction == database.DirectionExit {
			s.Exits++
			continue
		}
		if r.Outcome == database.OutcomeMatched {
			s.Matched++
		} else {
			s.Unmatched++
		}
		if r.ResponsibleID != nil {
			s.Companions++
		}
		if r.ParticipantID != nil && r.Outcome == database.OutcomeMatched {
			seen[*r.ParticipantID] = struct{}{}
		}
	}
	s.UniqueParticipants = len(seen)
	return s, nil
}

// InsertAccessRecord appends a record
func (m *MockStore) InsertAccessRecord(ctx context.Context, rec *database.StoredAccessRecord) error {
	if m.InsertAccessRecordError != nil {
		return m.InsertAccessRecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.id("records")
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	m.records = append(m.records, *rec)
	return nil
}
