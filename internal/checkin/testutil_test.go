package checkin

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/database/mock"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier collects every notice it receives
type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

type testEnv struct {
	store    *mock.MockStore
	clock    *fakeClock
	notifier *recordingNotifier
	svc      *Service
}

func newTestEnv(t *testing.T, matcher Matcher) *testEnv {
	t.Helper()
	store := mock.NewMockStore()
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	svc := NewService(store, Options{
		Matcher:      matcher,
		Notifier:     notifier,
		Cooldown:     60 * time.Second,
		EmbeddingDim: testDim,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:        clock.Now,
	})
	return &testEnv{store: store, clock: clock, notifier: notifier, svc: svc}
}

// activeEvent stores an active event with the given companion policy
func (e *testEnv) activeEvent(allowed bool, maxPerEscort int) int64 {
	return e.store.AddEvent(database.StoredEvent{
		Name:       "UniEvento Tech 2026",
		Date:       "2026-03-14",
		Status:     database.EventActive,
		Companions: database.CompanionPolicy{Allowed: allowed, MaxPerEscort: maxPerEscort},
	})
}

func (e *testEnv) participant(name, doc string, tmpl database.Template) int64 {
	return e.store.AddParticipant(database.StoredParticipant{
		Name: name, Document: doc, Active: true, Template: tmpl,
	})
}
