package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

func TestActivate_DemotesCurrentActive(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	e1 := env.store.AddEvent(database.StoredEvent{Name: "E1", Date: "2026-03-14", Status: database.EventActive})
	e2 := env.store.AddEvent(database.StoredEvent{Name: "E2", Date: "2026-03-15"})

	ev, err := env.svc.ActivateEvent(ctx, e2)
	if err != nil {
		t.Fatalf("ActivateEvent failed: %v", err)
	}
	if ev.Status != database.EventActive {
		t.Errorf("expected returned event to be active, got %s", ev.Status)
	}

	first, _ := env.store.GetEvent(ctx, e1)
	if first.Status != database.EventScheduled {
		t.Errorf("expected E1 scheduled, got %s", first.Status)
	}
	active, err := env.svc.GetActiveEvent(ctx)
	if err != nil {
		t.Fatalf("GetActiveEvent failed: %v", err)
	}
	if active == nil || active.ID != e2 {
		t.Errorf("expected E2 active, got %+v", active)
	}
	if n := env.store.ActiveCount(); n != 1 {
		t.Errorf("expected exactly one active event, got %d", n)
	}
}

func TestActivate_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.svc.ActivateEvent(context.Background(), 42); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestActivate_AlreadyActiveIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.activeEvent(false, 0)

	ev, err := env.svc.ActivateEvent(context.Background(), id)
	if err != nil {
		t.Fatalf("ActivateEvent failed: %v", err)
	}
	if ev.Status != database.EventActive || env.store.ActiveCount() != 1 {
		t.Errorf("expected event to stay the only active one")
	}
}

func TestActivate_FinishedRequiresReopen(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.store.AddEvent(database.StoredEvent{Name: "Done", Date: "2026-01-01", Status: database.EventFinished})

	if _, err := env.svc.ActivateEvent(ctx, id); !errors.Is(err, ErrEventFinished) {
		t.Fatalf("expected ErrEventFinished, got %v", err)
	}

	ev, err := env.svc.ReopenEvent(ctx, id)
	if err != nil {
		t.Fatalf("ReopenEvent failed: %v", err)
	}
	if ev.Status != database.EventScheduled {
		t.Errorf("expected scheduled after reopen, got %s", ev.Status)
	}

	if _, err := env.svc.ActivateEvent(ctx, id); err != nil {
		t.Errorf("expected activation after reopen to succeed, got %v", err)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	id := env.activeEvent(false, 0)

	first, err := env.svc.FinalizeEvent(ctx, id)
	if err != nil {
		t.Fatalf("first FinalizeEvent failed: %v", err)
	}
	if first.Status != database.EventFinished || first.EndedAt == nil {
		t.Fatalf("expected finished event with end time, got %+v", first)
	}

	env.clock.Advance(time.Hour)

	second, err := env.svc.FinalizeEvent(ctx, id)
	if err != nil {
		t.Fatalf("second FinalizeEvent failed: %v", err)
	}
	if second.Status != database.EventFinished {
		t.Errorf("expected finished, got %s", second.Status)
	}
	if second.EndedAt == nil || !second.EndedAt.Equal(*first.EndedAt) {
		t.Errorf("expected end time unchanged, got %v want %v", second.EndedAt, first.EndedAt)
	}

	active, _ := env.svc.GetActiveEvent(ctx)
	if active != nil {
		t.Errorf("expected no active event after finalize, got %d", active.ID)
	}
}

func TestFinalize_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.svc.FinalizeEvent(context.Background(), 9); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestActivate_ConcurrentKeepsSingleActive(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 8; i++ {
		ids = append(ids, env.store.AddEvent(database.StoredEvent{Name: "E", Date: "2026-03-14"}))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := env.svc.ActivateEvent(ctx, id); err != nil {
				t.Errorf("ActivateEvent(%d) failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if n := env.store.ActiveCount(); n != 1 {
		t.Errorf("expected exactly one active event, got %d", n)
	}
}

func TestCreateEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	ev, err := env.svc.CreateEvent(ctx, CreateEventRequest{
		Name: " Congresso ", Date: "2026-05-20", Time: "08:30",
		CompanionsAllowed: true, MaxCompanions: 2, CheckoutEnabled: true,
	})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if ev.ID == 0 || ev.Status != database.EventScheduled || ev.Name != "Congresso" {
		t.Errorf("unexpected event %+v", ev)
	}
	if !ev.Companions.Allowed || ev.Companions.MaxPerEscort != 2 || !ev.CheckoutEnabled {
		t.Errorf("policy not stored: %+v", ev)
	}

	invalid := []CreateEventRequest{
		{Date: "2026-05-20"},
		{Name: "X", Date: "20/05/2026"},
		{Name: "X", Date: "2026-05-20", Time: "8h"},
		{Name: "X", Date: "2026-05-20", MaxCompanions: -1},
	}
	for _, req := range invalid {
		if _, err := env.svc.CreateEvent(ctx, req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("CreateEvent(%+v): expected ErrInvalidRequest, got %v", req, err)
		}
	}
}

func TestListEvents_NewestDateFirst(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.AddEvent(database.StoredEvent{Name: "old", Date: "2025-01-01"})
	env.store.AddEvent(database.StoredEvent{Name: "new", Date: "2026-06-01"})

	events, err := env.svc.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 || events[0].Name != "new" {
		t.Errorf("expected newest event first, got %+v", events)
	}
}
