package checkin

import (
	"context"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// eventsLockKey serializes every event lifecycle transition.
const eventsLockKey = "events"

// EventStateStore governs the event lifecycle and the single active event.
// It keeps no state of its own: every read goes to the store.
type EventStateStore struct {
	store database.Store
	now   func() time.Time
}

// NewEventStateStore creates an EventStateStore over store.
func NewEventStateStore(store database.Store, now func() time.Time) *EventStateStore {
	if now == nil {
		now = time.Now
	}
	return &EventStateStore{store: store, now: now}
}

// GetActive returns the active event, or nil if none is active.
func (s *EventStateStore) GetActive(ctx context.Context) (*database.StoredEvent, error) {
	ev, err := s.store.GetActiveEvent(ctx)
	if err != nil {
		return nil, storeError("get active event", err)
	}
	return ev, nil
}

// Get returns an event by ID or ErrEventNotFound.
func (s *EventStateStore) Get(ctx context.Context, id int64) (*database.StoredEvent, error) {
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, storeError("get event", err)
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

// List returns all events, newest date first.
func (s *EventStateStore) List(ctx context.Context) ([]database.StoredEvent, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

// Create stores a new scheduled event.
func (s *EventStateStore) Create(ctx context.Context, req CreateEventRequest) (*database.StoredEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ev := req.toStored()
	ev.Status = database.EventScheduled
	ev.CreatedAt = s.now().UTC()
	if err := s.store.CreateEvent(ctx, &ev); err != nil {
		return nil, storeError("create event", err)
	}
	return &ev, nil
}

// Activate demotes the current active event to scheduled and promotes id,
// in one unit of work. Activating the active event again is a no-op.
// Finished events must be reopened first.
func (s *EventStateStore) Activate(ctx context.Context, id int64) (*database.StoredEvent, error) {
	var result *database.StoredEvent
	err := s.store.WithLock(ctx, eventsLockKey, func(ctx context.Context, tx database.Tx) error {
		ev, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}
		switch ev.Status {
		case database.EventFinished:
			return ErrEventFinished
		case database.EventActive:
			result = ev
			return nil
		}

		current, err := tx.GetActiveEvent(ctx)
		if err != nil {
			return err
		}
		if current != nil && current.ID != id && current.Status != database.EventFinished {
			if err := tx.UpdateEventStatus(ctx, current.ID, database.EventScheduled, nil); err != nil {
				return err
			}
		}
		if err := tx.UpdateEventStatus(ctx, id, database.EventActive, nil); err != nil {
			return err
		}

		ev.Status = database.EventActive
		result = ev
		return nil
	})
	if err != nil {
		return nil, storeError("activate event", err)
	}
	return result, nil
}

// Finalize marks an event finished and stamps its end time.
// Finalizing a finished event returns it unchanged.
func (s *EventStateStore) Finalize(ctx context.Context, id int64) (*database.StoredEvent, error) {
	var result *database.StoredEvent
	err := s.store.WithLock(ctx, eventsLockKey, func(ctx context.Context, tx database.Tx) error {
		ev, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}
		if ev.Status == database.EventFinished {
			result = ev
			return nil
		}

		ended := s.now().UTC()
		if err := tx.UpdateEventStatus(ctx, id, database.EventFinished, &ended); err != nil {
			return err
		}
		ev.Status = database.EventFinished
		ev.EndedAt = &ended
		result = ev
		return nil
	})
	if err != nil {
		return nil, storeError("finalize event", err)
	}
	return result, nil
}

// Reopen moves a finished event back to scheduled so it can be activated again.
// Events that are not finished are returned unchanged.
func (s *EventStateStore) Reopen(ctx context.Context, id int64) (*database.StoredEvent, error) {
	var result *database.StoredEvent
	err := s.store.WithLock(ctx, eventsLockKey, func(ctx context.Context, tx database.Tx) error {
		ev, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrEventNotFound
		}
		if ev.Status == database.EventFinished {
			if err := tx.UpdateEventStatus(ctx, id, database.EventScheduled, nil); err != nil {
				return err
			}
			ev.Status = database.EventScheduled
		}
		result = ev
		return nil
	})
	if err != nil {
		return nil, storeError("reopen event", err)
	}
	return result, nil
}
