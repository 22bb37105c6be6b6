package handlers

import (
	"context"
	"testing"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

func notice(eventID int64, name string) checkin.Notice {
	return checkin.Notice{
		Record: database.StoredAccessRecord{
			ID: 1, EventID: eventID, Direction: database.DirectionEntry, Outcome: database.OutcomeMatched,
		},
		ParticipantName: name,
		Admitted:        true,
	}
}

func TestRecordBroadcaster_FiltersByEvent(t *testing.T) {
	b := NewRecordBroadcaster()
	one := b.AddListener(1)
	two := b.AddListener(2)
	defer b.RemoveListener(one)
	defer b.RemoveListener(two)

	b.Notify(context.Background(), notice(1, "Ana"))

	select {
	case ev := <-one:
		if ev.Type != "record" || !ev.Admitted || ev.Record.ParticipantName != "Ana" {
			t.Errorf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("expected listener of event 1 to receive the record")
	}

	select {
	case ev := <-two:
		t.Errorf("listener of event 2 received %+v", ev)
	default:
	}
}

func TestRecordBroadcaster_FullBufferDoesNotBlock(t *testing.T) {
	b := NewRecordBroadcaster()
	ch := b.AddListener(1)

	for i := 0; i < constants.EventChannelBuffer+10; i++ {
		b.Notify(context.Background(), notice(1, "Ana"))
	}
	if len(ch) != constants.EventChannelBuffer {
		t.Errorf("expected buffer to be full at %d, got %d", constants.EventChannelBuffer, len(ch))
	}

	b.RemoveListener(ch)
	if b.Len() != 0 {
		t.Errorf("expected no listeners, got %d", b.Len())
	}
	// drained channel is closed
	for range ch {
	}
}

func TestRecordBroadcaster_Close(t *testing.T) {
	b := NewRecordBroadcaster()
	ch := b.AddListener(1)

	b.Close()

	if _, ok := <-ch; ok {
		t.Error("expected listener channel to be closed")
	}
	if b.Len() != 0 {
		t.Errorf("expected no listeners after close, got %d", b.Len())
	}

	// RemoveListener after Close must not close the channel twice
	b.RemoveListener(ch)

	late := b.AddListener(1)
	if _, ok := <-late; ok {
		t.Error("expected listener added after close to be closed")
	}
	b.Notify(context.Background(), notice(1, "Ana"))
}
