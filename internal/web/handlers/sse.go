package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

// RecordEvent is one message on a record stream.
type RecordEvent struct {
	Type     string         `json:"type"`
	Admitted bool           `json:"admitted"`
	Record   RecordResponse `json:"record"`
}

type listener struct {
	eventID int64
	ch      chan RecordEvent
}

// RecordBroadcaster fans committed access records out to SSE listeners.
// It implements checkin.Notifier.
type RecordBroadcaster struct {
	mu        sync.RWMutex
	listeners []listener
	closed    bool
}

// NewRecordBroadcaster creates an empty broadcaster.
func NewRecordBroadcaster() *RecordBroadcaster {
	return &RecordBroadcaster{}
}

// AddListener registers a listener for the records of eventID.
func (b *RecordBroadcaster) AddListener(eventID int64) chan RecordEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan RecordEvent, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, listener{eventID: eventID, ch: ch})
	return ch
}

// RemoveListener removes and closes a listener.
func (b *RecordBroadcaster) RemoveListener(ch chan RecordEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.ch == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close ends every open stream. Listeners added afterwards get a closed channel.
func (b *RecordBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, l := range b.listeners {
		close(l.ch)
	}
	b.listeners = nil
}

// Len returns the number of connected listeners.
func (b *RecordBroadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Notify sends n to every listener of its event.
func (b *RecordBroadcaster) Notify(_ context.Context, n checkin.Notice) {
	rec := newRecordResponse(n.Record)
	if rec.ParticipantName == "" {
		rec.ParticipantName = n.ParticipantName
	}
	event := RecordEvent{Type: "record", Admitted: n.Admitted, Record: rec}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.listeners {
		if l.eventID != n.Record.EventID {
			continue
		}
		select {
		case l.ch <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// streamRecords sets up SSE headers and streams records of eventID until the
// client disconnects. initial is sent first as a "status" event.
func streamRecords(w http.ResponseWriter, r *http.Request, b *RecordBroadcaster, eventID int64, initial any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := b.AddListener(eventID)
	defer b.RemoveListener(ch)

	sendSSEEvent(w, flusher, "status", initial)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}
