package checkin

import (
	"context"

	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// Notice announces a freshly written access record to live consumers.
type Notice struct {
	Record          database.StoredAccessRecord
	ParticipantName string
	Admitted        bool
}

// Notifier receives a Notice after the record is committed. Implementations
// must not block the caller for long and report their own failures.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// MultiNotifier fans a notice out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}
