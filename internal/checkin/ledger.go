package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/constants"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// Entry is one decision to append to the ledger.
type Entry struct {
	EventID       int64
	ParticipantID *int64
	Direction     database.Direction
	Outcome       database.Outcome
	Device        string
	ResponsibleID *int64
}

// AppendResult carries the written record, or the recent record a duplicate
// was suppressed in favor of.
type AppendResult struct {
	Record    database.StoredAccessRecord
	Duplicate bool
}

// AccessLedger is the append-only audit log of admission decisions.
type AccessLedger struct {
	store    database.Store
	cooldown time.Duration
	now      func() time.Time
}

// NewAccessLedger creates a ledger with the given duplicate-suppression window.
func NewAccessLedger(store database.Store, cooldown time.Duration, now func() time.Time) *AccessLedger {
	if cooldown <= 0 {
		cooldown = constants.DefaultLedgerCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &AccessLedger{store: store, cooldown: cooldown, now: now}
}

// Cooldown returns the duplicate-suppression window.
func (l *AccessLedger) Cooldown() time.Duration { return l.cooldown }

func participantLockKey(eventID, participantID int64) string {
	return fmt.Sprintf("ledger:%d:%d", eventID, participantID)
}

// Append writes e, unless it is a matched entry for a participant whose
// latest matched entry in the same event is younger than the cooldown. In
// that case the existing record is returned with Duplicate set.
func (l *AccessLedger) Append(ctx context.Context, e Entry) (AppendResult, error) {
	e = l.normalize(e)

	if !l.dedupApplies(e) {
		rec, err := l.insert(ctx, l.store, e)
		if err != nil {
			return AppendResult{}, storeError("append access record", err)
		}
		return AppendResult{Record: rec}, nil
	}

	var res AppendResult
	err := l.store.WithLock(ctx, participantLockKey(e.EventID, *e.ParticipantID), func(ctx context.Context, tx database.Tx) error {
		var err error
		res, err = l.appendTx(ctx, tx, e)
		return err
	})
	if err != nil {
		return AppendResult{}, storeError("append access record", err)
	}
	return res, nil
}

func (l *AccessLedger) normalize(e Entry) Entry {
	if e.Direction == "" {
		e.Direction = database.DirectionEntry
	}
	e.Device = deviceOr(e.Device, constants.DeviceUnknown)
	return e
}

func (l *AccessLedger) dedupApplies(e Entry) bool {
	return e.ParticipantID != nil && e.Outcome == database.OutcomeMatched && e.Direction == database.DirectionEntry
}

// appendTx runs the dedup check and the insert inside the caller's unit of work.
func (l *AccessLedger) appendTx(ctx context.Context, tx database.Tx, e Entry) (AppendResult, error) {
	e = l.normalize(e)
	if l.dedupApplies(e) {
		latest, err := tx.LatestMatchedRecord(ctx, e.EventID, *e.ParticipantID, database.DirectionEntry)
		if err != nil {
			return AppendResult{}, err
		}
		if latest != nil && l.now().Sub(latest.Timestamp) < l.cooldown {
			return AppendResult{Record: *latest, Duplicate: true}, nil
		}
	}

	rec, err := l.insert(ctx, tx, e)
	if err != nil {
		return AppendResult{}, err
	}
	return AppendResult{Record: rec}, nil
}

func (l *AccessLedger) insert(ctx context.Context, tx database.Tx, e Entry) (database.StoredAccessRecord, error) {
	rec := database.StoredAccessRecord{
		EventID:       e.EventID,
		ParticipantID: e.ParticipantID,
		Direction:     e.Direction,
		Outcome:       e.Outcome,
		Device:        e.Device,
		ResponsibleID: e.ResponsibleID,
		Timestamp:     l.now().UTC(),
	}
	if err := tx.InsertAccessRecord(ctx, &rec); err != nil {
		return database.StoredAccessRecord{}, err
	}
	return rec, nil
}

// RecordExit appends the single exit record a participant may have per event.
func (l *AccessLedger) RecordExit(ctx context.Context, event *database.StoredEvent, participantID int64, device string) (database.StoredAccessRecord, error) {
	if !event.CheckoutEnabled {
		return database.StoredAccessRecord{}, ErrCheckoutDisabled
	}

	var rec database.StoredAccessRecord
	err := l.store.WithLock(ctx, participantLockKey(event.ID, participantID), func(ctx context.Context, tx database.Tx) error {
		prev, err := tx.LatestMatchedRecord(ctx, event.ID, participantID, database.DirectionExit)
		if err != nil {
			return err
		}
		if prev != nil {
			return ErrAlreadyCheckedOut
		}
		pid := participantID
		rec, err = l.insert(ctx, tx, Entry{
			EventID:       event.ID,
			ParticipantID: &pid,
			Direction:     database.DirectionExit,
			Outcome:       database.OutcomeMatched,
			Device:        deviceOr(device, constants.DeviceCheckout),
		})
		return err
	})
	if err != nil {
		return database.StoredAccessRecord{}, storeError("record exit", err)
	}
	return rec, nil
}

// Query lists records newest first. The limit defaults to and is capped at
// constants.DefaultRecordLimit.
func (l *AccessLedger) Query(ctx context.Context, filter database.RecordFilter) ([]database.StoredAccessRecord, error) {
	if filter.Limit <= 0 || filter.Limit > constants.DefaultRecordLimit {
		filter.Limit = constants.DefaultRecordLimit
	}
	records, err := l.store.ListAccessRecords(ctx, filter)
	if err != nil {
		return nil, storeError("list access records", err)
	}
	return records, nil
}

// Summarize aggregates the ledger of one event.
func (l *AccessLedger) Summarize(ctx context.Context, eventID int64) (*database.EventSummary, error) {
	summary, err := l.store.SummarizeEvent(ctx, eventID)
	if err != nil {
		return nil, storeError("summarize event", err)
	}
	return summary, nil
}
