// Package checkin implements the access-control reconciliation engine: the
// event lifecycle, biometric matching, the deduplicating access ledger and
// companion quotas, orchestrated by Service.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/constants"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Matcher      Matcher
	Index        *database.TemplateIndex // kept in sync on enrollment when set
	Notifier     Notifier
	Cooldown     time.Duration // ledger duplicate-suppression window
	EmbeddingDim int
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Service orchestrates check-in requests against the persistence store.
// It caches nothing across calls: the active event and the roster are read
// fresh for every request.
type Service struct {
	store      database.Store
	events     *EventStateStore
	ledger     *AccessLedger
	companions *CompanionGuard
	matcher    Matcher
	index      *database.TemplateIndex
	notifier   Notifier
	dim        int
	logger     *slog.Logger
}

// NewService wires the engine components over store.
func NewService(store database.Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.EmbeddingDim <= 0 {
		opts.EmbeddingDim = constants.DefaultEmbeddingDim
	}
	if opts.Matcher == nil {
		opts.Matcher = NewEuclideanMatcher(constants.DefaultDistanceThreshold, opts.EmbeddingDim, opts.Index)
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ledger := NewAccessLedger(store, opts.Cooldown, opts.Clock)
	return &Service{
		store:      store,
		events:     NewEventStateStore(store, opts.Clock),
		ledger:     ledger,
		companions: NewCompanionGuard(store, ledger),
		matcher:    opts.Matcher,
		index:      opts.Index,
		notifier:   opts.Notifier,
		dim:        opts.EmbeddingDim,
		logger:     opts.Logger,
	}
}

// Events exposes the event lifecycle component.
func (s *Service) Events() *EventStateStore { return s.events }

// Ledger exposes the access ledger.
func (s *Service) Ledger() *AccessLedger { return s.ledger }

// activeEvent resolves the event a request runs against. When requested is
// set it must exist and be the active one.
func (s *Service) activeEvent(ctx context.Context, requested *int64) (*database.StoredEvent, error) {
	active, err := s.events.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if requested != nil && (active == nil || active.ID != *requested) {
		if _, err := s.events.Get(ctx, *requested); err != nil {
			return nil, err
		}
		return nil, ErrNoActiveEvent
	}
	if active == nil {
		return nil, ErrNoActiveEvent
	}
	return active, nil
}

// SubmitSample resolves a captured sample and records the decision.
func (s *Service) SubmitSample(ctx context.Context, req SubmitSampleRequest) (AdmitResult, error) {
	event, err := s.activeEvent(ctx, req.EventID)
	if err != nil {
		return AdmitResult{}, err
	}

	enrolled, err := s.store.ListEnrolled(ctx)
	if err != nil {
		return AdmitResult{}, storeError("list enrolled participants", err)
	}

	match, err := s.matcher.Identify(req.Sample, enrolled)
	if err != nil {
		return AdmitResult{}, err
	}

	device := deviceOr(req.Device, constants.DeviceScan)
	if !match.Found() {
		appended, err := s.ledger.Append(ctx, Entry{
			EventID: event.ID,
			Outcome: database.OutcomeUnmatched,
			Device:  device,
		})
		if err != nil {
			return AdmitResult{}, err
		}
		s.publish(ctx, appended, "")
		s.logger.Info("sample denied", "event_id", event.ID, "record_id", appended.Record.ID, "device", device)
		return AdmitResult{Record: appended.Record}, nil
	}

	result, err := s.admit(ctx, event, match.Participant, device)
	if err != nil {
		return AdmitResult{}, err
	}
	result.Distance = match.Distance
	return result, nil
}

// admit appends a matched entry for p and publishes it unless it was a duplicate.
func (s *Service) admit(ctx context.Context, event *database.StoredEvent, p *database.StoredParticipant, device string) (AdmitResult, error) {
	pid := p.ID
	appended, err := s.ledger.Append(ctx, Entry{
		EventID:       event.ID,
		ParticipantID: &pid,
		Outcome:       database.OutcomeMatched,
		Device:        device,
	})
	if err != nil {
		return AdmitResult{}, err
	}

	if appended.Duplicate {
		s.logger.Debug("duplicate admission suppressed",
			"event_id", event.ID, "participant_id", pid, "record_id", appended.Record.ID)
	} else {
		s.publish(ctx, appended, p.Name)
		s.logger.Info("participant admitted",
			"event_id", event.ID, "participant_id", pid, "record_id", appended.Record.ID, "device", device)
	}

	return AdmitResult{
		Admitted:    true,
		Duplicate:   appended.Duplicate,
		Participant: p,
		Record:      appended.Record,
	}, nil
}

func (s *Service) publish(ctx context.Context, appended AppendResult, name string) {
	if appended.Duplicate {
		return
	}
	s.notifier.Notify(ctx, Notice{
		Record:          appended.Record,
		ParticipantName: name,
		Admitted:        appended.Record.Outcome == database.OutcomeMatched,
	})
}

// SubmitManualLookup searches the roster by exact document or name substring.
// It works without an active event.
func (s *Service) SubmitManualLookup(ctx context.Context, query string) ([]database.StoredParticipant, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []database.StoredParticipant{}, nil
	}
	found, err := s.store.SearchParticipants(ctx, query, constants.SearchLimit)
	if err != nil {
		return nil, storeError("search participants", err)
	}
	if found == nil {
		found = []database.StoredParticipant{}
	}
	return found, nil
}

// ConfirmManualAdmit admits an operator-selected participant, subject to the
// ledger's duplicate rule.
func (s *Service) ConfirmManualAdmit(ctx context.Context, req ConfirmAdmitRequest) (AdmitResult, error) {
	event, err := s.activeEvent(ctx, nil)
	if err != nil {
		return AdmitResult{}, err
	}
	p, err := s.participant(ctx, req.ParticipantID)
	if err != nil {
		return AdmitResult{}, err
	}
	return s.admit(ctx, event, p, deviceOr(req.Device, constants.DeviceManualConfirmed))
}

func (s *Service) participant(ctx context.Context, id int64) (*database.StoredParticipant, error) {
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return nil, storeError("get participant", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// CreateAndAdmit enrolls a walk-in participant and admits them in one unit of work.
func (s *Service) CreateAndAdmit(ctx context.Context, req CreateParticipantRequest) (AdmitResult, error) {
	if err := req.Validate(s.dim); err != nil {
		return AdmitResult{}, err
	}
	event, err := s.activeEvent(ctx, nil)
	if err != nil {
		return AdmitResult{}, err
	}

	device := deviceOr(req.Device, constants.DeviceNewEntry)
	var result AdmitResult
	err = s.store.WithLock(ctx, documentLockKey(req.Document), func(ctx context.Context, tx database.Tx) error {
		p, err := s.createParticipant(ctx, tx, req)
		if err != nil {
			return err
		}
		pid := p.ID
		appended, err := s.ledger.appendTx(ctx, tx, Entry{
			EventID:       event.ID,
			ParticipantID: &pid,
			Outcome:       database.OutcomeMatched,
			Device:        device,
		})
		if err != nil {
			return err
		}
		result = AdmitResult{Admitted: true, Participant: p, Record: appended.Record}
		return nil
	})
	if err != nil {
		return AdmitResult{}, storeError("create and admit", err)
	}

	s.indexParticipant(*result.Participant)
	s.publish(ctx, AppendResult{Record: result.Record}, result.Participant.Name)
	s.logger.Info("participant created and admitted",
		"event_id", event.ID, "participant_id", result.Participant.ID, "record_id", result.Record.ID)
	return result, nil
}

func documentLockKey(document string) string {
	return "participant:document:" + document
}

func (s *Service) createParticipant(ctx context.Context, tx database.Tx, req CreateParticipantRequest) (*database.StoredParticipant, error) {
	existing, err := tx.GetParticipantByDocument(ctx, req.Document)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDocumentAlreadyRegistered
	}

	p := req.toStored()
	if err := tx.CreateParticipant(ctx, &p); err != nil {
		if errors.Is(err, database.ErrDuplicateDocument) {
			return nil, ErrDocumentAlreadyRegistered
		}
		return nil, err
	}
	return &p, nil
}

// EnrollParticipant adds a participant to the roster without admitting them.
func (s *Service) EnrollParticipant(ctx context.Context, req CreateParticipantRequest) (*database.StoredParticipant, error) {
	if err := req.Validate(s.dim); err != nil {
		return nil, err
	}

	var p *database.StoredParticipant
	err := s.store.WithLock(ctx, documentLockKey(req.Document), func(ctx context.Context, tx database.Tx) error {
		var err error
		p, err = s.createParticipant(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, storeError("enroll participant", err)
	}

	s.indexParticipant(*p)
	return p, nil
}

// UpdateTemplate re-enrolls the biometric template of a participant.
func (s *Service) UpdateTemplate(ctx context.Context, id int64, tmpl database.Template) (*database.StoredParticipant, error) {
	if tmpl.IsEmpty() {
		return nil, invalidRequest("template vector or marker is required")
	}
	if err := validateTemplate(tmpl, s.dim); err != nil {
		return nil, err
	}

	p, err := s.participant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateParticipantTemplate(ctx, id, tmpl); err != nil {
		return nil, storeError("update template", err)
	}
	p.Template = tmpl

	s.indexParticipant(*p)
	return p, nil
}

func (s *Service) indexParticipant(p database.StoredParticipant) {
	if s.index != nil {
		s.index.Upsert(p)
	}
}

// ListParticipants returns the roster ordered by name.
func (s *Service) ListParticipants(ctx context.Context) ([]database.StoredParticipant, error) {
	list, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, storeError("list participants", err)
	}
	return list, nil
}

// RegisterCompanion admits a companion under the responsible's quota.
func (s *Service) RegisterCompanion(ctx context.Context, req CompanionRequest) (CompanionResult, error) {
	res, err := s.companions.Register(ctx, req.ResponsibleID, req.Name)
	if err != nil {
		return CompanionResult{}, err
	}
	s.publish(ctx, AppendResult{Record: res.Record}, res.Companion.Name)
	s.logger.Info("companion admitted",
		"event_id", res.Event.ID, "responsible_id", req.ResponsibleID,
		"companion_id", res.Companion.ID, "record_id", res.Record.ID)
	return res, nil
}

// RegisterExit records a participant leaving the active event.
func (s *Service) RegisterExit(ctx context.Context, req ExitRequest) (database.StoredAccessRecord, error) {
	event, err := s.activeEvent(ctx, nil)
	if err != nil {
		return database.StoredAccessRecord{}, err
	}
	if !event.CheckoutEnabled {
		return database.StoredAccessRecord{}, ErrCheckoutDisabled
	}
	p, err := s.participant(ctx, req.ParticipantID)
	if err != nil {
		return database.StoredAccessRecord{}, err
	}

	rec, err := s.ledger.RecordExit(ctx, event, p.ID, req.Device)
	if err != nil {
		return database.StoredAccessRecord{}, err
	}
	s.publish(ctx, AppendResult{Record: rec}, p.Name)
	s.logger.Info("participant checked out", "event_id", event.ID, "participant_id", p.ID, "record_id", rec.ID)
	return rec, nil
}

// CreateEvent stores a new scheduled event.
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*database.StoredEvent, error) {
	return s.events.Create(ctx, req)
}

// ListEvents returns all events, newest date first.
func (s *Service) ListEvents(ctx context.Context) ([]database.StoredEvent, error) {
	return s.events.List(ctx)
}

// ActivateEvent makes id the single active event.
func (s *Service) ActivateEvent(ctx context.Context, id int64) (*database.StoredEvent, error) {
	ev, err := s.events.Activate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event activated", "event_id", id)
	return ev, nil
}

// FinalizeEvent finishes an event.
func (s *Service) FinalizeEvent(ctx context.Context, id int64) (*database.StoredEvent, error) {
	ev, err := s.events.Finalize(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event finalized", "event_id", id)
	return ev, nil
}

// ReopenEvent moves a finished event back to scheduled.
func (s *Service) ReopenEvent(ctx context.Context, id int64) (*database.StoredEvent, error) {
	ev, err := s.events.Reopen(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event reopened", "event_id", id)
	return ev, nil
}

// GetActiveEvent returns the active event or nil.
func (s *Service) GetActiveEvent(ctx context.Context) (*database.StoredEvent, error) {
	return s.events.GetActive(ctx)
}

// ListAccessRecords lists ledger records newest first.
func (s *Service) ListAccessRecords(ctx context.Context, filter database.RecordFilter) ([]database.StoredAccessRecord, error) {
	if filter.EventID != 0 {
		if _, err := s.events.Get(ctx, filter.EventID); err != nil {
			return nil, err
		}
	}
	return s.ledger.Query(ctx, filter)
}

// EventSummary aggregates the ledger of one event.
func (s *Service) EventSummary(ctx context.Context, eventID int64) (*database.EventSummary, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return s.ledger.Summarize(ctx, eventID)
}

// Status reports the backend, the active event and roster counts.
func (s *Service) Status(ctx context.Context) (StatusReport, error) {
	active, err := s.events.GetActive(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	roster, err := s.store.ListParticipants(ctx)
	if err != nil {
		return StatusReport{}, storeError("list participants", err)
	}
	enrolled, err := s.store.ListEnrolled(ctx)
	if err != nil {
		return StatusReport{}, storeError("list enrolled participants", err)
	}
	return StatusReport{
		Backend:      s.store.Backend(),
		Matcher:      matcherName(s.matcher),
		ActiveEvent:  active,
		Participants: len(roster),
		Enrolled:     len(enrolled),
	}, nil
}

func matcherName(m Matcher) string {
	switch m.(type) {
	case *EuclideanMatcher:
		return "euclidean"
	case MarkerMatcher:
		return "simulated"
	case ForcedMatcher:
		return "harness"
	default:
		return fmt.Sprintf("%T", m)
	}
}

// RebuildIndex reloads the template index from the store.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	enrolled, err := s.store.ListEnrolled(ctx)
	if err != nil {
		return 0, storeError("list enrolled participants", err)
	}
	s.index.Build(enrolled)
	return s.index.Len(), nil
}
