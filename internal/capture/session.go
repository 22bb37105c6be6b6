// Package capture drives a capture device against the check-in service:
// it polls a sample source, submits at most one sample per tick and throttles
// re-submission after every displayed outcome.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

// ErrSessionClosed is returned by Run on a session that was already started or stopped.
var ErrSessionClosed = errors.New("capture session closed")

// Source yields captured samples. Next returns ok=false when no face is
// present in the current frame.
type Source interface {
	Next(ctx context.Context) (sample checkin.Sample, ok bool, err error)
	Close() error
}

// Submitter is the part of checkin.Service a session needs.
type Submitter interface {
	SubmitSample(ctx context.Context, req checkin.SubmitSampleRequest) (checkin.AdmitResult, error)
}

// Result is one outcome surfaced to the display.
// Recent is set when the same participant was already shown within the
// session's recent-recognition TTL.
type Result struct {
	SessionID string
	At        time.Time
	Admit     checkin.AdmitResult
	Recent    bool
}

// Config holds the timing of a session.
type Config struct {
	PollInterval  time.Duration
	AdmitCooldown time.Duration
	DenyCooldown  time.Duration
	RecentTTL     time.Duration
	Device        string
	EventID       *int64
}

// Session owns one capture loop. It is not reusable: after Run returns or
// Stop is called the source is closed.
type Session struct {
	id        string
	source    Source
	submitter Submitter
	cfg       Config

	controller *Controller
	recent     map[int64]time.Time

	onResult func(Result)
	onError  func(error)
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	running   bool
	stopped   bool
	done      chan struct{}
	closeOnce sync.Once
}

// Option customizes a Session.
type Option func(*Session)

// WithResultHandler sets the callback receiving every surfaced outcome.
func WithResultHandler(fn func(Result)) Option {
	return func(s *Session) { s.onResult = fn }
}

// WithErrorHandler sets the callback receiving source and submission errors.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock replaces time.Now for cooldown and TTL bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session over source. Zero config durations select the defaults.
func NewSession(source Source, submitter Submitter, cfg Config, opts ...Option) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.RecentTTL <= 0 {
		cfg.RecentTTL = constants.DefaultRecentTTL
	}
	if cfg.Device == "" {
		cfg.Device = constants.DeviceScan
	}

	s := &Session{
		id:         uuid.NewString(),
		source:     source,
		submitter:  submitter,
		cfg:        cfg,
		controller: NewController(cfg.AdmitCooldown, cfg.DenyCooldown),
		recent:     make(map[int64]time.Time),
		onResult:   func(Result) {},
		onError:    func(error) {},
		logger:     slog.Default(),
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Controller exposes the cooldown controller.
func (s *Session) Controller() *Controller { return s.controller }

// Run polls the source until ctx is cancelled or Stop is called, then closes
// the source. It returns nil on a clean stop.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	defer close(s.done)
	defer s.closeSource()

	s.logger.Info("capture session started",
		"poll_interval", s.cfg.PollInterval, "device", s.cfg.Device)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("capture session stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop cancels a running session and waits for it to finish. It is safe to
// call more than once and before Run.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel, running := s.cancel, s.running
	s.mu.Unlock()

	if !running {
		s.closeSource()
		return
	}
	cancel()
	<-s.done
}

func (s *Session) closeSource() {
	s.closeOnce.Do(func() {
		if err := s.source.Close(); err != nil {
			s.logger.Warn("failed to close capture source", "error", err)
		}
	})
}

// tick submits at most one sample. Failures are reported once and never retried.
func (s *Session) tick(ctx context.Context) {
	now := s.now()
	s.pruneRecent(now)
	if !s.controller.Ready(now) {
		return
	}

	sample, ok, err := s.source.Next(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.fail(err)
		}
		return
	}
	if !ok {
		return
	}

	res, err := s.submitter.SubmitSample(ctx, checkin.SubmitSampleRequest{
		EventID: s.cfg.EventID,
		Sample:  sample,
		Device:  s.cfg.Device,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.controller.Observe(OutcomeDeny, s.now())
		s.fail(err)
		return
	}

	at := s.now()
	out := Result{SessionID: s.id, At: at, Admit: res}
	if res.Admitted {
		s.controller.Observe(OutcomeAdmit, at)
		out.Recent = s.markRecent(res.Participant.ID, at)
	} else {
		s.controller.Observe(OutcomeDeny, at)
	}
	s.onResult(out)
}

func (s *Session) fail(err error) {
	s.logger.Warn("capture submission failed", "error", err)
	s.onError(err)
}

// markRecent records a recognition and reports whether it repeats one inside the TTL.
func (s *Session) markRecent(participantID int64, at time.Time) bool {
	last, seen := s.recent[participantID]
	s.recent[participantID] = at
	return seen && at.Sub(last) < s.cfg.RecentTTL
}

func (s *Session) pruneRecent(now time.Time) {
	for id, at := range s.recent {
		if now.Sub(at) >= s.cfg.RecentTTL {
			delete(s.recent, id)
		}
	}
}
