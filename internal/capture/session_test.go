package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

type fakeSource struct {
	mu      sync.Mutex
	samples []checkin.Sample
	err     error
	nexts   int
	closed  atomic.Int32
}

func (f *fakeSource) Next(ctx context.Context) (checkin.Sample, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nexts++
	if f.err != nil {
		return checkin.Sample{}, false, f.err
	}
	if len(f.samples) == 0 {
		return checkin.Sample{}, false, nil
	}
	s := f.samples[0]
	f.samples = f.samples[1:]
	return s, true, nil
}

func (f *fakeSource) Close() error {
	f.closed.Add(1)
	return nil
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	fn    func(req checkin.SubmitSampleRequest) (checkin.AdmitResult, error)
}

func (f *fakeSubmitter) SubmitSample(_ context.Context, req checkin.SubmitSampleRequest) (checkin.AdmitResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func admitted(id int64) checkin.AdmitResult {
	return checkin.AdmitResult{Admitted: true, Participant: &database.StoredParticipant{ID: id}}
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSession_TickRespectsCooldown(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	src := &fakeSource{samples: []checkin.Sample{{Marker: "a"}, {Marker: "b"}, {Marker: "c"}}}
	sub := &fakeSubmitter{fn: func(req checkin.SubmitSampleRequest) (checkin.AdmitResult, error) {
		if req.Sample.Marker == "b" {
			return checkin.AdmitResult{}, nil
		}
		return admitted(1), nil
	}}

	var results []Result
	s := NewSession(src, sub, Config{}, WithClock(clock.Now), WithLogger(quietLogger()),
		WithResultHandler(func(r Result) { results = append(results, r) }))
	ctx := context.Background()

	s.tick(ctx) // admit "a"
	clock.Advance(time.Second)
	s.tick(ctx) // suspended
	if sub.Calls() != 1 {
		t.Fatalf("expected 1 submission inside the admit window, got %d", sub.Calls())
	}

	clock.Advance(time.Second)
	s.tick(ctx) // deny "b"
	clock.Advance(2 * time.Second)
	s.tick(ctx) // suspended by the longer deny window
	if sub.Calls() != 2 {
		t.Fatalf("expected 2 submissions inside the deny window, got %d", sub.Calls())
	}

	clock.Advance(time.Second)
	s.tick(ctx) // admit "c"
	if sub.Calls() != 3 || len(results) != 3 {
		t.Fatalf("expected 3 submissions and results, got %d and %d", sub.Calls(), len(results))
	}
	if results[1].Admit.Admitted {
		t.Error("expected second result to be a deny")
	}
}

func TestSession_RecentRecognition(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	src := &fakeSource{samples: []checkin.Sample{{Marker: "a"}, {Marker: "a"}, {Marker: "a"}}}
	sub := &fakeSubmitter{fn: func(checkin.SubmitSampleRequest) (checkin.AdmitResult, error) { return admitted(7), nil }}

	var results []Result
	s := NewSession(src, sub, Config{RecentTTL: 10 * time.Second}, WithClock(clock.Now), WithLogger(quietLogger()),
		WithResultHandler(func(r Result) { results = append(results, r) }))
	ctx := context.Background()

	s.tick(ctx)
	clock.Advance(3 * time.Second)
	s.tick(ctx)
	clock.Advance(11 * time.Second)
	s.tick(ctx)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []bool{false, true, false}
	for i, r := range results {
		if r.Recent != want[i] {
			t.Errorf("result %d: Recent = %v, want %v", i, r.Recent, want[i])
		}
		if r.SessionID != s.ID() {
			t.Errorf("result %d: unexpected session id %q", i, r.SessionID)
		}
	}
}

func TestSession_ErrorsSurfacedWithoutRetry(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	src := &fakeSource{samples: []checkin.Sample{{Marker: "a"}, {Marker: "b"}}}
	sub := &fakeSubmitter{fn: func(checkin.SubmitSampleRequest) (checkin.AdmitResult, error) {
		return checkin.AdmitResult{}, checkin.ErrNoActiveEvent
	}}

	var errs []error
	s := NewSession(src, sub, Config{}, WithClock(clock.Now), WithLogger(quietLogger()),
		WithErrorHandler(func(err error) { errs = append(errs, err) }))

	s.tick(context.Background())
	if len(errs) != 1 || !errors.Is(errs[0], checkin.ErrNoActiveEvent) {
		t.Fatalf("expected one ErrNoActiveEvent, got %v", errs)
	}
	if sub.Calls() != 1 {
		t.Errorf("expected a single attempt, got %d", sub.Calls())
	}
	if s.Controller().Ready(clock.Now()) {
		t.Error("expected failures to hold the deny window")
	}
}

func TestSession_SourceErrorReported(t *testing.T) {
	src := &fakeSource{err: errors.New("camera unplugged")}
	sub := &fakeSubmitter{fn: func(checkin.SubmitSampleRequest) (checkin.AdmitResult, error) { return admitted(1), nil }}

	var errs []error
	s := NewSession(src, sub, Config{}, WithLogger(quietLogger()),
		WithErrorHandler(func(err error) { errs = append(errs, err) }))

	s.tick(context.Background())
	if len(errs) != 1 || sub.Calls() != 0 {
		t.Errorf("expected source error reported and nothing submitted, got %v and %d calls", errs, sub.Calls())
	}
}

func TestSession_RunAndStop(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{fn: func(checkin.SubmitSampleRequest) (checkin.AdmitResult, error) { return admitted(1), nil }}
	s := NewSession(src, sub, Config{PollInterval: 5 * time.Millisecond}, WithLogger(quietLogger()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	if n := src.closed.Load(); n != 1 {
		t.Errorf("expected source closed once, got %d", n)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed on restart, got %v", err)
	}
}

func TestSession_RunReturnsOnContextCancel(t *testing.T) {
	src := &fakeSource{}
	sub := &fakeSubmitter{fn: func(checkin.SubmitSampleRequest) (checkin.AdmitResult, error) { return admitted(1), nil }}
	s := NewSession(src, sub, Config{PollInterval: 5 * time.Millisecond}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := src.closed.Load(); n != 1 {
		t.Errorf("expected source closed once, got %d", n)
	}
}

func TestSession_StopBeforeRunClosesSource(t *testing.T) {
	src := &fakeSource{}
	s := NewSession(src, &fakeSubmitter{}, Config{}, WithLogger(quietLogger()))

	s.Stop()
	if n := src.closed.Load(); n != 1 {
		t.Errorf("expected source closed once, got %d", n)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestLineSource(t *testing.T) {
	input := strings.Join([]string{
		`# demo feed`,
		`{"marker":"bio_1"}`,
		``,
		`{}`,
		`{"vector":[0.1,0.2]}`,
		`not json`,
	}, "\n")
	src := NewLineSource(strings.NewReader(input))
	ctx := context.Background()

	s, ok, err := src.Next(ctx)
	if err != nil || !ok || s.Marker != "bio_1" {
		t.Fatalf("expected marker sample, got %+v %v %v", s, ok, err)
	}
	if _, ok, err := src.Next(ctx); err != nil || ok {
		t.Fatalf("expected empty frame, got ok=%v err=%v", ok, err)
	}
	s, ok, err = src.Next(ctx)
	if err != nil || !ok || len(s.Vector) != 2 {
		t.Fatalf("expected vector sample, got %+v %v %v", s, ok, err)
	}
	if _, _, err := src.Next(ctx); err == nil || !strings.Contains(err.Error(), "line 6") {
		t.Errorf("expected decode error on line 6, got %v", err)
	}
	if _, _, err := src.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}
