package capture

import (
	"testing"
	"time"
)

func TestController_Windows(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		outcome Outcome
		elapsed time.Duration
		ready   bool
	}{
		{"admit blocks inside window", OutcomeAdmit, 1500 * time.Millisecond, false},
		{"admit releases after 2s", OutcomeAdmit, 2 * time.Second, true},
		{"deny blocks at 2s", OutcomeDeny, 2 * time.Second, false},
		{"deny releases after 3s", OutcomeDeny, 3 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(0, 0)
			if !c.Ready(start) {
				t.Fatal("new controller must be ready")
			}
			c.Observe(tt.outcome, start)
			if got := c.Ready(start.Add(tt.elapsed)); got != tt.ready {
				t.Errorf("Ready() = %v, want %v", got, tt.ready)
			}
		})
	}
}

func TestController_RemainingAndReset(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c := NewController(time.Second, 5*time.Second)

	c.Observe(OutcomeDeny, now)
	if got := c.Remaining(now.Add(time.Second)); got != 4*time.Second {
		t.Errorf("Remaining() = %v, want 4s", got)
	}

	c.Reset()
	if !c.Ready(now) || c.Remaining(now) != 0 {
		t.Error("expected controller ready after Reset")
	}
}

func TestController_LatestOutcomeWins(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c := NewController(2*time.Second, 3*time.Second)

	c.Observe(OutcomeDeny, now)
	c.Observe(OutcomeAdmit, now)
	if !c.Ready(now.Add(2 * time.Second)) {
		t.Error("expected the admit window to replace the deny window")
	}
}
