package capture

import (
	"sync"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

// Outcome is what an operator-facing display last showed.
type Outcome int

const (
	OutcomeAdmit Outcome = iota
	OutcomeDeny
)

func (o Outcome) String() string {
	if o == OutcomeAdmit {
		return "admit"
	}
	return "deny"
}

// Controller suspends automated re-submission for a short window after each
// displayed outcome. A deny holds longer than an admit.
type Controller struct {
	mu    sync.Mutex
	admit time.Duration
	deny  time.Duration
	until time.Time
}

// NewController creates a controller. Non-positive windows select the defaults.
func NewController(admit, deny time.Duration) *Controller {
	if admit <= 0 {
		admit = constants.DefaultAdmitCooldown
	}
	if deny <= 0 {
		deny = constants.DefaultDenyCooldown
	}
	return &Controller{admit: admit, deny: deny}
}

// Ready reports whether a new sample may be submitted at now.
func (c *Controller) Ready(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !now.Before(c.until)
}

// Remaining returns how long submission stays suspended after now.
func (c *Controller) Remaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.until) {
		return c.until.Sub(now)
	}
	return 0
}

// Observe starts the window matching outcome.
func (c *Controller) Observe(outcome Outcome, now time.Time) {
	window := c.admit
	if outcome == OutcomeDeny {
		window = c.deny
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = now.Add(window)
}

// Reset clears any pending window.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = time.Time{}
}
