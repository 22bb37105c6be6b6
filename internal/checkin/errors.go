package checkin

import (
	"context"
	"errors"
	"fmt"
)

// Business outcomes. Callers match them with errors.Is and render them as
// structured results; none of them indicates a broken invariant.
var (
	ErrNoActiveEvent             = errors.New("no active event")
	ErrEventNotFound             = errors.New("event not found")
	ErrEventFinished             = errors.New("event is finished, reopen it first")
	ErrParticipantNotFound       = errors.New("participant not found")
	ErrInvalidSample             = errors.New("invalid sample")
	ErrInvalidRequest            = errors.New("invalid request")
	ErrCompanionsNotAllowed      = errors.New("companions are not allowed for this event")
	ErrLimitExceeded             = errors.New("companion limit exceeded")
	ErrDocumentAlreadyRegistered = errors.New("document already registered")
	ErrCheckoutDisabled          = errors.New("checkout is not enabled for this event")
	ErrAlreadyCheckedOut         = errors.New("participant already checked out")
)

// ErrStoreUnavailable marks persistence failures. It is the only hard failure;
// the operation can be retried by the caller.
var ErrStoreUnavailable = errors.New("store unavailable")

var businessErrors = []error{
	ErrNoActiveEvent, ErrEventNotFound, ErrEventFinished, ErrParticipantNotFound,
	ErrInvalidSample, ErrInvalidRequest, ErrCompanionsNotAllowed, ErrLimitExceeded,
	ErrDocumentAlreadyRegistered, ErrCheckoutDisabled, ErrAlreadyCheckedOut,
}

// IsBusinessError reports whether err is one of the recoverable business outcomes.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// storeError classifies err at the service boundary. Business outcomes and
// context cancellation pass through; anything else is a store failure.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsBusinessError(err) || errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func invalidSample(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSample, fmt.Sprintf(format, args...))
}
