package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/KelvinMNH/FaceEventos/internal/constants"
	"github.com/KelvinMNH/FaceEventos/internal/database"
)

// CompanionResult is the outcome of a companion registration.
type CompanionResult struct {
	Companion database.StoredParticipant
	Record    database.StoredAccessRecord
	Event     database.StoredEvent
}

// CompanionGuard admits companions under a responsible participant's quota.
type CompanionGuard struct {
	store  database.Store
	ledger *AccessLedger
	token  func() string
}

// NewCompanionGuard creates a guard writing through ledger.
func NewCompanionGuard(store database.Store, ledger *AccessLedger) *CompanionGuard {
	return &CompanionGuard{
		store:  store,
		ledger: ledger,
		token:  func() string { return uuid.NewString()[:8] },
	}
}

// placeholderDocument builds the synthetic document of a companion.
func (g *CompanionGuard) placeholderDocument(responsibleID int64) string {
	return fmt.Sprintf("%s-%d-%s", constants.CompanionDocumentPrefix, responsibleID, g.token())
}

// Register admits a companion of responsibleID into the active event.
// The quota check and both writes run in one unit of work per responsible.
func (g *CompanionGuard) Register(ctx context.Context, responsibleID int64, name string) (CompanionResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CompanionResult{}, invalidRequest("companion name is required")
	}

	var res CompanionResult
	key := fmt.Sprintf("companion:%d", responsibleID)
	err := g.store.WithLock(ctx, key, func(ctx context.Context, tx database.Tx) error {
		event, err := tx.GetActiveEvent(ctx)
		if err != nil {
			return err
		}
		if event == nil {
			return ErrNoActiveEvent
		}
		if !event.Companions.Allowed {
			return ErrCompanionsNotAllowed
		}

		responsible, err := tx.GetParticipant(ctx, responsibleID)
		if err != nil {
			return err
		}
		if responsible == nil || responsible.Companion {
			return ErrParticipantNotFound
		}

		if limit := event.Companions.MaxPerEscort; limit > 0 {
			count, err := tx.CountCompanionRecords(ctx, event.ID, responsibleID)
			if err != nil {
				return err
			}
			if count >= limit {
				return fmt.Errorf("%w: %d of %d companions already admitted", ErrLimitExceeded, count, limit)
			}
		}

		companion := database.StoredParticipant{
			Name:      name,
			Document:  g.placeholderDocument(responsibleID),
			Companion: true,
			Active:    true,
		}
		if err := tx.CreateParticipant(ctx, &companion); err != nil {
			if errors.Is(err, database.ErrDuplicateDocument) {
				return fmt.Errorf("companion placeholder collision: %w", err)
			}
			return err
		}

		rid := responsibleID
		appended, err := g.ledger.appendTx(ctx, tx, Entry{
			EventID:       event.ID,
			ParticipantID: &companion.ID,
			Outcome:       database.OutcomeMatched,
			Device:        constants.DeviceCompanion,
			ResponsibleID: &rid,
		})
		if err != nil {
			return err
		}

		res = CompanionResult{Companion: companion, Record: appended.Record, Event: *event}
		return nil
	})
	if err != nil {
		return CompanionResult{}, storeError("register companion", err)
	}
	return res, nil
}
