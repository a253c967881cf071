package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANCEL REGISTRATION COMMAND
// Frees a seat and hands it to the head of the waitlist in the same transaction.
// ══════════════════════════════════════════════════════════════════════════════

// CancelRegistrationCommand cancels a registration by ID.
type CancelRegistrationCommand struct {
	RegistrationID string

	CorrelationID string
}

// Validate normalizes the identifier in place.
func (c *CancelRegistrationCommand) Validate() error {
	id, err := shared.NormalizeID(c.RegistrationID)
	if err != nil {
		return shared.WrapError("cancel_registration", "Validate", shared.ErrInvalidID, "invalid registration id", err)
	}
	c.RegistrationID = id
	return nil
}

// CancelRegistrationResult contains the cancelled record and, if a seat was
// handed on, the promoted one.
type CancelRegistrationResult struct {
	Registration *participation.Registration
	Promoted     *participation.Registration
}

// CancelRegistrationHandler handles CancelRegistrationCommand.
type CancelRegistrationHandler struct {
	deps Deps
}

// NewCancelRegistrationHandler creates a new CancelRegistrationHandler.
func NewCancelRegistrationHandler(deps Deps) *CancelRegistrationHandler {
	return &CancelRegistrationHandler{deps: deps.withDefaults("cancel_registration")}
}

// Handle executes the cancel command.
func (h *CancelRegistrationHandler) Handle(ctx context.Context, cmd CancelRegistrationCommand) (*CancelRegistrationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		result *CancelRegistrationResult
		events []shared.Event
	)
	err := h.deps.Store.WithinTx(ctx, func(tx participation.Tx) error {
		result, events = nil, nil
		now := h.deps.Clock.Now()

		reg, err := tx.GetRegistration(ctx, cmd.RegistrationID)
		if err != nil {
			return err
		}
		if reg == nil {
			return participation.CheckCancel(nil)
		}

		// lock first, then re-read: a concurrent cancel may have won the lock
		event, err := tx.LockEvent(ctx, reg.EventID)
		if err != nil {
			return err
		}
		if reg, err = tx.GetRegistration(ctx, cmd.RegistrationID); err != nil {
			return err
		}
		if err := participation.CheckCancel(reg); err != nil {
			return err
		}

		heldSeat := reg.IsActive()
		if err := reg.Cancel(); err != nil {
			return err
		}
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return err
		}
		result = &CancelRegistrationResult{Registration: reg}
		events = append(events, shared.NewActivityEvent(shared.EventRegistrationCancelled,
			reg.ID, reg.StudentID, reg.EventID, string(reg.Status), now))

		if !heldSeat || event == nil || !event.HasCapacityLimit() {
			return nil
		}

		promoted, err := h.promoteNext(ctx, tx, event)
		if err != nil || promoted == nil {
			return err
		}
		result.Promoted = promoted
		events = append(events, shared.NewActivityEvent(shared.EventRegistrationPromoted,
			promoted.ID, promoted.StudentID, promoted.EventID, string(promoted.Status), now))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel registration: %w", err)
	}

	h.deps.Logger.Debug("registration cancelled",
		logger.RegistrationID(result.Registration.ID),
		logger.StudentID(result.Registration.StudentID),
		logger.EventID(result.Registration.EventID),
	)
	if p := result.Promoted; p != nil {
		h.deps.Logger.Info("waitlisted student promoted",
			logger.RegistrationID(p.ID),
			logger.StudentID(p.StudentID),
			logger.EventID(p.EventID),
		)
	}

	h.deps.publish(cmd.CorrelationID, events)
	return result, nil
}

// promoteNext moves the head of the waitlist onto a free seat. It returns nil
// when the waitlist is empty or no seat is free.
func (h *CancelRegistrationHandler) promoteNext(ctx context.Context, tx participation.Tx, event *participation.Event) (*participation.Registration, error) {
	registered, err := tx.CountRegistered(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if event.IsFull(registered) {
		return nil, nil
	}

	next, err := tx.NextWaitlisted(ctx, event.ID)
	if err != nil || next == nil {
		return nil, err
	}
	changed, err := next.Promote()
	if err != nil || !changed {
		return nil, err
	}
	if err := tx.UpdateRegistration(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}
