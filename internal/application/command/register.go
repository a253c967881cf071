package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER COMMAND
// Admits a student to an event, or to its waitlist when the event is full.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCommand asks for a seat at an event.
type RegisterCommand struct {
	StudentID string
	EventID   string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate normalizes the identifiers in place.
func (c *RegisterCommand) Validate() error {
	sid, eid, err := normalizeIDs("register", c.StudentID, c.EventID)
	if err != nil {
		return err
	}
	c.StudentID, c.EventID = sid, eid
	return nil
}

// RegisterResult contains the stored registration.
type RegisterResult struct {
	Registration *participation.Registration

	// Reactivated is true when a cancelled record was reopened.
	Reactivated bool
}

// Waitlisted reports whether the student landed on the waitlist.
func (r *RegisterResult) Waitlisted() bool {
	return r.Registration.Status == participation.StatusWaitlisted
}

// RegisterHandler handles RegisterCommand.
type RegisterHandler struct {
	deps Deps
}

// NewRegisterHandler creates a new RegisterHandler.
func NewRegisterHandler(deps Deps) *RegisterHandler {
	return &RegisterHandler{deps: deps.withDefaults("register")}
}

// Handle executes the register command.
func (h *RegisterHandler) Handle(ctx context.Context, cmd RegisterCommand) (*RegisterResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		result *RegisterResult
		events []shared.Event
	)
	err := h.deps.Store.WithinTx(ctx, func(tx participation.Tx) error {
		// the store may retry this closure; start from a clean slate
		result, events = nil, nil
		now := h.deps.Clock.Now()

		student, err := tx.FindStudent(ctx, cmd.StudentID)
		if err != nil {
			return err
		}
		event, err := tx.LockEvent(ctx, cmd.EventID)
		if err != nil {
			return err
		}
		existing, err := tx.FindRegistration(ctx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		if err := participation.CheckRegister(student, event, existing, now); err != nil {
			return err
		}

		registered, err := tx.CountRegistered(ctx, cmd.EventID)
		if err != nil {
			return err
		}
		status := event.AdmissionStatus(registered)

		if existing != nil {
			if err := existing.Reactivate(status, now); err != nil {
				return err
			}
			if err := tx.UpdateRegistration(ctx, existing); err != nil {
				return err
			}
			result = &RegisterResult{Registration: existing, Reactivated: true}
			events = append(events, shared.NewActivityEvent(shared.EventRegistrationReactivated,
				existing.ID, existing.StudentID, existing.EventID, string(existing.Status), now))
			return nil
		}

		reg, err := participation.NewRegistration(shared.NewID(), cmd.StudentID, cmd.EventID, status, now)
		if err != nil {
			return err
		}
		if err := tx.InsertRegistration(ctx, reg); err != nil {
			return err
		}
		result = &RegisterResult{Registration: reg}

		eventType := shared.EventRegistrationCreated
		if status == participation.StatusWaitlisted {
			eventType = shared.EventRegistrationWaitlisted
		}
		events = append(events, shared.NewActivityEvent(eventType, reg.ID, reg.StudentID, reg.EventID, string(reg.Status), now))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	reg := result.Registration
	fields := []logger.Field{
		logger.RegistrationID(reg.ID),
		logger.StudentID(reg.StudentID),
		logger.EventID(reg.EventID),
		logger.Status(reg.Status.String()),
	}
	if result.Waitlisted() {
		h.deps.Logger.Info("event full, student waitlisted", fields...)
	} else {
		h.deps.Logger.Debug("student registered", append(fields, logger.Bool("reactivated", result.Reactivated))...)
	}

	h.deps.publish(cmd.CorrelationID, events)
	return result, nil
}
