package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

// CheckOutCommand stamps the check-out time on an attendance record.
type CheckOutCommand struct {
	StudentID string
	EventID   string

	CorrelationID string
}

// Validate normalizes the identifiers in place.
func (c *CheckOutCommand) Validate() error {
	sid, eid, err := normalizeIDs("check_out", c.StudentID, c.EventID)
	if err != nil {
		return err
	}
	c.StudentID, c.EventID = sid, eid
	return nil
}

// CheckOutHandler handles CheckOutCommand.
type CheckOutHandler struct {
	deps Deps
}

// NewCheckOutHandler creates a new CheckOutHandler.
func NewCheckOutHandler(deps Deps) *CheckOutHandler {
	return &CheckOutHandler{deps: deps.withDefaults("check_out")}
}

// Handle executes the check-out command.
func (h *CheckOutHandler) Handle(ctx context.Context, cmd CheckOutCommand) (*participation.Attendance, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		att    *participation.Attendance
		events []shared.Event
	)
	err := h.deps.Store.WithinTx(ctx, func(tx participation.Tx) error {
		events = nil
		now := h.deps.Clock.Now()

		student, event, err := lockPair(ctx, tx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		if att, err = tx.FindAttendance(ctx, cmd.StudentID, cmd.EventID); err != nil {
			return err
		}
		if err := participation.CheckCheckOut(student, event, att); err != nil {
			return err
		}
		if err := att.CheckOut(now); err != nil {
			return err
		}
		if err := tx.UpdateAttendance(ctx, att); err != nil {
			return err
		}
		events = append(events, shared.NewActivityEvent(shared.EventAttendanceChecked,
			att.ID, att.StudentID, att.EventID, string(att.Status), now))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check out: %w", err)
	}

	h.deps.Logger.Debug("student checked out",
		logger.StudentID(att.StudentID),
		logger.EventID(att.EventID),
	)
	h.deps.publish(cmd.CorrelationID, events)
	return att, nil
}
