package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK ATTENDANCE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendanceCommand checks a registered student in.
type MarkAttendanceCommand struct {
	StudentID string
	EventID   string

	// Status is one of present, absent, late. Empty means present.
	Status string

	CorrelationID string

	parsed participation.AttendanceStatus
}

// Validate normalizes identifiers and parses the status.
func (c *MarkAttendanceCommand) Validate() error {
	sid, eid, err := normalizeIDs("mark_attendance", c.StudentID, c.EventID)
	if err != nil {
		return err
	}
	status, err := participation.ParseAttendanceStatus(c.Status)
	if err != nil {
		return err
	}
	c.StudentID, c.EventID, c.parsed = sid, eid, status
	return nil
}

// MarkAttendanceHandler handles MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	deps Deps
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(deps Deps) *MarkAttendanceHandler {
	return &MarkAttendanceHandler{deps: deps.withDefaults("mark_attendance")}
}

// Handle executes the mark attendance command.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*participation.Attendance, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		att    *participation.Attendance
		events []shared.Event
	)
	err := h.deps.Store.WithinTx(ctx, func(tx participation.Tx) error {
		att, events = nil, nil
		now := h.deps.Clock.Now()

		student, event, err := lockPair(ctx, tx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		reg, err := tx.FindRegistration(ctx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		existing, err := tx.FindAttendance(ctx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		if err := participation.CheckAttendance(student, event, reg, existing); err != nil {
			return err
		}

		att = participation.NewAttendance(shared.NewID(), cmd.StudentID, cmd.EventID, cmd.parsed, now)
		if err := tx.InsertAttendance(ctx, att); err != nil {
			return err
		}
		events = append(events, shared.NewActivityEvent(shared.EventAttendanceMarked,
			att.ID, att.StudentID, att.EventID, string(att.Status), now))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}

	h.deps.Logger.Debug("attendance marked",
		logger.StudentID(att.StudentID),
		logger.EventID(att.EventID),
		logger.Status(string(att.Status)),
	)
	h.deps.publish(cmd.CorrelationID, events)
	return att, nil
}
