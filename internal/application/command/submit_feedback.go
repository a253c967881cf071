package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT FEEDBACK COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SubmitFeedbackCommand records a student's rating of an attended event.
type SubmitFeedbackCommand struct {
	StudentID string
	EventID   string
	Rating    int
	Text      string

	CorrelationID string
}

// Validate normalizes the identifiers and trims the comment. The rating is
// checked by the feedback gate so that unknown entities surface first.
func (c *SubmitFeedbackCommand) Validate() error {
	sid, eid, err := normalizeIDs("submit_feedback", c.StudentID, c.EventID)
	if err != nil {
		return err
	}
	c.StudentID, c.EventID = sid, eid
	c.Text = strings.TrimSpace(c.Text)
	return nil
}

// SubmitFeedbackHandler handles SubmitFeedbackCommand.
type SubmitFeedbackHandler struct {
	deps Deps
}

// NewSubmitFeedbackHandler creates a new SubmitFeedbackHandler.
func NewSubmitFeedbackHandler(deps Deps) *SubmitFeedbackHandler {
	return &SubmitFeedbackHandler{deps: deps.withDefaults("submit_feedback")}
}

// Handle executes the submit feedback command.
func (h *SubmitFeedbackHandler) Handle(ctx context.Context, cmd SubmitFeedbackCommand) (*participation.Feedback, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		fb     *participation.Feedback
		events []shared.Event
	)
	err := h.deps.Store.WithinTx(ctx, func(tx participation.Tx) error {
		fb, events = nil, nil
		now := h.deps.Clock.Now()

		student, event, err := lockPair(ctx, tx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		att, err := tx.FindAttendance(ctx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		existing, err := tx.FindFeedback(ctx, cmd.StudentID, cmd.EventID)
		if err != nil {
			return err
		}
		rating, err := participation.CheckFeedback(student, event, cmd.Rating, att, existing)
		if err != nil {
			return err
		}

		if fb, err = participation.NewFeedback(shared.NewID(), cmd.StudentID, cmd.EventID, rating, cmd.Text, now); err != nil {
			return err
		}
		if err := tx.InsertFeedback(ctx, fb); err != nil {
			return err
		}
		events = append(events, shared.NewActivityEvent(shared.EventFeedbackSubmitted,
			fb.ID, fb.StudentID, fb.EventID, "", now))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit feedback: %w", err)
	}

	h.deps.Logger.Debug("feedback submitted",
		logger.StudentID(fb.StudentID),
		logger.EventID(fb.EventID),
		logger.Int("rating", fb.Rating.Int()),
	)
	h.deps.publish(cmd.CorrelationID, events)
	return fb, nil
}
