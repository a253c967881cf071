// Package eventhandler contains domain event subscribers.
package eventhandler

import (
	"context"
	"time"

	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACTIVITY CHANGED HANDLER
// Drops cached stats of the student and the event an activity change touched.
// ═══════════════════════════════════════════════════════════════════════════

// OnActivityChangedHandler invalidates report caches.
type OnActivityChangedHandler struct {
	cache   report.StatsCache
	log     *logger.Logger
	timeout time.Duration
}

// NewOnActivityChangedHandler creates a new OnActivityChangedHandler.
func NewOnActivityChangedHandler(cache report.StatsCache, log *logger.Logger) *OnActivityChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnActivityChangedHandler{
		cache:   cache,
		log:     log.With(logger.Component("on_activity_changed")),
		timeout: 2 * time.Second,
	}
}

// Handle implements shared.EventHandler.
func (h *OnActivityChangedHandler) Handle(event shared.Event) error {
	studentID, eventID := participants(event)
	if studentID == "" && eventID == "" {
		h.log.Warn("event without participants", logger.String("event_type", string(event.EventType())))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var firstErr error
	if eventID != "" {
		if err := h.cache.InvalidateEvent(ctx, eventID); err != nil {
			h.log.Error("failed to invalidate event stats", logger.EventID(eventID), logger.Err(err))
			firstErr = err
		}
	}
	if studentID != "" {
		if err := h.cache.InvalidateStudent(ctx, studentID); err != nil {
			h.log.Error("failed to invalidate student stats", logger.StudentID(studentID), logger.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// participants reads the student and event an activity event refers to.
// Events rebuilt from another instance carry them in the payload only.
func participants(event shared.Event) (studentID, eventID string) {
	if ae, ok := event.(shared.ActivityEvent); ok {
		return ae.StudentID, ae.EventID
	}
	p := event.Payload()
	studentID, _ = p["student_id"].(string)
	eventID, _ = p["event_id"].(string)
	return studentID, eventID
}
