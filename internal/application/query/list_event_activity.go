package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY LISTINGS
// Raw registration, attendance and feedback rows per event or student.
// ══════════════════════════════════════════════════════════════════════════════

// ListEventActivityHandler serves the activity listings.
type ListEventActivityHandler struct {
	store participation.Store
	deps  Deps
}

// NewListEventActivityHandler creates a new ListEventActivityHandler.
func NewListEventActivityHandler(store participation.Store, deps Deps) *ListEventActivityHandler {
	if deps.Directory == nil {
		deps.Directory = store
	}
	return &ListEventActivityHandler{store: store, deps: deps.withDefaults("event_activity")}
}

// Registrations lists the registrations of an event, optionally filtered by
// status. Earliest first, the order the waitlist is served in.
func (h *ListEventActivityHandler) Registrations(ctx context.Context, eventID, status string) ([]*participation.Registration, error) {
	eventID, err := h.requireEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var filter participation.RegistrationStatus
	if status = strings.ToLower(strings.TrimSpace(status)); status != "" {
		if filter, err = participation.ParseRegistrationStatus(status); err != nil {
			return nil, err
		}
	}

	regs, err := h.store.ListEventRegistrations(ctx, eventID, filter)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// Attendance lists the attendance records of an event in check-in order.
func (h *ListEventActivityHandler) Attendance(ctx context.Context, eventID string) ([]*participation.Attendance, error) {
	eventID, err := h.requireEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows, err := h.store.ListEventAttendance(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// Feedback lists the feedback of an event, newest first.
func (h *ListEventActivityHandler) Feedback(ctx context.Context, eventID string) ([]*participation.Feedback, error) {
	eventID, err := h.requireEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows, err := h.store.ListEventFeedback(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return rows, nil
}

// StudentRegistrations lists the registrations of a student, newest first.
func (h *ListEventActivityHandler) StudentRegistrations(ctx context.Context, studentID string) ([]*participation.Registration, error) {
	studentID, err := h.requireStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	regs, err := h.store.ListStudentRegistrations(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// StudentAttendance lists the attendance records of a student, latest check-in first.
func (h *ListEventActivityHandler) StudentAttendance(ctx context.Context, studentID string) ([]*participation.Attendance, error) {
	studentID, err := h.requireStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	rows, err := h.store.ListStudentAttendance(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// StudentFeedback lists the feedback a student submitted, newest first.
func (h *ListEventActivityHandler) StudentFeedback(ctx context.Context, studentID string) ([]*participation.Feedback, error) {
	studentID, err := h.requireStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	rows, err := h.store.ListStudentFeedback(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return rows, nil
}

func (h *ListEventActivityHandler) requireStudent(ctx context.Context, studentID string) (string, error) {
	studentID, err := normalizeID("event_activity", "student_id", studentID)
	if err != nil {
		return "", err
	}
	st, err := h.deps.Directory.FindStudent(ctx, studentID)
	if err != nil {
		return "", fmt.Errorf("find student: %w", err)
	}
	if st == nil {
		return "", shared.ErrStudentNotFound
	}
	return studentID, nil
}

func (h *ListEventActivityHandler) requireEvent(ctx context.Context, eventID string) (string, error) {
	eventID, err := normalizeID("event_activity", "event_id", eventID)
	if err != nil {
		return "", err
	}
	ev, err := h.deps.Directory.FindEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("find event: %w", err)
	}
	if ev == nil {
		return "", shared.ErrEventNotFound
	}
	return eventID, nil
}
