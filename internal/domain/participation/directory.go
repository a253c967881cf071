package participation

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY ENTITIES
// Institutions, students and events are owned by the catalog. The lifecycle only
// reads them for existence checks, capacity context and report labels.
// ══════════════════════════════════════════════════════════════════════════════

// Institution is a college or campus that hosts events and enrols students.
type Institution struct {
	ID       string
	Code     string
	Name     string
	Location string
}

// Student is a participant enrolled at an institution.
type Student struct {
	ID            string
	InstitutionID string
	StudentNumber string
	Email         string
	FirstName     string
	LastName      string
	IsActive      bool
}

// Name returns the display name of the student.
func (s *Student) Name() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// DefaultEventType labels events without a type in reports.
const DefaultEventType = "Other"

// Event is a scheduled happening students can register for.
type Event struct {
	ID            string
	InstitutionID string
	Code          string
	Title         string
	Description   string
	EventType     string
	Location      string
	StartDate     time.Time
	EndDate       time.Time

	// MaxCapacity is nil when the event has no seat limit.
	MaxCapacity *int
	IsCancelled bool
}

// HasCapacityLimit reports whether the event caps registrations.
func (e *Event) HasCapacityLimit() bool {
	return e.MaxCapacity != nil
}

// IsFull reports whether registered seats reached the capacity.
func (e *Event) IsFull(registered int) bool {
	return e.MaxCapacity != nil && registered >= *e.MaxCapacity
}

// HasStarted reports whether registration is closed at now.
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartDate.After(now)
}

// AdmissionStatus decides the status a new or reopened registration receives.
// Overflow is silently waitlisted.
func (e *Event) AdmissionStatus(registered int) RegistrationStatus {
	if e.IsFull(registered) {
		return StatusWaitlisted
	}
	return StatusRegistered
}

// TypeLabel returns the event type or DefaultEventType when unset.
func (e *Event) TypeLabel() string {
	if strings.TrimSpace(e.EventType) == "" {
		return DefaultEventType
	}
	return e.EventType
}
