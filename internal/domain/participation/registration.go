// Package participation contains the participation lifecycle of a student at an event:
// registration with capacity admission and waitlist promotion, attendance and feedback.
// Everything here is pure domain logic; persistence lives in infrastructure.
package participation

import (
	"fmt"
	"time"

	"github.com/campus-hub/participation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION STATUS
// ══════════════════════════════════════════════════════════════════════════════

// RegistrationStatus is the lifecycle state of a registration.
// The zero value stands for "unregistered" (no record exists yet).
type RegistrationStatus string

const (
	// StatusUnregistered is the implicit initial state.
	StatusUnregistered RegistrationStatus = ""
	// StatusRegistered holds a seat at the event.
	StatusRegistered RegistrationStatus = "registered"
	// StatusWaitlisted waits for a seat to free up.
	StatusWaitlisted RegistrationStatus = "waitlisted"
	// StatusCancelled gave up the seat or the waitlist position.
	StatusCancelled RegistrationStatus = "cancelled"
)

// transitions is the complete set of allowed lifecycle moves.
var transitions = map[RegistrationStatus][]RegistrationStatus{
	StatusUnregistered: {StatusRegistered, StatusWaitlisted},
	StatusRegistered:   {StatusCancelled},
	StatusWaitlisted:   {StatusRegistered, StatusCancelled},
	StatusCancelled:    {StatusRegistered, StatusWaitlisted},
}

// IsValid reports whether s is a persisted status.
func (s RegistrationStatus) IsValid() bool {
	switch s {
	case StatusRegistered, StatusWaitlisted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the wire representation.
func (s RegistrationStatus) String() string {
	if s == StatusUnregistered {
		return "unregistered"
	}
	return string(s)
}

// ParseRegistrationStatus converts a stored value into a status.
func ParseRegistrationStatus(v string) (RegistrationStatus, error) {
	s := RegistrationStatus(v)
	if !s.IsValid() {
		return "", shared.NewDomainError("registration", "ParseStatus", shared.ErrInvalidInput,
			fmt.Sprintf("unknown registration status %q", v))
	}
	return s, nil
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to RegistrationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Registration links a student to an event. There is at most one record per
// (student, event) pair; re-registration reopens the same record.
type Registration struct {
	ID           string
	StudentID    string
	EventID      string
	Status       RegistrationStatus
	RegisteredAt time.Time

	// Seq is the store-assigned insertion order, used to break waitlist ties.
	Seq int64
}

// NewRegistration creates a first-time registration in the admitted status.
func NewRegistration(id, studentID, eventID string, status RegistrationStatus, now time.Time) (*Registration, error) {
	if studentID == "" || eventID == "" {
		return nil, shared.ErrInvalidRegistrationRow
	}
	r := &Registration{
		ID:        id,
		StudentID: studentID,
		EventID:   eventID,
	}
	if err := r.transition("Register", status); err != nil {
		return nil, err
	}
	r.RegisteredAt = now
	return r, nil
}

// IsActive reports whether the registration holds a seat.
func (r *Registration) IsActive() bool {
	return r.Status == StatusRegistered
}

// Cancel gives up the seat or waitlist position.
func (r *Registration) Cancel() error {
	if r.Status == StatusCancelled {
		return shared.ErrRegistrationCancelled
	}
	return r.transition("Cancel", StatusCancelled)
}

// Reactivate reopens a cancelled registration with a fresh timestamp.
// The identity of the record is kept.
func (r *Registration) Reactivate(status RegistrationStatus, now time.Time) error {
	if r.Status != StatusCancelled {
		return shared.NewDomainError("registration", "Reactivate", shared.ErrStateTransition,
			fmt.Sprintf("cannot reactivate %s registration", r.Status))
	}
	if err := r.transition("Reactivate", status); err != nil {
		return err
	}
	r.RegisteredAt = now
	return nil
}

// Promote moves a waitlisted registration onto a freed seat.
// Promoting an already registered record is a no-op and returns false.
func (r *Registration) Promote() (bool, error) {
	switch r.Status {
	case StatusRegistered:
		return false, nil
	case StatusWaitlisted:
		return true, r.transition("Promote", StatusRegistered)
	default:
		return false, shared.NewDomainError("registration", "Promote", shared.ErrStateTransition,
			fmt.Sprintf("cannot promote %s registration", r.Status))
	}
}

func (r *Registration) transition(op string, to RegistrationStatus) error {
	if !CanTransition(r.Status, to) {
		return shared.NewDomainError("registration", op, shared.ErrStateTransition,
			fmt.Sprintf("transition %s -> %s is not allowed", r.Status, to))
	}
	r.Status = to
	return nil
}
