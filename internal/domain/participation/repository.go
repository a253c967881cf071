package participation

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence (postgres, sqlite).
// ══════════════════════════════════════════════════════════════════════════════

// Directory is the read-only view of the catalog.
// Finders return (nil, nil) when the row does not exist.
type Directory interface {
	FindStudent(ctx context.Context, id string) (*Student, error)
	FindEvent(ctx context.Context, id string) (*Event, error)
	FindInstitution(ctx context.Context, id string) (*Institution, error)
}

// Tx is the unit of work a lifecycle operation runs in.
// All reads observe the transaction's own writes.
type Tx interface {
	Directory

	// LockEvent loads the event and serializes concurrent capacity decisions on it
	// until the transaction ends. Returns (nil, nil) if the event does not exist.
	LockEvent(ctx context.Context, id string) (*Event, error)

	// FindRegistration returns the registration for the pair or nil.
	FindRegistration(ctx context.Context, studentID, eventID string) (*Registration, error)

	// GetRegistration returns the registration by ID or nil.
	GetRegistration(ctx context.Context, id string) (*Registration, error)

	// CountRegistered counts records in StatusRegistered for the event.
	CountRegistered(ctx context.Context, eventID string) (int, error)

	// NextWaitlisted returns the earliest waitlisted registration for the event,
	// ordered by RegisteredAt then Seq, or nil when the waitlist is empty.
	NextWaitlisted(ctx context.Context, eventID string) (*Registration, error)

	// InsertRegistration stores a new registration and fills in its Seq.
	// Returns an ErrConflict error if the pair already has a record.
	InsertRegistration(ctx context.Context, r *Registration) error

	// UpdateRegistration persists status and timestamp changes.
	UpdateRegistration(ctx context.Context, r *Registration) error

	FindAttendance(ctx context.Context, studentID, eventID string) (*Attendance, error)
	InsertAttendance(ctx context.Context, a *Attendance) error
	// UpdateAttendance persists the check-out time.
	UpdateAttendance(ctx context.Context, a *Attendance) error

	FindFeedback(ctx context.Context, studentID, eventID string) (*Feedback, error)
	InsertFeedback(ctx context.Context, f *Feedback) error
}

// Store is the transactional participation repository.
type Store interface {
	Directory

	// WithinTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. fn may be invoked again when the
	// store retries a serialization conflict, so it must not leak side effects.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListEventRegistrations(ctx context.Context, eventID string, status RegistrationStatus) ([]*Registration, error)
	ListStudentRegistrations(ctx context.Context, studentID string) ([]*Registration, error)
	ListEventAttendance(ctx context.Context, eventID string) ([]*Attendance, error)
	ListEventFeedback(ctx context.Context, eventID string) ([]*Feedback, error)
	ListStudentAttendance(ctx context.Context, studentID string) ([]*Attendance, error)
	ListStudentFeedback(ctx context.Context, studentID string) ([]*Feedback, error)
}

// Catalog writes directory entities. Used for seeding and tests; the full
// catalog CRUD surface lives outside this service.
type Catalog interface {
	CreateInstitution(ctx context.Context, i *Institution) error
	CreateStudent(ctx context.Context, s *Student) error
	CreateEvent(ctx context.Context, e *Event) error
	SetEventCancelled(ctx context.Context, eventID string, cancelled bool) error
}
