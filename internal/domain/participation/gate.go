package participation

import (
	"time"

	"github.com/campus-hub/participation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GATES
// Each gate evaluates the preconditions of one lifecycle operation in order.
// The first failing check wins. Nil arguments mean "no such record".
// ══════════════════════════════════════════════════════════════════════════════

// CheckRegister validates a registration request.
func CheckRegister(student *Student, event *Event, existing *Registration, now time.Time) error {
	if err := checkDirectory(student, event); err != nil {
		return err
	}
	if event.IsCancelled {
		return shared.ErrEventCancelled
	}
	if event.HasStarted(now) {
		return shared.ErrEventStarted
	}
	if existing == nil {
		return nil
	}
	switch existing.Status {
	case StatusRegistered:
		return shared.ErrAlreadyRegistered
	case StatusWaitlisted:
		return shared.ErrAlreadyWaitlisted
	}
	return nil
}

// CheckCancel validates a cancellation of reg.
func CheckCancel(reg *Registration) error {
	if reg == nil {
		return shared.ErrRegistrationNotFound
	}
	if reg.Status == StatusCancelled {
		return shared.ErrRegistrationCancelled
	}
	return nil
}

// CheckAttendance validates marking attendance. Only an active registration
// admits the student; waitlisted and cancelled records do not.
func CheckAttendance(student *Student, event *Event, reg *Registration, existing *Attendance) error {
	if err := checkDirectory(student, event); err != nil {
		return err
	}
	if reg == nil || !reg.IsActive() {
		return shared.ErrNotRegistered
	}
	if existing != nil {
		return shared.ErrAttendanceExists
	}
	return nil
}

// CheckCheckOut validates a check-out of the attendance record.
func CheckCheckOut(student *Student, event *Event, att *Attendance) error {
	if err := checkDirectory(student, event); err != nil {
		return err
	}
	if att == nil {
		return shared.ErrAttendanceNotFound
	}
	if att.CheckOutTime != nil {
		return shared.ErrAlreadyCheckedOut
	}
	return nil
}

// CheckFeedback validates a feedback submission and returns the parsed rating.
// Any attendance record opens the gate, whatever its status.
func CheckFeedback(student *Student, event *Event, rating int, att *Attendance, existing *Feedback) (shared.Rating, error) {
	if err := checkDirectory(student, event); err != nil {
		return 0, err
	}
	r, err := shared.NewRating(rating)
	if err != nil {
		return 0, err
	}
	if att == nil {
		return 0, shared.ErrNotAttended
	}
	if existing != nil {
		return 0, shared.ErrFeedbackExists
	}
	return r, nil
}

func checkDirectory(student *Student, event *Event) error {
	if student == nil {
		return shared.ErrStudentNotFound
	}
	if event == nil {
		return shared.ErrEventNotFound
	}
	return nil
}
