package participation

import (
	"strings"
	"time"

	"github.com/campus-hub/participation/internal/domain/shared"
)

// AttendanceStatus records how a student showed up.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// IsValid checks the status against the known values.
func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// ParseAttendanceStatus parses user input. An empty value means present.
func ParseAttendanceStatus(v string) (AttendanceStatus, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return AttendancePresent, nil
	}
	s := AttendanceStatus(v)
	if !s.IsValid() {
		return "", shared.ErrInvalidAttendance
	}
	return s, nil
}

// Attendance is the check-in record of a student at an event.
// Once created only the check-out time may change.
type Attendance struct {
	ID           string
	StudentID    string
	EventID      string
	Status       AttendanceStatus
	CheckInTime  time.Time
	CheckOutTime *time.Time
}

// NewAttendance creates an attendance record checked in at now.
func NewAttendance(id, studentID, eventID string, status AttendanceStatus, now time.Time) *Attendance {
	return &Attendance{
		ID:          id,
		StudentID:   studentID,
		EventID:     eventID,
		Status:      status,
		CheckInTime: now,
	}
}

// IsPresent reports whether the record counts towards attendance figures.
func (a *Attendance) IsPresent() bool {
	return a.Status == AttendancePresent
}

// CheckOut stamps the check-out time.
func (a *Attendance) CheckOut(now time.Time) error {
	if a.CheckOutTime != nil {
		return shared.ErrAlreadyCheckedOut
	}
	if now.Before(a.CheckInTime) {
		return shared.ErrCheckOutBeforeEntry
	}
	a.CheckOutTime = &now
	return nil
}
