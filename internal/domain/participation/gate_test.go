package participation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/participation/internal/domain/shared"
)

func gateFixtures(now time.Time) (*Student, *Event) {
	return &Student{ID: "s1", FirstName: "Ada", LastName: "Lovelace"},
		&Event{ID: "e1", StartDate: now.Add(24 * time.Hour)}
}

func TestCheckRegister(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	student, event := gateFixtures(now)

	assert.NoError(t, CheckRegister(student, event, nil, now))

	assert.ErrorIs(t, CheckRegister(nil, event, nil, now), shared.ErrNotFound)
	assert.ErrorIs(t, CheckRegister(student, nil, nil, now), shared.ErrNotFound)

	cancelled := *event
	cancelled.IsCancelled = true
	assert.ErrorIs(t, CheckRegister(student, &cancelled, nil, now), shared.ErrInvalidState)

	started := *event
	started.StartDate = now
	assert.ErrorIs(t, CheckRegister(student, &started, nil, now), shared.ErrInvalidState)

	// cancelled wins over started: first failing check
	both := started
	both.IsCancelled = true
	assert.Equal(t, shared.ErrEventCancelled, CheckRegister(student, &both, nil, now))

	existing := &Registration{Status: StatusRegistered}
	assert.True(t, shared.IsConflict(CheckRegister(student, event, existing, now)))

	existing.Status = StatusWaitlisted
	assert.True(t, shared.IsConflict(CheckRegister(student, event, existing, now)))

	existing.Status = StatusCancelled
	assert.NoError(t, CheckRegister(student, event, existing, now))
}

func TestCheckAttendance(t *testing.T) {
	now := time.Now()
	student, event := gateFixtures(now)

	for _, st := range []RegistrationStatus{StatusWaitlisted, StatusCancelled} {
		err := CheckAttendance(student, event, &Registration{Status: st}, nil)
		assert.True(t, shared.IsInvalidState(err), st)
	}
	assert.True(t, shared.IsInvalidState(CheckAttendance(student, event, nil, nil)))

	reg := &Registration{Status: StatusRegistered}
	assert.NoError(t, CheckAttendance(student, event, reg, nil))
	assert.True(t, shared.IsConflict(CheckAttendance(student, event, reg, &Attendance{})))
	assert.True(t, shared.IsNotFound(CheckAttendance(nil, event, reg, nil)))
}

func TestCheckFeedback(t *testing.T) {
	now := time.Now()
	student, event := gateFixtures(now)
	att := &Attendance{Status: AttendanceAbsent}

	for _, rating := range []int{0, 6, -1} {
		_, err := CheckFeedback(student, event, rating, att, nil)
		assert.True(t, shared.IsValidation(err), "rating %d", rating)
	}
	for _, rating := range []int{1, 5} {
		r, err := CheckFeedback(student, event, rating, att, nil)
		require.NoError(t, err)
		assert.Equal(t, rating, r.Int())
	}

	_, err := CheckFeedback(student, event, 4, nil, nil)
	assert.True(t, shared.IsInvalidState(err))

	_, err = CheckFeedback(student, event, 4, att, &Feedback{})
	assert.True(t, shared.IsConflict(err))

	// validation precedes the attendance gate
	_, err = CheckFeedback(student, event, 9, nil, nil)
	assert.True(t, shared.IsValidation(err))
}

func TestCheckOut(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	student, event := gateFixtures(now)

	assert.True(t, shared.IsNotFound(CheckCheckOut(student, event, nil)))

	att := NewAttendance("a1", "s1", "e1", AttendanceLate, now)
	require.NoError(t, CheckCheckOut(student, event, att))
	require.NoError(t, att.CheckOut(now.Add(time.Hour)))
	require.NotNil(t, att.CheckOutTime)

	assert.True(t, shared.IsConflict(CheckCheckOut(student, event, att)))
	assert.True(t, shared.IsConflict(att.CheckOut(now.Add(2*time.Hour))))

	early := NewAttendance("a2", "s1", "e1", AttendancePresent, now)
	assert.True(t, shared.IsValidation(early.CheckOut(now.Add(-time.Minute))))
}

func TestParseAttendanceStatus(t *testing.T) {
	s, err := ParseAttendanceStatus("")
	require.NoError(t, err)
	assert.Equal(t, AttendancePresent, s)

	s, err = ParseAttendanceStatus(" Late ")
	require.NoError(t, err)
	assert.Equal(t, AttendanceLate, s)

	_, err = ParseAttendanceStatus("excused")
	assert.True(t, shared.IsValidation(err))
}
