package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
)

const (
	registrationColumns = `seq, id, student_id, event_id, status, registered_at`
	attendanceColumns   = `id, student_id, event_id, status, check_in_time, check_out_time`
	feedbackColumns     = `id, student_id, event_id, rating, feedback_text, submitted_at`
)

// tx implements participation.Tx on top of a *sql.Tx.
type tx struct {
	q querier
}

var _ participation.Tx = (*tx)(nil)

func (t *tx) FindStudent(ctx context.Context, id string) (*participation.Student, error) {
	return findStudent(ctx, t.q, id)
}

func (t *tx) FindEvent(ctx context.Context, id string) (*participation.Event, error) {
	return findEvent(ctx, t.q, id)
}

func (t *tx) FindInstitution(ctx context.Context, id string) (*participation.Institution, error) {
	return findInstitution(ctx, t.q, id)
}

// LockEvent reads the event. The single connection already serializes writers.
func (t *tx) LockEvent(ctx context.Context, id string) (*participation.Event, error) {
	return findEvent(ctx, t.q, id)
}

// ═══════════════════════════════════════════════════════════════════════════
// REGISTRATIONS
// ═══════════════════════════════════════════════════════════════════════════

func (t *tx) FindRegistration(ctx context.Context, studentID, eventID string) (*participation.Registration, error) {
	return t.oneRegistration(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE student_id = ? AND event_id = ?`,
		studentID, eventID)
}

func (t *tx) GetRegistration(ctx context.Context, id string) (*participation.Registration, error) {
	return t.oneRegistration(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE id = ?`, id)
}

func (t *tx) CountRegistered(ctx context.Context, eventID string) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_registrations WHERE event_id = ? AND status = ?`,
		eventID, string(participation.StatusRegistered),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registered: %w", err)
	}
	return n, nil
}

func (t *tx) NextWaitlisted(ctx context.Context, eventID string) (*participation.Registration, error) {
	return t.oneRegistration(ctx,
		`SELECT `+registrationColumns+` FROM event_registrations
		 WHERE event_id = ? AND status = ?
		 ORDER BY registered_at ASC, seq ASC
		 LIMIT 1`,
		eventID, string(participation.StatusWaitlisted))
}

func (t *tx) InsertRegistration(ctx context.Context, r *participation.Registration) error {
	at := toMillis(r.RegisteredAt)
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO event_registrations (id, student_id, event_id, status, registered_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentID, r.EventID, string(r.Status), at, at)
	if isUniqueViolation(err) {
		return conflict("registration", "Insert", "registration already exists for this student and event", err)
	}
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("registration seq: %w", err)
	}
	r.Seq = seq
	return nil
}

func (t *tx) UpdateRegistration(ctx context.Context, r *participation.Registration) error {
	at := toMillis(r.RegisteredAt)
	res, err := t.q.ExecContext(ctx,
		`UPDATE event_registrations SET status = ?, registered_at = ?, updated_at = ? WHERE id = ?`,
		string(r.Status), at, at, r.ID)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrRegistrationNotFound
	}
	return nil
}

func (t *tx) oneRegistration(ctx context.Context, query string, args ...any) (*participation.Registration, error) {
	r, err := scanRegistration(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return r, nil
}

func scanRegistration(row rowScanner) (*participation.Registration, error) {
	var (
		r      participation.Registration
		status string
		at     int64
	)
	if err := row.Scan(&r.Seq, &r.ID, &r.StudentID, &r.EventID, &status, &at); err != nil {
		return nil, err
	}
	st, err := participation.ParseRegistrationStatus(status)
	if err != nil {
		return nil, err
	}
	r.Status = st
	r.RegisteredAt = fromMillis(at)
	return &r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ATTENDANCE & FEEDBACK
// ═══════════════════════════════════════════════════════════════════════════

func (t *tx) FindAttendance(ctx context.Context, studentID, eventID string) (*participation.Attendance, error) {
	a, err := scanAttendance(t.q.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE student_id = ? AND event_id = ?`,
		studentID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return a, nil
}

func (t *tx) InsertAttendance(ctx context.Context, a *participation.Attendance) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO attendance (`+attendanceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.StudentID, a.EventID, string(a.Status), toMillis(a.CheckInTime), nullMillis(a.CheckOutTime))
	if isUniqueViolation(err) {
		return conflict("attendance", "Insert", "attendance already marked", err)
	}
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (t *tx) UpdateAttendance(ctx context.Context, a *participation.Attendance) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE attendance SET check_out_time = ? WHERE id = ?`, nullMillis(a.CheckOutTime), a.ID)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrAttendanceNotFound
	}
	return nil
}

func scanAttendance(row rowScanner) (*participation.Attendance, error) {
	var (
		a        participation.Attendance
		status   string
		checkIn  int64
		checkOut sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.StudentID, &a.EventID, &status, &checkIn, &checkOut); err != nil {
		return nil, err
	}
	a.Status = participation.AttendanceStatus(status)
	a.CheckInTime = fromMillis(checkIn)
	a.CheckOutTime = timePtr(checkOut)
	return &a, nil
}

func (t *tx) FindFeedback(ctx context.Context, studentID, eventID string) (*participation.Feedback, error) {
	f, err := scanFeedback(t.q.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM event_feedback WHERE student_id = ? AND event_id = ?`,
		studentID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find feedback: %w", err)
	}
	return f, nil
}

func (t *tx) InsertFeedback(ctx context.Context, f *participation.Feedback) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO event_feedback (`+feedbackColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.StudentID, f.EventID, f.Rating.Int(), f.Text, toMillis(f.SubmittedAt))
	if isUniqueViolation(err) {
		return conflict("feedback", "Insert", "feedback already submitted", err)
	}
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func scanFeedback(row rowScanner) (*participation.Feedback, error) {
	var (
		f      participation.Feedback
		rating int
		at     int64
	)
	if err := row.Scan(&f.ID, &f.StudentID, &f.EventID, &rating, &f.Text, &at); err != nil {
		return nil, err
	}
	f.Rating = shared.Rating(rating)
	f.SubmittedAt = fromMillis(at)
	return &f, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// LISTINGS
// ═══════════════════════════════════════════════════════════════════════════

// ListEventRegistrations implements participation.Store. An empty status lists all.
func (s *Store) ListEventRegistrations(ctx context.Context, eventID string, status participation.RegistrationStatus) ([]*participation.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE event_id = ?`
	args := []any{eventID}
	if status != participation.StatusUnregistered {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY registered_at ASC, seq ASC`
	return listRows(ctx, s.db, "list event registrations", scanRegistration, query, args...)
}

// ListStudentRegistrations implements participation.Store.
func (s *Store) ListStudentRegistrations(ctx context.Context, studentID string) ([]*participation.Registration, error) {
	return listRows(ctx, s.db, "list student registrations", scanRegistration,
		`SELECT `+registrationColumns+` FROM event_registrations WHERE student_id = ? ORDER BY registered_at DESC, seq DESC`,
		studentID)
}

// ListEventAttendance implements participation.Store.
func (s *Store) ListEventAttendance(ctx context.Context, eventID string) ([]*participation.Attendance, error) {
	return listRows(ctx, s.db, "list attendance", scanAttendance,
		`SELECT `+attendanceColumns+` FROM attendance WHERE event_id = ? ORDER BY check_in_time ASC, seq ASC`,
		eventID)
}

// ListEventFeedback implements participation.Store.
func (s *Store) ListEventFeedback(ctx context.Context, eventID string) ([]*participation.Feedback, error) {
	return listRows(ctx, s.db, "list feedback", scanFeedback,
		`SELECT `+feedbackColumns+` FROM event_feedback WHERE event_id = ? ORDER BY submitted_at DESC, seq DESC`,
		eventID)
}

// ListStudentAttendance implements participation.Store.
func (s *Store) ListStudentAttendance(ctx context.Context, studentID string) ([]*participation.Attendance, error) {
	return listRows(ctx, s.db, "list student attendance", scanAttendance,
		`SELECT `+attendanceColumns+` FROM attendance WHERE student_id = ? ORDER BY check_in_time DESC, seq DESC`,
		studentID)
}

// ListStudentFeedback implements participation.Store.
func (s *Store) ListStudentFeedback(ctx context.Context, studentID string) ([]*participation.Feedback, error) {
	return listRows(ctx, s.db, "list student feedback", scanFeedback,
		`SELECT `+feedbackColumns+` FROM event_feedback WHERE student_id = ? ORDER BY submitted_at DESC, seq DESC`,
		studentID)
}

func listRows[T any](ctx context.Context, q querier, op string, scan func(rowScanner) (*T, error), query string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
