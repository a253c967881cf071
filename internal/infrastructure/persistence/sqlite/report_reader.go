package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/report"
)

var _ report.Reader = (*Store)(nil)

// EventCounts implements report.Reader.
func (s *Store) EventCounts(ctx context.Context, eventID string) (report.Counts, error) {
	var c report.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM event_registrations WHERE event_id = ? AND status = 'registered'),
		  (SELECT COUNT(*) FROM attendance WHERE event_id = ? AND status = 'present'),
		  (SELECT COUNT(*) FROM event_feedback WHERE event_id = ?),
		  (SELECT COALESCE(SUM(rating), 0) FROM event_feedback WHERE event_id = ?)`,
		eventID, eventID, eventID, eventID,
	).Scan(&c.Registrations, &c.Attendance, &c.Feedback, &c.RatingSum)
	if err != nil {
		return report.Counts{}, fmt.Errorf("event counts: %w", err)
	}
	return c, nil
}

// StudentCounts implements report.Reader.
func (s *Store) StudentCounts(ctx context.Context, studentID string) (report.Counts, error) {
	var c report.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM event_registrations WHERE student_id = ? AND status = 'registered'),
		  (SELECT COUNT(*) FROM attendance WHERE student_id = ? AND status = 'present'),
		  (SELECT COUNT(*) FROM event_feedback WHERE student_id = ?),
		  (SELECT COALESCE(SUM(rating), 0) FROM event_feedback WHERE student_id = ?)`,
		studentID, studentID, studentID, studentID,
	).Scan(&c.Registrations, &c.Attendance, &c.Feedback, &c.RatingSum)
	if err != nil {
		return report.Counts{}, fmt.Errorf("student counts: %w", err)
	}
	return c, nil
}

// InstitutionCounts implements report.Reader. Activity is attributed through
// the institution's students.
func (s *Store) InstitutionCounts(ctx context.Context, institutionID string) (report.InstitutionCounts, error) {
	var c report.InstitutionCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM students WHERE institution_id = ?),
		  (SELECT COUNT(*) FROM events WHERE institution_id = ?),
		  (SELECT COUNT(*) FROM event_registrations r JOIN students s ON s.id = r.student_id
		     WHERE s.institution_id = ? AND r.status = 'registered'),
		  (SELECT COUNT(*) FROM attendance a JOIN students s ON s.id = a.student_id
		     WHERE s.institution_id = ? AND a.status = 'present'),
		  (SELECT COUNT(*) FROM event_feedback f JOIN students s ON s.id = f.student_id
		     WHERE s.institution_id = ?),
		  (SELECT COALESCE(SUM(f.rating), 0) FROM event_feedback f JOIN students s ON s.id = f.student_id
		     WHERE s.institution_id = ?)`,
		repeat(institutionID, 6)...,
	).Scan(&c.Students, &c.Events, &c.Registrations, &c.Attendance, &c.Feedback, &c.RatingSum)
	if err != nil {
		return report.InstitutionCounts{}, fmt.Errorf("institution counts: %w", err)
	}
	return c, nil
}

// ListEvents implements report.Reader. Rows come back in insertion order.
func (s *Store) ListEvents(ctx context.Context, filter report.EventFilter) ([]*participation.Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.InstitutionID != "" {
		where = append(where, "institution_id = ?")
		args = append(args, filter.InstitutionID)
	}
	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.From != nil {
		where = append(where, "start_date >= ?")
		args = append(args, toMillis(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "start_date <= ?")
		args = append(args, toMillis(*filter.To))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY rowid ASC`
	return listRows(ctx, s.db, "list events", scanEvent, query, args...)
}

// ListStudents implements report.Reader.
func (s *Store) ListStudents(ctx context.Context, filter report.StudentFilter) ([]*participation.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	var args []any
	if filter.InstitutionID != "" {
		query += ` WHERE institution_id = ?`
		args = append(args, filter.InstitutionID)
	}
	query += ` ORDER BY rowid ASC`
	return listRows(ctx, s.db, "list students", scanStudent, query, args...)
}

func repeat(v any, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = v
	}
	return out
}
