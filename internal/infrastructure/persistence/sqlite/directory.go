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
	studentColumns = `id, institution_id, student_number, email, first_name, last_name, is_active`
	eventColumns   = `id, institution_id, code, title, description, event_type, location,
		start_date, end_date, max_capacity, is_cancelled`
)

type rowScanner interface {
	Scan(dest ...any) error
}

// ═══════════════════════════════════════════════════════════════════════════
// DIRECTORY READS
// ═══════════════════════════════════════════════════════════════════════════

// FindStudent implements participation.Directory.
func (s *Store) FindStudent(ctx context.Context, id string) (*participation.Student, error) {
	return findStudent(ctx, s.db, id)
}

// FindEvent implements participation.Directory.
func (s *Store) FindEvent(ctx context.Context, id string) (*participation.Event, error) {
	return findEvent(ctx, s.db, id)
}

// FindInstitution implements participation.Directory.
func (s *Store) FindInstitution(ctx context.Context, id string) (*participation.Institution, error) {
	return findInstitution(ctx, s.db, id)
}

func findStudent(ctx context.Context, q querier, id string) (*participation.Student, error) {
	row := q.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = ?`, id)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	return st, nil
}

func findEvent(ctx context.Context, q querier, id string) (*participation.Event, error) {
	row := q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return ev, nil
}

func findInstitution(ctx context.Context, q querier, id string) (*participation.Institution, error) {
	var inst participation.Institution
	err := q.QueryRowContext(ctx,
		`SELECT id, code, name, location FROM institutions WHERE id = ?`, id,
	).Scan(&inst.ID, &inst.Code, &inst.Name, &inst.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find institution: %w", err)
	}
	return &inst, nil
}

func scanStudent(row rowScanner) (*participation.Student, error) {
	var (
		st     participation.Student
		active int
	)
	if err := row.Scan(&st.ID, &st.InstitutionID, &st.StudentNumber, &st.Email,
		&st.FirstName, &st.LastName, &active); err != nil {
		return nil, err
	}
	st.IsActive = active != 0
	return &st, nil
}

func scanEvent(row rowScanner) (*participation.Event, error) {
	var (
		ev        participation.Event
		start     int64
		end       sql.NullInt64
		capacity  sql.NullInt64
		cancelled int
	)
	if err := row.Scan(&ev.ID, &ev.InstitutionID, &ev.Code, &ev.Title, &ev.Description,
		&ev.EventType, &ev.Location, &start, &end, &capacity, &cancelled); err != nil {
		return nil, err
	}
	ev.StartDate = fromMillis(start)
	if end.Valid {
		ev.EndDate = fromMillis(end.Int64)
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		ev.MaxCapacity = &c
	}
	ev.IsCancelled = cancelled != 0
	return &ev, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// CATALOG WRITES
// ═══════════════════════════════════════════════════════════════════════════

// CreateInstitution implements participation.Catalog.
func (s *Store) CreateInstitution(ctx context.Context, i *participation.Institution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO institutions (id, code, name, location) VALUES (?, ?, ?, ?)`,
		i.ID, i.Code, i.Name, i.Location)
	if isUniqueViolation(err) {
		return conflict("institution", "Create", "institution already exists", err)
	}
	if err != nil {
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// CreateStudent implements participation.Catalog.
func (s *Store) CreateStudent(ctx context.Context, st *participation.Student) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (`+studentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.InstitutionID, st.StudentNumber, st.Email, st.FirstName, st.LastName, boolInt(st.IsActive))
	if isUniqueViolation(err) {
		return conflict("student", "Create", "student already exists", err)
	}
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// CreateEvent implements participation.Catalog.
func (s *Store) CreateEvent(ctx context.Context, e *participation.Event) error {
	var capacity sql.NullInt64
	if e.MaxCapacity != nil {
		capacity = sql.NullInt64{Int64: int64(*e.MaxCapacity), Valid: true}
	}
	end := e.EndDate
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.InstitutionID, e.Code, e.Title, e.Description, e.EventType, e.Location,
		toMillis(e.StartDate), nullMillis(&end), capacity, boolInt(e.IsCancelled))
	if isUniqueViolation(err) {
		return conflict("event", "Create", "event already exists", err)
	}
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// SetEventCancelled implements participation.Catalog.
func (s *Store) SetEventCancelled(ctx context.Context, eventID string, cancelled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET is_cancelled = ? WHERE id = ?`, boolInt(cancelled), eventID)
	if err != nil {
		return fmt.Errorf("cancel event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrEventNotFound
	}
	return nil
}
