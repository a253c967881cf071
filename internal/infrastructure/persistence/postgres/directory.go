package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
)

const (
	studentColumns = `id, institution_id, student_number, email, first_name, last_name, is_active`
	eventColumns   = `id, institution_id, code, title, description, event_type, location,
		start_date, end_date, max_capacity, is_cancelled`
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY READS
// ══════════════════════════════════════════════════════════════════════════════

// FindStudent implements participation.Directory.
func (s *Store) FindStudent(ctx context.Context, id string) (*participation.Student, error) {
	return findStudent(ctx, s.conn, id)
}

// FindEvent implements participation.Directory.
func (s *Store) FindEvent(ctx context.Context, id string) (*participation.Event, error) {
	return findEvent(ctx, s.conn, id, false)
}

// FindInstitution implements participation.Directory.
func (s *Store) FindInstitution(ctx context.Context, id string) (*participation.Institution, error) {
	return findInstitution(ctx, s.conn, id)
}

func findStudent(ctx context.Context, q Querier, id string) (*participation.Student, error) {
	st, err := scanStudent(q.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	return st, nil
}

func findEvent(ctx context.Context, q Querier, id string, forUpdate bool) (*participation.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	ev, err := scanEvent(q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return ev, nil
}

func findInstitution(ctx context.Context, q Querier, id string) (*participation.Institution, error) {
	var inst participation.Institution
	err := q.QueryRow(ctx,
		`SELECT id, code, name, location FROM institutions WHERE id = $1`, id,
	).Scan(&inst.ID, &inst.Code, &inst.Name, &inst.Location)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find institution: %w", err)
	}
	return &inst, nil
}

func scanStudent(row pgx.Row) (*participation.Student, error) {
	var st participation.Student
	if err := row.Scan(&st.ID, &st.InstitutionID, &st.StudentNumber, &st.Email,
		&st.FirstName, &st.LastName, &st.IsActive); err != nil {
		return nil, err
	}
	return &st, nil
}

func scanEvent(row pgx.Row) (*participation.Event, error) {
	var (
		ev       participation.Event
		end      *time.Time
		capacity *int32
	)
	if err := row.Scan(&ev.ID, &ev.InstitutionID, &ev.Code, &ev.Title, &ev.Description,
		&ev.EventType, &ev.Location, &ev.StartDate, &end, &capacity, &ev.IsCancelled); err != nil {
		return nil, err
	}
	ev.StartDate = ev.StartDate.UTC()
	if end != nil {
		ev.EndDate = end.UTC()
	}
	if capacity != nil {
		c := int(*capacity)
		ev.MaxCapacity = &c
	}
	return &ev, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG WRITES
// ══════════════════════════════════════════════════════════════════════════════

// CreateInstitution implements participation.Catalog.
func (s *Store) CreateInstitution(ctx context.Context, i *participation.Institution) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO institutions (id, code, name, location) VALUES ($1, $2, $3, $4)`,
		i.ID, i.Code, i.Name, i.Location)
	if IsUniqueViolation(err) {
		return conflict("institution", "Create", "institution already exists", err)
	}
	if err != nil {
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// CreateStudent implements participation.Catalog.
func (s *Store) CreateStudent(ctx context.Context, st *participation.Student) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO students (`+studentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.InstitutionID, st.StudentNumber, st.Email, st.FirstName, st.LastName, st.IsActive)
	if IsUniqueViolation(err) {
		return conflict("student", "Create", "student already exists", err)
	}
	if IsForeignKeyViolation(err) {
		return shared.ErrInstitutionNotFound
	}
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// CreateEvent implements participation.Catalog.
func (s *Store) CreateEvent(ctx context.Context, e *participation.Event) error {
	var end *time.Time
	if !e.EndDate.IsZero() {
		end = &e.EndDate
	}
	_, err := s.conn.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.InstitutionID, e.Code, e.Title, e.Description, e.EventType, e.Location,
		e.StartDate, end, e.MaxCapacity, e.IsCancelled)
	if IsUniqueViolation(err) {
		return conflict("event", "Create", "event already exists", err)
	}
	if IsForeignKeyViolation(err) {
		return shared.ErrInstitutionNotFound
	}
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// SetEventCancelled implements participation.Catalog.
func (s *Store) SetEventCancelled(ctx context.Context, eventID string, cancelled bool) error {
	tag, err := s.conn.Exec(ctx, `UPDATE events SET is_cancelled = $1 WHERE id = $2`, cancelled, eventID)
	if err != nil {
		return fmt.Errorf("cancel event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEventNotFound
	}
	return nil
}
