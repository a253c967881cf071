// Package sqlitetest opens throwaway SQLite stores and seeds catalog fixtures for tests.
package sqlitetest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/sqlite"
)

// Open opens a store in a temp directory that is closed when the test ends.
func Open(t testing.TB) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), sqlite.Config{
		Path: filepath.Join(t.TempDir(), "participation.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Seeder creates catalog rows with generated IDs.
type Seeder struct {
	t     testing.TB
	store participation.Catalog
	n     atomic.Int64
}

// NewSeeder returns a seeder writing to store.
func NewSeeder(t testing.TB, store participation.Catalog) *Seeder {
	return &Seeder{t: t, store: store}
}

func (s *Seeder) next() int64 { return s.n.Add(1) }

// Institution creates an institution.
func (s *Seeder) Institution(name string) *participation.Institution {
	s.t.Helper()
	i := &participation.Institution{
		ID:   shared.NewID(),
		Code: fmt.Sprintf("INST-%d", s.next()),
		Name: name,
	}
	require.NoError(s.t, s.store.CreateInstitution(context.Background(), i))
	return i
}

// Student creates a student enrolled at inst.
func (s *Seeder) Student(inst *participation.Institution, first, last string) *participation.Student {
	s.t.Helper()
	n := s.next()
	st := &participation.Student{
		ID:            shared.NewID(),
		InstitutionID: inst.ID,
		StudentNumber: fmt.Sprintf("S%05d", n),
		Email:         fmt.Sprintf("student%d@campus.test", n),
		FirstName:     first,
		LastName:      last,
		IsActive:      true,
	}
	require.NoError(s.t, s.store.CreateStudent(context.Background(), st))
	return st
}

// EventOption customises a seeded event.
type EventOption func(*participation.Event)

// WithCapacity sets the seat limit.
func WithCapacity(n int) EventOption {
	return func(e *participation.Event) { e.MaxCapacity = &n }
}

// WithType sets the event type.
func WithType(t string) EventOption {
	return func(e *participation.Event) { e.EventType = t }
}

// StartingAt sets the start date.
func StartingAt(t time.Time) EventOption {
	return func(e *participation.Event) {
		e.StartDate = t
		e.EndDate = t.Add(2 * time.Hour)
	}
}

// Cancelled marks the event cancelled.
func Cancelled() EventOption {
	return func(e *participation.Event) { e.IsCancelled = true }
}

// Event creates an event hosted by inst, starting a week from now unless overridden.
func (s *Seeder) Event(inst *participation.Institution, title string, opts ...EventOption) *participation.Event {
	s.t.Helper()
	start := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Millisecond)
	e := &participation.Event{
		ID:            shared.NewID(),
		InstitutionID: inst.ID,
		Code:          fmt.Sprintf("EV-%d", s.next()),
		Title:         title,
		StartDate:     start,
		EndDate:       start.Add(2 * time.Hour),
	}
	for _, opt := range opts {
		opt(e)
	}
	require.NoError(s.t, s.store.CreateEvent(context.Background(), e))
	return e
}
