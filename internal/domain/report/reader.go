package report

import (
	"context"
	"time"

	"github.com/campus-hub/participation/internal/domain/participation"
)

// EventFilter narrows the events a report covers. Empty fields match everything.
// From and To bound the event start date inclusively.
type EventFilter struct {
	InstitutionID string
	EventType     string
	From          *time.Time
	To            *time.Time
}

// StudentFilter narrows the students a ranking covers.
type StudentFilter struct {
	InstitutionID string
}

// Reader is the read-only store view the aggregation engine needs.
// List methods return rows in insertion order.
type Reader interface {
	EventCounts(ctx context.Context, eventID string) (Counts, error)
	StudentCounts(ctx context.Context, studentID string) (Counts, error)
	InstitutionCounts(ctx context.Context, institutionID string) (InstitutionCounts, error)

	ListEvents(ctx context.Context, filter EventFilter) ([]*participation.Event, error)
	ListStudents(ctx context.Context, filter StudentFilter) ([]*participation.Student, error)
}

// StatsVersion identifies the generation of a cached entity. Every
// invalidation moves it forward.
type StatsVersion int64

// StatsCache caches per-entity stats between activity changes.
//
// Get returns the cached entry, nil on a miss, together with the current
// version. Set stores only while that version is still current, so figures
// read before an invalidation never overwrite it.
type StatsCache interface {
	GetEventStats(ctx context.Context, eventID string) (*EventStats, StatsVersion, error)
	SetEventStats(ctx context.Context, stats *EventStats, version StatsVersion) error
	GetStudentStats(ctx context.Context, studentID string) (*StudentStats, StatsVersion, error)
	SetStudentStats(ctx context.Context, stats *StudentStats, version StatsVersion) error

	InvalidateEvent(ctx context.Context, eventID string) error
	InvalidateStudent(ctx context.Context, studentID string) error
}
