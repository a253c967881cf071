package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
)

// GetStudentStatsQuery asks for the figures of one student.
type GetStudentStatsQuery struct {
	StudentID string
}

// Validate normalizes the identifier in place.
func (q *GetStudentStatsQuery) Validate() error {
	id, err := normalizeID("student_stats", "student_id", q.StudentID)
	if err != nil {
		return err
	}
	q.StudentID = id
	return nil
}

// GetStudentStatsHandler handles GetStudentStatsQuery.
type GetStudentStatsHandler struct {
	deps Deps
}

// NewGetStudentStatsHandler creates a new GetStudentStatsHandler.
func NewGetStudentStatsHandler(deps Deps) *GetStudentStatsHandler {
	return &GetStudentStatsHandler{deps: deps.withDefaults("student_stats")}
}

// Handle executes the query.
func (h *GetStudentStatsHandler) Handle(ctx context.Context, q GetStudentStatsQuery) (*report.StudentStats, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	st, err := h.deps.Directory.FindStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("student stats: %w", err)
	}
	if st == nil {
		return nil, shared.ErrStudentNotFound
	}
	names, err := h.deps.institutionNames(ctx, []string{st.InstitutionID})
	if err != nil {
		return nil, fmt.Errorf("student stats: %w", err)
	}

	stats, err := h.deps.studentStats(ctx, st, names[st.InstitutionID])
	if err != nil {
		return nil, fmt.Errorf("student stats: %w", err)
	}
	return &stats, nil
}
