package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/report"
)

// GetTopStudentsQuery ranks students by participation score.
type GetTopStudentsQuery struct {
	InstitutionID string

	// Limit defaults to DefaultLimit and is capped at MaxLimit.
	Limit int
}

// Validate normalizes the filters in place.
func (q *GetTopStudentsQuery) Validate() error {
	id, err := normalizeOptionalID("top_students", "institution_id", q.InstitutionID)
	if err != nil {
		return err
	}
	q.InstitutionID = id
	q.Limit = NormalizeLimit(q.Limit)
	return nil
}

// GetTopStudentsHandler handles GetTopStudentsQuery.
type GetTopStudentsHandler struct {
	deps Deps
}

// NewGetTopStudentsHandler creates a new GetTopStudentsHandler.
func NewGetTopStudentsHandler(deps Deps) *GetTopStudentsHandler {
	return &GetTopStudentsHandler{deps: deps.withDefaults("top_students")}
}

// Handle executes the query.
func (h *GetTopStudentsHandler) Handle(ctx context.Context, q GetTopStudentsQuery) ([]report.StudentRanking, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := requireInstitution(ctx, h.deps.Directory, q.InstitutionID); err != nil {
		return nil, err
	}

	students, err := h.deps.Reader.ListStudents(ctx, report.StudentFilter{InstitutionID: q.InstitutionID})
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}

	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.InstitutionID
	}
	names, err := h.deps.institutionNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}

	rows, err := collect(ctx, h.deps.Workers, students, func(ctx context.Context, st *participation.Student) (report.StudentRanking, error) {
		stats, err := h.deps.studentStats(ctx, st, names[st.InstitutionID])
		if err != nil {
			return report.StudentRanking{}, err
		}
		return report.StudentRanking{
			StudentStats:       stats,
			ParticipationScore: report.ParticipationScore(stats.TotalAttendance, stats.AverageRatingGiven),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}

	report.SortRankings(rows)
	return report.Truncate(rows, q.Limit), nil
}
