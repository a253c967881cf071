package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
)

// GetInstitutionStatsQuery asks for the figures of one institution.
type GetInstitutionStatsQuery struct {
	InstitutionID string
}

// Validate normalizes the identifier in place.
func (q *GetInstitutionStatsQuery) Validate() error {
	id, err := normalizeID("institution_stats", "institution_id", q.InstitutionID)
	if err != nil {
		return err
	}
	q.InstitutionID = id
	return nil
}

// GetInstitutionStatsHandler handles GetInstitutionStatsQuery.
// Institution figures are not cached: they span every student of the institution.
type GetInstitutionStatsHandler struct {
	deps Deps
}

// NewGetInstitutionStatsHandler creates a new GetInstitutionStatsHandler.
func NewGetInstitutionStatsHandler(deps Deps) *GetInstitutionStatsHandler {
	return &GetInstitutionStatsHandler{deps: deps.withDefaults("institution_stats")}
}

// Handle executes the query.
func (h *GetInstitutionStatsHandler) Handle(ctx context.Context, q GetInstitutionStatsQuery) (*report.InstitutionStats, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	inst, err := h.deps.Directory.FindInstitution(ctx, q.InstitutionID)
	if err != nil {
		return nil, fmt.Errorf("institution stats: %w", err)
	}
	if inst == nil {
		return nil, shared.ErrInstitutionNotFound
	}

	counts, err := h.deps.Reader.InstitutionCounts(ctx, inst.ID)
	if err != nil {
		return nil, fmt.Errorf("institution stats: %w", err)
	}
	stats := report.NewInstitutionStats(inst.ID, inst.Name, counts)
	return &stats, nil
}
