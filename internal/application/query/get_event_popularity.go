package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/report"
)

// GetEventPopularityQuery ranks events by registrations.
type GetEventPopularityQuery struct {
	InstitutionID string
	EventType     string

	// Limit defaults to DefaultLimit and is capped at MaxLimit.
	Limit int
}

// Validate normalizes the filters in place.
func (q *GetEventPopularityQuery) Validate() error {
	id, err := normalizeOptionalID("event_popularity", "institution_id", q.InstitutionID)
	if err != nil {
		return err
	}
	q.InstitutionID = id
	q.EventType = strings.TrimSpace(q.EventType)
	q.Limit = NormalizeLimit(q.Limit)
	return nil
}

// GetEventPopularityHandler handles GetEventPopularityQuery.
type GetEventPopularityHandler struct {
	deps Deps
}

// NewGetEventPopularityHandler creates a new GetEventPopularityHandler.
func NewGetEventPopularityHandler(deps Deps) *GetEventPopularityHandler {
	return &GetEventPopularityHandler{deps: deps.withDefaults("event_popularity")}
}

// Handle executes the query. Ties keep the order the store listed the events in.
func (h *GetEventPopularityHandler) Handle(ctx context.Context, q GetEventPopularityQuery) ([]report.EventStats, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := requireInstitution(ctx, h.deps.Directory, q.InstitutionID); err != nil {
		return nil, err
	}

	events, err := h.deps.Reader.ListEvents(ctx, report.EventFilter{
		InstitutionID: q.InstitutionID,
		EventType:     q.EventType,
	})
	if err != nil {
		return nil, fmt.Errorf("event popularity: %w", err)
	}

	rows, err := collect(ctx, h.deps.Workers, events, func(ctx context.Context, ev *participation.Event) (report.EventStats, error) {
		return h.deps.eventStats(ctx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("event popularity: %w", err)
	}

	report.SortPopularity(rows)
	return report.Truncate(rows, q.Limit), nil
}
