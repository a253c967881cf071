package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
)

// GetEventStatsQuery asks for the figures of one event.
type GetEventStatsQuery struct {
	EventID string
}

// Validate normalizes the identifier in place.
func (q *GetEventStatsQuery) Validate() error {
	id, err := normalizeID("event_stats", "event_id", q.EventID)
	if err != nil {
		return err
	}
	q.EventID = id
	return nil
}

// GetEventStatsHandler handles GetEventStatsQuery.
type GetEventStatsHandler struct {
	deps Deps
}

// NewGetEventStatsHandler creates a new GetEventStatsHandler.
func NewGetEventStatsHandler(deps Deps) *GetEventStatsHandler {
	return &GetEventStatsHandler{deps: deps.withDefaults("event_stats")}
}

// Handle executes the query.
func (h *GetEventStatsHandler) Handle(ctx context.Context, q GetEventStatsQuery) (*report.EventStats, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ev, err := h.deps.Directory.FindEvent(ctx, q.EventID)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	if ev == nil {
		return nil, shared.ErrEventNotFound
	}

	stats, err := h.deps.eventStats(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	return &stats, nil
}
