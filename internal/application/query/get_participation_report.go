package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPATION REPORT QUERY
// One row per matching event, busiest first.
// ══════════════════════════════════════════════════════════════════════════════

// GetParticipationReportQuery filters the events the report covers.
// Empty fields match everything. From and To bound the start date inclusively.
type GetParticipationReportQuery struct {
	InstitutionID string
	EventType     string
	From          *time.Time
	To            *time.Time
}

// Validate normalizes the filters in place.
func (q *GetParticipationReportQuery) Validate() error {
	id, err := normalizeOptionalID("participation_report", "institution_id", q.InstitutionID)
	if err != nil {
		return err
	}
	q.InstitutionID = id
	q.EventType = strings.TrimSpace(q.EventType)
	return validateRange("participation_report", q.From, q.To)
}

func (q GetParticipationReportQuery) filter() report.EventFilter {
	return report.EventFilter{
		InstitutionID: q.InstitutionID,
		EventType:     q.EventType,
		From:          q.From,
		To:            q.To,
	}
}

// GetParticipationReportHandler handles GetParticipationReportQuery.
type GetParticipationReportHandler struct {
	deps Deps
}

// NewGetParticipationReportHandler creates a new GetParticipationReportHandler.
func NewGetParticipationReportHandler(deps Deps) *GetParticipationReportHandler {
	return &GetParticipationReportHandler{deps: deps.withDefaults("participation_report")}
}

// Handle executes the query.
func (h *GetParticipationReportHandler) Handle(ctx context.Context, q GetParticipationReportQuery) ([]report.EventParticipation, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := requireInstitution(ctx, h.deps.Directory, q.InstitutionID); err != nil {
		return nil, err
	}

	events, err := h.deps.Reader.ListEvents(ctx, q.filter())
	if err != nil {
		return nil, fmt.Errorf("participation report: %w", err)
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.InstitutionID
	}
	names, err := h.deps.institutionNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("participation report: %w", err)
	}

	rows, err := collect(ctx, h.deps.Workers, events, func(ctx context.Context, ev *participation.Event) (report.EventParticipation, error) {
		stats, err := h.deps.eventStats(ctx, ev)
		if err != nil {
			return report.EventParticipation{}, err
		}
		return report.EventParticipation{
			EventStats:          stats,
			EventType:           ev.TypeLabel(),
			InstitutionName:     names[ev.InstitutionID],
			StartDate:           ev.StartDate,
			MaxCapacity:         ev.MaxCapacity,
			CapacityUtilization: report.Utilization(stats.TotalRegistrations, ev.MaxCapacity),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("participation report: %w", err)
	}

	report.SortParticipation(rows)
	return rows, nil
}

// requireInstitution checks an optional institution filter refers to a known institution.
func requireInstitution(ctx context.Context, dir participation.Directory, id string) error {
	if id == "" {
		return nil
	}
	inst, err := dir.FindInstitution(ctx, id)
	if err != nil {
		return fmt.Errorf("find institution: %w", err)
	}
	if inst == nil {
		return shared.ErrInstitutionNotFound
	}
	return nil
}
