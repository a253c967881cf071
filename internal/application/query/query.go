// Package query contains read operations (CQRS - Queries).
//
// Stats are computed from raw store counts at read time. Per-entity work in
// the multi-entity reports fans out over a bounded worker group; output order
// always follows the order in which the store listed the entities.
package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

const (
	// DefaultLimit is used when a ranking query asks for no particular size.
	DefaultLimit = 10
	// MaxLimit caps ranking sizes.
	MaxLimit = 100
	// DefaultWorkers bounds concurrent per-entity reads.
	DefaultWorkers = 8
)

// Deps are the collaborators shared by all query handlers.
type Deps struct {
	Directory participation.Directory
	Reader    report.Reader

	// Cache is optional.
	Cache report.StatsCache

	// Workers bounds parallel per-entity reads. Defaults to DefaultWorkers.
	Workers int

	Logger *logger.Logger
}

func (d Deps) withDefaults(component string) Deps {
	if d.Workers <= 0 {
		d.Workers = DefaultWorkers
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	d.Logger = d.Logger.With(logger.Component(component))
	return d
}

// NormalizeLimit applies DefaultLimit and MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// normalizeOptionalID accepts an empty filter value.
func normalizeOptionalID(op, field, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	return normalizeID(op, field, id)
}

func normalizeID(op, field, id string) (string, error) {
	out, err := shared.NormalizeID(id)
	if err != nil {
		return "", shared.WrapError(op, "Validate", shared.ErrInvalidID, "invalid "+field, err)
	}
	return out, nil
}

func validateRange(op string, from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return shared.NewDomainError(op, "Validate", shared.ErrValidation, "from must not be after to")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED READS
// ══════════════════════════════════════════════════════════════════════════════

// collect runs fn for every item on at most workers goroutines and returns the
// results in item order. The first error cancels the rest.
func collect[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// eventStats returns the stats of a known event, consulting the cache first.
// The cache version is read before the counts, so a change committed while
// they are computed keeps the result out of the cache.
func (d Deps) eventStats(ctx context.Context, ev *participation.Event) (report.EventStats, error) {
	var version report.StatsVersion
	cacheable := d.Cache != nil
	if cacheable {
		cached, v, err := d.Cache.GetEventStats(ctx, ev.ID)
		switch {
		case err != nil:
			d.Logger.Warn("stats cache read failed", logger.EventID(ev.ID), logger.Err(err))
			cacheable = false
		case cached != nil:
			return *cached, nil
		}
		version = v
	}

	counts, err := d.Reader.EventCounts(ctx, ev.ID)
	if err != nil {
		return report.EventStats{}, fmt.Errorf("event counts: %w", err)
	}
	stats := report.NewEventStats(ev.ID, ev.Title, counts)

	if cacheable {
		if err := d.Cache.SetEventStats(ctx, &stats, version); err != nil {
			d.Logger.Warn("stats cache write failed", logger.EventID(ev.ID), logger.Err(err))
		}
	}
	return stats, nil
}

// studentStats returns the stats of a known student, consulting the cache first.
func (d Deps) studentStats(ctx context.Context, st *participation.Student, institution string) (report.StudentStats, error) {
	var version report.StatsVersion
	cacheable := d.Cache != nil
	if cacheable {
		cached, v, err := d.Cache.GetStudentStats(ctx, st.ID)
		switch {
		case err != nil:
			d.Logger.Warn("stats cache read failed", logger.StudentID(st.ID), logger.Err(err))
			cacheable = false
		case cached != nil:
			return *cached, nil
		}
		version = v
	}

	counts, err := d.Reader.StudentCounts(ctx, st.ID)
	if err != nil {
		return report.StudentStats{}, fmt.Errorf("student counts: %w", err)
	}
	stats := report.NewStudentStats(st.ID, st.Name(), institution, counts)

	if cacheable {
		if err := d.Cache.SetStudentStats(ctx, &stats, version); err != nil {
			d.Logger.Warn("stats cache write failed", logger.StudentID(st.ID), logger.Err(err))
		}
	}
	return stats, nil
}

// institutionNames resolves the names of the given institutions. Unknown IDs
// map to an empty name.
func (d Deps) institutionNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, seen := names[id]; seen || id == "" {
			continue
		}
		inst, err := d.Directory.FindInstitution(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find institution: %w", err)
		}
		names[id] = ""
		if inst != nil {
			names[id] = inst.Name
		}
	}
	return names, nil
}
