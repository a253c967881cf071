package redis

import (
	"context"
	"errors"
	"time"

	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/pkg/circuitbreaker"
	"github.com/campus-hub/participation/pkg/logger"
)

// StatsCache implements report.StatsCache on Redis.
//
// Reads and writes go through a circuit breaker. While the circuit is open,
// reads report a miss and writes are dropped, so callers fall back to the
// store. Invalidations surface the rejection because a skipped delete leaves
// stale stats until the entry expires.
//
// Each entity carries a generation counter. Invalidation advances it, and a
// write carrying an older generation is discarded, so stats computed from
// counts read before a change cannot replace the invalidated entry.
type StatsCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

var _ report.StatsCache = (*StatsCache)(nil)

// NewStatsCache creates a StatsCache. A non-positive ttl uses TTLStats.
func NewStatsCache(cache *Cache, ttl time.Duration, log *logger.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = TTLStats
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("stats-cache"))

	return &StatsCache{
		cache: cache,
		ttl:   ttl,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
		log: log,
	}
}

// Breaker exposes the circuit breaker for health reporting.
func (s *StatsCache) Breaker() *circuitbreaker.CircuitBreaker {
	return s.breaker
}

// GetEventStats implements report.StatsCache.
func (s *StatsCache) GetEventStats(ctx context.Context, eventID string) (*report.EventStats, report.StatsVersion, error) {
	var stats report.EventStats
	hit, version, err := s.get(ctx, EventStatsKey(eventID), EventGenerationKey(eventID), &stats)
	if !hit || err != nil {
		return nil, version, err
	}
	return &stats, version, nil
}

// SetEventStats implements report.StatsCache.
func (s *StatsCache) SetEventStats(ctx context.Context, stats *report.EventStats, version report.StatsVersion) error {
	if stats == nil {
		return ErrCacheNilValue
	}
	return s.set(ctx, EventStatsKey(stats.EventID), EventGenerationKey(stats.EventID), version, stats)
}

// GetStudentStats implements report.StatsCache.
func (s *StatsCache) GetStudentStats(ctx context.Context, studentID string) (*report.StudentStats, report.StatsVersion, error) {
	var stats report.StudentStats
	hit, version, err := s.get(ctx, StudentStatsKey(studentID), StudentGenerationKey(studentID), &stats)
	if !hit || err != nil {
		return nil, version, err
	}
	return &stats, version, nil
}

// SetStudentStats implements report.StatsCache.
func (s *StatsCache) SetStudentStats(ctx context.Context, stats *report.StudentStats, version report.StatsVersion) error {
	if stats == nil {
		return ErrCacheNilValue
	}
	return s.set(ctx, StudentStatsKey(stats.StudentID), StudentGenerationKey(stats.StudentID), version, stats)
}

// InvalidateEvent implements report.StatsCache.
func (s *StatsCache) InvalidateEvent(ctx context.Context, eventID string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.BumpGeneration(ctx, EventStatsKey(eventID), EventGenerationKey(eventID))
	})
}

// InvalidateStudent implements report.StatsCache.
func (s *StatsCache) InvalidateStudent(ctx context.Context, studentID string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.BumpGeneration(ctx, StudentStatsKey(studentID), StudentGenerationKey(studentID))
	})
}

// Flush drops every cached stats entry.
func (s *StatsCache) Flush(ctx context.Context) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := s.cache.DeleteByPattern(ctx, PrefixEventStats+"*"); err != nil {
			return err
		}
		return s.cache.DeleteByPattern(ctx, PrefixStudentStats+"*")
	})
}

func (s *StatsCache) get(ctx context.Context, key, genKey string, dest any) (bool, report.StatsVersion, error) {
	var (
		hit bool
		gen int64
	)
	err := s.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		var err error
		gen, err = s.cache.GetWithGeneration(ctx, key, genKey, dest)
		switch {
		case errors.Is(err, ErrCacheMiss):
			return nil
		case errors.Is(err, ErrCacheSerialization):
			// corrupt entry: drop it and treat as a miss
			s.log.Warn("dropping undecodable cache entry", logger.String("key", key), logger.Err(err))
			return s.cache.Delete(ctx, key)
		case err != nil:
			return err
		}
		hit = true
		return nil
	}, skipWhenOpen)
	return hit, report.StatsVersion(gen), err
}

func (s *StatsCache) set(ctx context.Context, key, genKey string, version report.StatsVersion, value any) error {
	return s.breaker.ExecuteWithFallback(ctx, func(ctx context.Context) error {
		written, err := s.cache.SetIfGeneration(ctx, key, genKey, int64(version), value, s.ttl)
		if err == nil && !written {
			s.log.Debug("skipped stale stats write", logger.String("key", key))
		}
		return err
	}, skipWhenOpen)
}

// skipWhenOpen turns a rejected read into a miss and a rejected write into a no-op.
func skipWhenOpen(error) error { return nil }
