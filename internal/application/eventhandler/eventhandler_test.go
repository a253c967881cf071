package eventhandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/participation/internal/application/command"
	"github.com/campus-hub/participation/internal/application/eventhandler"
	"github.com/campus-hub/participation/internal/application/query"
	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/internal/infrastructure/messaging"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/redis"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/sqlite/sqlitetest"
	"github.com/campus-hub/participation/pkg/logger"
)

func newStatsCache(t *testing.T) *redis.StatsCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewStatsCache(redis.NewCacheFromClient(client), time.Minute, nil)
}

func TestInvalidation_KeepsCachedStatsFresh(t *testing.T) {
	ctx := context.Background()
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)
	inst := seed.Institution("Main")
	ev := seed.Event(inst, "Meetup")
	a, b := seed.Student(inst, "A", "A"), seed.Student(inst, "B", "B")

	cache := newStatsCache(t)
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	require.NoError(t, eventhandler.Subscribe(bus, eventhandler.NewOnActivityChangedHandler(cache, nil), nil))

	register := command.NewRegisterHandler(command.Deps{Store: store, Publisher: bus})
	stats := query.NewGetEventStatsHandler(query.Deps{Directory: store, Reader: store, Cache: cache})

	_, err := register.Handle(ctx, command.RegisterCommand{StudentID: a.ID, EventID: ev.ID})
	require.NoError(t, err)

	got, err := stats.Handle(ctx, query.GetEventStatsQuery{EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalRegistrations)

	cached, _, err := cache.GetEventStats(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	_, err = register.Handle(ctx, command.RegisterCommand{StudentID: b.ID, EventID: ev.ID})
	require.NoError(t, err)

	cached, _, err = cache.GetEventStats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, cached, "registration must drop the cached event stats")

	got, err = stats.Handle(ctx, query.GetEventStatsQuery{EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalRegistrations)
}

// interleavingReader runs during once, right after the first EventCounts
// read returns and before its result reaches the cache.
type interleavingReader struct {
	report.Reader
	once   sync.Once
	during func()
}

func (r *interleavingReader) EventCounts(ctx context.Context, eventID string) (report.Counts, error) {
	counts, err := r.Reader.EventCounts(ctx, eventID)
	r.once.Do(r.during)
	return counts, err
}

func TestInvalidation_CommitDuringStatsReadIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)
	inst := seed.Institution("Main")
	ev := seed.Event(inst, "Meetup")
	a := seed.Student(inst, "A", "A")

	cache := newStatsCache(t)
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	require.NoError(t, eventhandler.Subscribe(bus, eventhandler.NewOnActivityChangedHandler(cache, nil), nil))

	register := command.NewRegisterHandler(command.Deps{Store: store, Publisher: bus})
	reader := &interleavingReader{Reader: store, during: func() {
		_, err := register.Handle(ctx, command.RegisterCommand{StudentID: a.ID, EventID: ev.ID})
		require.NoError(t, err)
	}}
	stats := query.NewGetEventStatsHandler(query.Deps{Directory: store, Reader: reader, Cache: cache})

	got, err := stats.Handle(ctx, query.GetEventStatsQuery{EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalRegistrations, "counts were read before the registration committed")

	cached, _, err := cache.GetEventStats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Nil(t, cached, "figures read before the invalidation must not be cached")

	got, err = stats.Handle(ctx, query.GetEventStatsQuery{EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalRegistrations)

	cached, _, err = cache.GetEventStats(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 1, cached.TotalRegistrations)
}

// payloadEvent is an event type other than ActivityEvent that only carries a payload.
type payloadEvent map[string]any

func (payloadEvent) EventType() shared.EventType { return shared.EventFeedbackSubmitted }
func (payloadEvent) OccurredAt() time.Time       { return time.Time{} }
func (payloadEvent) AggregateID() string         { return "" }
func (p payloadEvent) Payload() map[string]any   { return p }

var reportStudent = report.StudentStats{StudentID: "st-9", StudentName: "Nine"}

func TestOnActivityChanged_ReadsPayloadOfForeignEvents(t *testing.T) {
	ctx := context.Background()
	cache := newStatsCache(t)

	require.NoError(t, cache.SetStudentStats(ctx, &reportStudent, 0))
	h := eventhandler.NewOnActivityChangedHandler(cache, nil)

	require.NoError(t, h.Handle(payloadEvent{"student_id": reportStudent.StudentID}))

	got, _, err := cache.GetStudentStats(ctx, reportStudent.StudentID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAuditLog_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Level: logger.LevelInfo, Format: logger.FormatJSON})
	h := eventhandler.NewAuditLogHandler(log)

	ev := shared.NewActivityEvent(shared.EventRegistrationPromoted, "reg-1", "st-1", "ev-1", "registered", time.Now().UTC())
	ev.BaseEvent = ev.BaseEvent.WithCorrelationID("req-7")
	require.NoError(t, h.Handle(ev))

	line := strings.TrimSpace(buf.String())
	var entry struct {
		Message string         `json:"message"`
		Fields  map[string]any `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "participation changed", entry.Message)
	assert.Equal(t, "registration.promoted", entry.Fields["event_type"])
	assert.Equal(t, "st-1", entry.Fields["student_id"])
	assert.Equal(t, "registered", entry.Fields["status"])
	assert.Equal(t, "req-7", entry.Fields["correlation_id"])
}
