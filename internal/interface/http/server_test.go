package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/participation/internal/application/command"
	"github.com/campus-hub/participation/internal/application/query"
	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/sqlite/sqlitetest"
	httpapi "github.com/campus-hub/participation/internal/interface/http"
	"github.com/campus-hub/participation/internal/interface/http/handlers"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
	RequestID string `json:"request_id"`
}

type apiFixture struct {
	handler http.Handler
	seed    *sqlitetest.Seeder
	inst    *participation.Institution
}

func newAPI(t *testing.T, health handlers.HealthChecker) *apiFixture {
	t.Helper()
	store := sqlitetest.Open(t)

	cmd := command.Deps{Store: store}
	qry := query.Deps{Directory: store, Reader: store}

	srv := httpapi.NewServer(httpapi.DefaultConfig(), httpapi.Dependencies{
		Register:            command.NewRegisterHandler(cmd),
		CancelRegistration:  command.NewCancelRegistrationHandler(cmd),
		MarkAttendance:      command.NewMarkAttendanceHandler(cmd),
		CheckOut:            command.NewCheckOutHandler(cmd),
		SubmitFeedback:      command.NewSubmitFeedbackHandler(cmd),
		EventStats:          query.NewGetEventStatsHandler(qry),
		StudentStats:        query.NewGetStudentStatsHandler(qry),
		InstitutionStats:    query.NewGetInstitutionStatsHandler(qry),
		ParticipationReport: query.NewGetParticipationReportHandler(qry),
		TopStudents:         query.NewGetTopStudentsHandler(qry),
		EventPopularity:     query.NewGetEventPopularityHandler(qry),
		Activity:            query.NewListEventActivityHandler(store, qry),
		Metrics:             func() any { return map[string]int{"published": 0} },
		HealthChecker:       health,
	})

	seed := sqlitetest.NewSeeder(t, store)
	return &apiFixture{handler: srv.Handler(), seed: seed, inst: seed.Institution("Main Campus")}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type registrationBody struct {
	Registration struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"registration"`
	Waitlisted bool `json:"waitlisted"`
	Promoted   *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"promoted"`
}

func pair(st *participation.Student, ev *participation.Event) map[string]string {
	return map[string]string{"student_id": st.ID, "event_id": ev.ID}
}

func TestRegister_CreatesRegistration(t *testing.T) {
	f := newAPI(t, nil)
	st := f.seed.Student(f.inst, "Ada", "Lovelace")
	ev := f.seed.Event(f.inst, "Workshop")

	code, env := f.do(t, http.MethodPost, "/api/v1/registrations", pair(st, ev))
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)

	body := decodeData[registrationBody](t, env)
	assert.NotEmpty(t, body.Registration.ID)
	assert.Equal(t, "registered", body.Registration.Status)
	assert.False(t, body.Waitlisted)

	code, env = f.do(t, http.MethodPost, "/api/v1/registrations", pair(st, ev))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", env.Error.Code)
}

func TestRegister_ErrorMapping(t *testing.T) {
	f := newAPI(t, nil)
	st := f.seed.Student(f.inst, "Ada", "Lovelace")
	cancelled := f.seed.Event(f.inst, "Called off", sqlitetest.Cancelled())

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{"student_id":`, http.StatusBadRequest, "invalid_request"},
		{"empty body", nil, http.StatusBadRequest, "invalid_request"},
		{"unknown field", `{"student":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"invalid id", map[string]string{"student_id": "abc", "event_id": "1"}, http.StatusBadRequest, "validation_error"},
		{"unknown event", map[string]string{"student_id": st.ID, "event_id": uuid.NewString()}, http.StatusNotFound, "not_found"},
		{"cancelled event", pair(st, cancelled), http.StatusUnprocessableEntity, "invalid_state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.do(t, http.MethodPost, "/api/v1/registrations", tt.body)
			assert.Equal(t, tt.wantCode, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestCancel_PromotesWaitlisted(t *testing.T) {
	f := newAPI(t, nil)
	ev := f.seed.Event(f.inst, "Small room", sqlitetest.WithCapacity(1))
	a := f.seed.Student(f.inst, "A", "One")
	b := f.seed.Student(f.inst, "B", "Two")

	_, env := f.do(t, http.MethodPost, "/api/v1/registrations", pair(a, ev))
	first := decodeData[registrationBody](t, env)

	_, env = f.do(t, http.MethodPost, "/api/v1/registrations", pair(b, ev))
	second := decodeData[registrationBody](t, env)
	require.True(t, second.Waitlisted)

	code, env := f.do(t, http.MethodDelete, "/api/v1/registrations/"+first.Registration.ID, nil)
	require.Equal(t, http.StatusOK, code)

	cancelled := decodeData[registrationBody](t, env)
	assert.Equal(t, "cancelled", cancelled.Registration.Status)
	require.NotNil(t, cancelled.Promoted)
	assert.Equal(t, second.Registration.ID, cancelled.Promoted.ID)
	assert.Equal(t, "registered", cancelled.Promoted.Status)

	code, env = f.do(t, http.MethodDelete, "/api/v1/registrations/"+first.Registration.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_state", env.Error.Code)

	code, env = f.do(t, http.MethodGet, "/api/v1/events/"+ev.ID+"/registrations?status=registered", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Meta.TotalCount)
}

func TestAttendanceAndFeedback_FeedIntoEventStats(t *testing.T) {
	f := newAPI(t, nil)
	ev := f.seed.Event(f.inst, "Lecture")
	a := f.seed.Student(f.inst, "A", "One")
	b := f.seed.Student(f.inst, "B", "Two")

	for _, st := range []*participation.Student{a, b} {
		code, _ := f.do(t, http.MethodPost, "/api/v1/registrations", pair(st, ev))
		require.Equal(t, http.StatusCreated, code)
	}

	code, _ := f.do(t, http.MethodPost, "/api/v1/attendance", pair(a, ev))
	require.Equal(t, http.StatusCreated, code)

	code, env := f.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
		"student_id": b.ID, "event_id": ev.ID, "rating": 3,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code, "feedback requires attendance")
	assert.Equal(t, "invalid_state", env.Error.Code)

	code, env = f.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
		"student_id": a.ID, "event_id": ev.ID, "rating": 6,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Code)

	code, _ = f.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
		"student_id": a.ID, "event_id": ev.ID, "rating": 4, "feedback_text": "  good  ",
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = f.do(t, http.MethodPost, "/api/v1/attendance/checkout", pair(a, ev))
	require.Equal(t, http.StatusOK, code)

	code, env = f.do(t, http.MethodGet, "/api/v1/reports/events/"+ev.ID, nil)
	require.Equal(t, http.StatusOK, code)

	var stats struct {
		TotalRegistrations   int      `json:"total_registrations"`
		TotalAttendance      int      `json:"total_attendance"`
		AttendancePercentage float64  `json:"attendance_percentage"`
		AverageRating        *float64 `json:"average_rating"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.TotalRegistrations)
	assert.Equal(t, 1, stats.TotalAttendance)
	assert.InDelta(t, 50.0, stats.AttendancePercentage, 0.001)
	require.NotNil(t, stats.AverageRating)
	assert.InDelta(t, 4.0, *stats.AverageRating, 0.001)

	code, env = f.do(t, http.MethodGet, "/api/v1/events/"+ev.ID+"/feedback", nil)
	require.Equal(t, http.StatusOK, code)
	rows := decodeData[[]map[string]any](t, env)
	require.Len(t, rows, 1)
	assert.Equal(t, "good", rows[0]["feedback_text"])
}

func TestStudentListings(t *testing.T) {
	f := newAPI(t, nil)
	ev := f.seed.Event(f.inst, "Lecture")
	st := f.seed.Student(f.inst, "A", "One")

	code, _ := f.do(t, http.MethodPost, "/api/v1/registrations", pair(st, ev))
	require.Equal(t, http.StatusCreated, code)
	code, _ = f.do(t, http.MethodPost, "/api/v1/attendance", map[string]any{
		"student_id": st.ID, "event_id": ev.ID, "status": "late",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := f.do(t, http.MethodGet, "/api/v1/students/"+st.ID+"/feedback", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[[]map[string]any](t, env))

	code, _ = f.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
		"student_id": st.ID, "event_id": ev.ID, "rating": 5,
	})
	require.Equal(t, http.StatusCreated, code)

	code, env = f.do(t, http.MethodGet, "/api/v1/students/"+st.ID+"/attendance", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Meta.TotalCount)
	att := decodeData[[]map[string]any](t, env)
	require.Len(t, att, 1)
	assert.Equal(t, ev.ID, att[0]["event_id"])
	assert.Equal(t, "late", att[0]["status"])

	code, env = f.do(t, http.MethodGet, "/api/v1/students/"+st.ID+"/feedback", nil)
	require.Equal(t, http.StatusOK, code)
	fb := decodeData[[]map[string]any](t, env)
	require.Len(t, fb, 1)
	assert.EqualValues(t, 5, fb[0]["rating"])

	code, env = f.do(t, http.MethodGet, "/api/v1/students/"+uuid.NewString()+"/attendance", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error.Code)

	code, env = f.do(t, http.MethodGet, "/api/v1/students/nope/feedback", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestReports_QueryParameters(t *testing.T) {
	f := newAPI(t, nil)
	f.seed.Event(f.inst, "Lecture", sqlitetest.WithType("Workshop"))

	code, env := f.do(t, http.MethodGet, "/api/v1/reports/participation?institution_id="+f.inst.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Meta.TotalCount)

	code, env = f.do(t, http.MethodGet, "/api/v1/reports/participation?from=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", env.Error.Code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/reports/participation?from=2026-05-01&to=2026-04-01", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/reports/top-students?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/reports/event-popularity?limit=3", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/reports/top-students?institution_id="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/reports/institutions/"+f.inst.ID, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealth_ReflectsCriticalChecks(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	var dbErr error
	checker.AddCheck("database", func(context.Context) error { return dbErr })
	checker.AddOptionalCheck("cache", func(context.Context) error { return errors.New("down") })

	f := newAPI(t, checker)

	code, env := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	status := decodeData[handlers.HealthStatus](t, env)
	assert.True(t, status.Ready)
	assert.False(t, status.Healthy)

	dbErr = errors.New("connection refused")
	code, _ = f.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = f.do(t, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestMetrics_ServedWhenEnabled(t *testing.T) {
	f := newAPI(t, nil)
	code, env := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	body := decodeData[map[string]any](t, env)
	assert.Contains(t, body, "events")
}
