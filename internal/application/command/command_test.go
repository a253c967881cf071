package command_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/participation/internal/application/command"
	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/sqlite"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/sqlite/sqlitetest"
	"github.com/campus-hub/participation/pkg/timeutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	store *sqlite.Store
	seed  *sqlitetest.Seeder
	clock *timeutil.ManualClock
	pub   *recordingPublisher
	inst  *participation.Institution

	register *command.RegisterHandler
	cancel   *command.CancelRegistrationHandler
	attend   *command.MarkAttendanceHandler
	checkOut *command.CheckOutHandler
	feedback *command.SubmitFeedbackHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := sqlitetest.Open(t)
	f := &fixture{
		store: store,
		seed:  sqlitetest.NewSeeder(t, store),
		clock: timeutil.NewManualClock(time.Now().UTC().Truncate(time.Millisecond)),
		pub:   &recordingPublisher{},
	}
	deps := command.Deps{Store: store, Publisher: f.pub, Clock: f.clock}
	f.register = command.NewRegisterHandler(deps)
	f.cancel = command.NewCancelRegistrationHandler(deps)
	f.attend = command.NewMarkAttendanceHandler(deps)
	f.checkOut = command.NewCheckOutHandler(deps)
	f.feedback = command.NewSubmitFeedbackHandler(deps)
	f.inst = f.seed.Institution("Main Campus")
	return f
}

func (f *fixture) student(t *testing.T, name string) *participation.Student {
	t.Helper()
	return f.seed.Student(f.inst, name, "Test")
}

func (f *fixture) mustRegister(t *testing.T, st *participation.Student, ev *participation.Event) *participation.Registration {
	t.Helper()
	res, err := f.register.Handle(context.Background(), command.RegisterCommand{StudentID: st.ID, EventID: ev.ID})
	require.NoError(t, err)
	return res.Registration
}

func statuses(t *testing.T, store participation.Store, eventID string, status participation.RegistrationStatus) []string {
	t.Helper()
	regs, err := store.ListEventRegistrations(context.Background(), eventID, status)
	require.NoError(t, err)
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.StudentID)
	}
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER / CANCEL
// ══════════════════════════════════════════════════════════════════════════════

func TestRegister_WaitlistAndPromotion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Hackathon", sqlitetest.WithCapacity(2))
	a, b, c := f.student(t, "A"), f.student(t, "B"), f.student(t, "C")

	regA := f.mustRegister(t, a, ev)
	f.clock.Advance(time.Second)
	regB := f.mustRegister(t, b, ev)
	f.clock.Advance(time.Second)
	regC := f.mustRegister(t, c, ev)

	assert.Equal(t, participation.StatusRegistered, regA.Status)
	assert.Equal(t, participation.StatusRegistered, regB.Status)
	assert.Equal(t, participation.StatusWaitlisted, regC.Status)

	res, err := f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: regA.ID})
	require.NoError(t, err)
	assert.Equal(t, participation.StatusCancelled, res.Registration.Status)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, regC.ID, res.Promoted.ID)
	assert.Equal(t, participation.StatusRegistered, res.Promoted.Status)

	assert.ElementsMatch(t, []string{b.ID, c.ID}, statuses(t, f.store, ev.ID, participation.StatusRegistered))
	assert.Empty(t, statuses(t, f.store, ev.ID, participation.StatusWaitlisted))

	assert.Equal(t, []shared.EventType{
		shared.EventRegistrationCreated,
		shared.EventRegistrationCreated,
		shared.EventRegistrationWaitlisted,
		shared.EventRegistrationCancelled,
		shared.EventRegistrationPromoted,
	}, f.pub.types())
}

func TestCancel_WaitlistedDoesNotPromote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Seminar", sqlitetest.WithCapacity(1))
	a, b, c := f.student(t, "A"), f.student(t, "B"), f.student(t, "C")

	f.mustRegister(t, a, ev)
	regB := f.mustRegister(t, b, ev)
	f.mustRegister(t, c, ev)

	res, err := f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: regB.ID})
	require.NoError(t, err)
	assert.Nil(t, res.Promoted)
	assert.Equal(t, []string{c.ID}, statuses(t, f.store, ev.ID, participation.StatusWaitlisted))

	_, err = f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: regB.ID})
	assert.ErrorIs(t, err, shared.ErrRegistrationCancelled)
	assert.True(t, shared.IsInvalidState(err))
}

func TestCancel_PromotesInInsertionOrderOnEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Keynote", sqlitetest.WithCapacity(1))

	holder := f.mustRegister(t, f.student(t, "Holder"), ev)
	f.clock.Advance(time.Second)

	waiting := make([]*participation.Registration, 5)
	for i := range waiting {
		waiting[i] = f.mustRegister(t, f.student(t, string(rune('A'+i))), ev)
		require.Equal(t, participation.StatusWaitlisted, waiting[i].Status)
		require.True(t, waiting[i].RegisteredAt.Equal(waiting[0].RegisteredAt))
	}

	res, err := f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: holder.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, waiting[0].ID, res.Promoted.ID)

	res, err = f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: waiting[0].ID})
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, waiting[1].ID, res.Promoted.ID)

	assert.Equal(t, []string{waiting[2].StudentID, waiting[3].StudentID, waiting[4].StudentID},
		statuses(t, f.store, ev.ID, participation.StatusWaitlisted))
}

func TestCancel_NotFoundAndInvalidID(t *testing.T) {
	f := newFixture(t)

	_, err := f.cancel.Handle(context.Background(), command.CancelRegistrationCommand{RegistrationID: shared.NewID()})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.cancel.Handle(context.Background(), command.CancelRegistrationCommand{RegistrationID: "not-a-uuid"})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestRegister_ConcurrentNeverOverbooks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Popular Talk", sqlitetest.WithCapacity(5))

	const n = 100
	students := make([]*participation.Student, n)
	for i := range students {
		students[i] = f.student(t, "S")
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, st := range students {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.register.Handle(ctx, command.RegisterCommand{StudentID: id, EventID: ev.ID})
			errs <- err
		}(st.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, statuses(t, f.store, ev.ID, participation.StatusRegistered), 5)
	assert.Len(t, statuses(t, f.store, ev.ID, participation.StatusWaitlisted), n-5)
}

func TestRegister_ReactivationKeepsID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Open Lab")
	st := f.student(t, "A")

	first := f.mustRegister(t, st, ev)
	_, err := f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: first.ID})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	res, err := f.register.Handle(ctx, command.RegisterCommand{StudentID: st.ID, EventID: ev.ID})
	require.NoError(t, err)
	assert.True(t, res.Reactivated)
	assert.Equal(t, first.ID, res.Registration.ID)
	assert.Equal(t, participation.StatusRegistered, res.Registration.Status)
	assert.True(t, res.Registration.RegisteredAt.Equal(f.clock.Now()))
}

func TestRegister_ReactivationWaitlistsWhenFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Tiny Room", sqlitetest.WithCapacity(1))
	a, b := f.student(t, "A"), f.student(t, "B")

	regA := f.mustRegister(t, a, ev)
	_, err := f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: regA.ID})
	require.NoError(t, err)
	f.mustRegister(t, b, ev)

	res, err := f.register.Handle(ctx, command.RegisterCommand{StudentID: a.ID, EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, regA.ID, res.Registration.ID)
	assert.True(t, res.Waitlisted())
}

func TestRegister_Gates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.student(t, "A")
	open := f.seed.Event(f.inst, "Open", sqlitetest.WithCapacity(1))
	started := f.seed.Event(f.inst, "Started", sqlitetest.StartingAt(f.clock.Now().Add(-time.Hour)))
	cancelled := f.seed.Event(f.inst, "Called Off", sqlitetest.Cancelled())

	tests := []struct {
		name  string
		cmd   command.RegisterCommand
		check func(error) bool
	}{
		{"unknown student", command.RegisterCommand{StudentID: shared.NewID(), EventID: open.ID}, shared.IsNotFound},
		{"unknown event", command.RegisterCommand{StudentID: st.ID, EventID: shared.NewID()}, shared.IsNotFound},
		{"malformed id", command.RegisterCommand{StudentID: "x", EventID: open.ID}, shared.IsValidation},
		{"event started", command.RegisterCommand{StudentID: st.ID, EventID: started.ID}, shared.IsInvalidState},
		{"event cancelled", command.RegisterCommand{StudentID: st.ID, EventID: cancelled.ID}, shared.IsInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.register.Handle(ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	f.mustRegister(t, st, open)
	_, err := f.register.Handle(ctx, command.RegisterCommand{StudentID: st.ID, EventID: open.ID})
	assert.ErrorIs(t, err, shared.ErrAlreadyRegistered)

	other := f.student(t, "B")
	f.mustRegister(t, other, open)
	_, err = f.register.Handle(ctx, command.RegisterCommand{StudentID: other.ID, EventID: open.ID})
	assert.ErrorIs(t, err, shared.ErrAlreadyWaitlisted)
	assert.True(t, shared.IsConflict(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE / FEEDBACK
// ══════════════════════════════════════════════════════════════════════════════

func TestMarkAttendance_RequiresActiveRegistration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Workshop", sqlitetest.WithCapacity(1))
	a, b, c := f.student(t, "A"), f.student(t, "B"), f.student(t, "C")

	f.mustRegister(t, a, ev)
	f.mustRegister(t, b, ev) // waitlisted

	_, err := f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: b.ID, EventID: ev.ID})
	assert.ErrorIs(t, err, shared.ErrNotRegistered)

	_, err = f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: c.ID, EventID: ev.ID})
	assert.ErrorIs(t, err, shared.ErrNotRegistered)

	att, err := f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: a.ID, EventID: ev.ID, Status: "LATE"})
	require.NoError(t, err)
	assert.Equal(t, participation.AttendanceLate, att.Status)
	assert.True(t, att.CheckInTime.Equal(f.clock.Now()))

	_, err = f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: a.ID, EventID: ev.ID})
	assert.ErrorIs(t, err, shared.ErrAttendanceExists)

	_, err = f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: a.ID, EventID: ev.ID, Status: "sleeping"})
	assert.ErrorIs(t, err, shared.ErrInvalidAttendance)
}

func TestMarkAttendance_CancelledRegistration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Workshop")
	a := f.student(t, "A")

	reg := f.mustRegister(t, a, ev)
	_, err := f.cancel.Handle(ctx, command.CancelRegistrationCommand{RegistrationID: reg.ID})
	require.NoError(t, err)

	_, err = f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: a.ID, EventID: ev.ID})
	assert.True(t, shared.IsInvalidState(err))
}

// lockTrackingStore records the order of the reads each transaction makes.
type lockTrackingStore struct {
	participation.Store
	mu    sync.Mutex
	calls []string
}

func (s *lockTrackingStore) WithinTx(ctx context.Context, fn func(participation.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx participation.Tx) error {
		return fn(&lockTrackingTx{Tx: tx, store: s})
	})
}

func (s *lockTrackingStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *lockTrackingStore) take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.calls
	s.calls = nil
	return out
}

type lockTrackingTx struct {
	participation.Tx
	store *lockTrackingStore
}

func (t *lockTrackingTx) LockEvent(ctx context.Context, id string) (*participation.Event, error) {
	t.store.record("LockEvent")
	return t.Tx.LockEvent(ctx, id)
}

func (t *lockTrackingTx) FindEvent(ctx context.Context, id string) (*participation.Event, error) {
	t.store.record("FindEvent")
	return t.Tx.FindEvent(ctx, id)
}

func (t *lockTrackingTx) FindRegistration(ctx context.Context, studentID, eventID string) (*participation.Registration, error) {
	t.store.record("FindRegistration")
	return t.Tx.FindRegistration(ctx, studentID, eventID)
}

func (t *lockTrackingTx) FindAttendance(ctx context.Context, studentID, eventID string) (*participation.Attendance, error) {
	t.store.record("FindAttendance")
	return t.Tx.FindAttendance(ctx, studentID, eventID)
}

func TestActivityCommands_LockEventBeforeReadingParticipation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Workshop")
	a := f.student(t, "A")
	f.mustRegister(t, a, ev)

	store := &lockTrackingStore{Store: f.store}
	deps := command.Deps{Store: store, Publisher: f.pub, Clock: f.clock}

	_, err := command.NewMarkAttendanceHandler(deps).Handle(ctx, command.MarkAttendanceCommand{StudentID: a.ID, EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"LockEvent", "FindRegistration", "FindAttendance"}, store.take())

	_, err = command.NewSubmitFeedbackHandler(deps).Handle(ctx, command.SubmitFeedbackCommand{StudentID: a.ID, EventID: ev.ID, Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"LockEvent", "FindAttendance"}, store.take())

	_, err = command.NewCheckOutHandler(deps).Handle(ctx, command.CheckOutCommand{StudentID: a.ID, EventID: ev.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"LockEvent", "FindAttendance"}, store.take())
}

func TestCheckOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Lecture")
	a := f.student(t, "A")

	_, err := f.checkOut.Handle(ctx, command.CheckOutCommand{StudentID: a.ID, EventID: ev.ID})
	assert.ErrorIs(t, err, shared.ErrAttendanceNotFound)

	f.mustRegister(t, a, ev)
	_, err = f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: a.ID, EventID: ev.ID})
	require.NoError(t, err)

	f.clock.Advance(90 * time.Minute)
	att, err := f.checkOut.Handle(ctx, command.CheckOutCommand{StudentID: a.ID, EventID: ev.ID})
	require.NoError(t, err)
	require.NotNil(t, att.CheckOutTime)
	assert.True(t, att.CheckOutTime.Equal(f.clock.Now()))

	_, err = f.checkOut.Handle(ctx, command.CheckOutCommand{StudentID: a.ID, EventID: ev.ID})
	assert.ErrorIs(t, err, shared.ErrAlreadyCheckedOut)
}

func TestSubmitFeedback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Career Fair")
	a, b := f.student(t, "A"), f.student(t, "B")

	f.mustRegister(t, a, ev)
	f.mustRegister(t, b, ev)
	_, err := f.attend.Handle(ctx, command.MarkAttendanceCommand{StudentID: a.ID, EventID: ev.ID, Status: "absent"})
	require.NoError(t, err)

	// any attendance record opens the gate
	_, err = f.feedback.Handle(ctx, command.SubmitFeedbackCommand{StudentID: b.ID, EventID: ev.ID, Rating: 4})
	assert.ErrorIs(t, err, shared.ErrNotAttended)

	for _, rating := range []int{0, 6} {
		_, err = f.feedback.Handle(ctx, command.SubmitFeedbackCommand{StudentID: a.ID, EventID: ev.ID, Rating: rating})
		assert.True(t, shared.IsValidation(err), "rating %d: %v", rating, err)
	}

	fb, err := f.feedback.Handle(ctx, command.SubmitFeedbackCommand{StudentID: a.ID, EventID: ev.ID, Rating: 5, Text: "  great  "})
	require.NoError(t, err)
	assert.Equal(t, 5, fb.Rating.Int())
	assert.Equal(t, "great", fb.Text)

	_, err = f.feedback.Handle(ctx, command.SubmitFeedbackCommand{StudentID: a.ID, EventID: ev.ID, Rating: 1})
	assert.ErrorIs(t, err, shared.ErrFeedbackExists)

	stored, err := f.store.ListEventFeedback(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, fb.ID, stored[0].ID)
}

func TestPublish_CarriesCorrelationID(t *testing.T) {
	f := newFixture(t)
	ev := f.seed.Event(f.inst, "Meetup")
	st := f.student(t, "A")

	_, err := f.register.Handle(context.Background(), command.RegisterCommand{
		StudentID: st.ID, EventID: ev.ID, CorrelationID: "req-42",
	})
	require.NoError(t, err)

	require.Len(t, f.pub.events, 1)
	ae, ok := f.pub.events[0].(shared.ActivityEvent)
	require.True(t, ok)
	assert.Equal(t, "req-42", ae.CorrelationID)
	assert.Equal(t, st.ID, ae.StudentID)
}
