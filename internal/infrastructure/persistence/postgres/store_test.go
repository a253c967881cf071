package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/participation/internal/application/command"
	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/postgres"
)

// openStore connects to PARTICIPATION_TEST_DATABASE_URL or skips.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("PARTICIPATION_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PARTICIPATION_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := postgres.Open(ctx, postgres.StoreConfig{Conn: postgres.DefaultConfig(url)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedEvent(t *testing.T, store *postgres.Store, capacity int, students int) (*participation.Event, []*participation.Student) {
	t.Helper()
	ctx := context.Background()
	inst := &participation.Institution{ID: shared.NewID(), Code: "I-" + shared.NewID()[:8], Name: "North Campus"}
	require.NoError(t, store.CreateInstitution(ctx, inst))

	ev := &participation.Event{
		ID:            shared.NewID(),
		InstitutionID: inst.ID,
		Code:          "E-" + shared.NewID()[:8],
		Title:         "Load Test",
		StartDate:     time.Now().UTC().Add(48 * time.Hour).Truncate(time.Microsecond),
		MaxCapacity:   &capacity,
	}
	require.NoError(t, store.CreateEvent(ctx, ev))

	out := make([]*participation.Student, students)
	for i := range out {
		st := &participation.Student{
			ID:            shared.NewID(),
			InstitutionID: inst.ID,
			StudentNumber: shared.NewID()[:12],
			Email:         "s@campus.test",
			FirstName:     "S",
			LastName:      "T",
			IsActive:      true,
		}
		require.NoError(t, store.CreateStudent(ctx, st))
		out[i] = st
	}
	return ev, out
}

func TestStore_LockEventSerializesCapacity(t *testing.T) {
	store := openStore(t)
	ev, students := seedEvent(t, store, 5, 40)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, st := range students {
		wg.Add(1)
		go func(st *participation.Student) {
			defer wg.Done()
			err := store.WithinTx(ctx, func(tx participation.Tx) error {
				locked, err := tx.LockEvent(ctx, ev.ID)
				if err != nil {
					return err
				}
				n, err := tx.CountRegistered(ctx, ev.ID)
				if err != nil {
					return err
				}
				r, err := participation.NewRegistration(shared.NewID(), st.ID, ev.ID, locked.AdmissionStatus(n), time.Now())
				if err != nil {
					return err
				}
				return tx.InsertRegistration(ctx, r)
			})
			assert.NoError(t, err)
		}(st)
	}
	wg.Wait()

	registered, err := store.ListEventRegistrations(ctx, ev.ID, participation.StatusRegistered)
	require.NoError(t, err)
	assert.Len(t, registered, 5)

	waitlisted, err := store.ListEventRegistrations(ctx, ev.ID, participation.StatusWaitlisted)
	require.NoError(t, err)
	assert.Len(t, waitlisted, 35)

	counts, err := store.EventCounts(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, counts.Registrations)
}

func TestMarkAttendance_WaitsForConcurrentCancel(t *testing.T) {
	store := openStore(t)
	ev, students := seedEvent(t, store, 5, 1)
	st := students[0]
	ctx := context.Background()
	deps := command.Deps{Store: store}

	res, err := command.NewRegisterHandler(deps).Handle(ctx, command.RegisterCommand{StudentID: st.ID, EventID: ev.ID})
	require.NoError(t, err)

	var once sync.Once
	cancelled := make(chan struct{})
	release := make(chan struct{})
	cancelDone := make(chan error, 1)
	go func() {
		cancelDone <- store.WithinTx(ctx, func(tx participation.Tx) error {
			if _, err := tx.LockEvent(ctx, ev.ID); err != nil {
				return err
			}
			reg, err := tx.GetRegistration(ctx, res.Registration.ID)
			if err != nil {
				return err
			}
			if err := reg.Cancel(); err != nil {
				return err
			}
			if err := tx.UpdateRegistration(ctx, reg); err != nil {
				return err
			}
			once.Do(func() { close(cancelled) })
			<-release
			return nil
		})
	}()
	<-cancelled

	attendDone := make(chan error, 1)
	go func() {
		_, err := command.NewMarkAttendanceHandler(deps).Handle(ctx, command.MarkAttendanceCommand{StudentID: st.ID, EventID: ev.ID})
		attendDone <- err
	}()

	select {
	case err := <-attendDone:
		close(release)
		t.Fatalf("attendance finished while the cancel held the event: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-cancelDone)
	err = <-attendDone
	assert.True(t, shared.IsInvalidState(err), "got %v", err)

	rows, err := store.ListEventAttendance(ctx, ev.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
