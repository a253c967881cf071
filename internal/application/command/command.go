// Package command contains write operations (CQRS - Commands).
//
// Every handler runs its gate checks and mutations inside one store
// transaction and publishes the collected domain events after commit.
package command

import (
	"context"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
	"github.com/campus-hub/participation/pkg/timeutil"
)

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	Store     participation.Store
	Publisher shared.EventPublisher
	Clock     timeutil.Clock
	Logger    *logger.Logger
}

func (d Deps) withDefaults(component string) Deps {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	d.Logger = d.Logger.With(logger.Component(component))
	return d
}

// publish delivers events after commit. A failed publish never fails the
// command: the state change is already durable.
func (d Deps) publish(correlationID string, events []shared.Event) {
	for _, e := range events {
		if correlationID != "" {
			if ae, ok := e.(shared.ActivityEvent); ok {
				ae.BaseEvent = ae.BaseEvent.WithCorrelationID(correlationID)
				e = ae
			}
		}
		if err := d.Publisher.Publish(e); err != nil {
			d.Logger.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.Err(err),
			)
		}
	}
}

// normalizeIDs validates and normalizes a student/event pair.
func normalizeIDs(op, studentID, eventID string) (string, string, error) {
	sid, err := shared.NormalizeID(studentID)
	if err != nil {
		return "", "", shared.WrapError(op, "Validate", shared.ErrInvalidID, "invalid student_id", err)
	}
	eid, err := shared.NormalizeID(eventID)
	if err != nil {
		return "", "", shared.WrapError(op, "Validate", shared.ErrInvalidID, "invalid event_id", err)
	}
	return sid, eid, nil
}

// lockPair reads the student and locks the event a gate needs, so the
// registration it checks cannot be cancelled before the transaction commits.
// Missing rows come back nil.
func lockPair(ctx context.Context, tx participation.Tx, studentID, eventID string) (*participation.Student, *participation.Event, error) {
	st, err := tx.FindStudent(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	ev, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	return st, ev, nil
}
