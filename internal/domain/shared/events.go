// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types emitted by the participation lifecycle.
const (
	// Registration events
	EventRegistrationCreated     EventType = "registration.created"
	EventRegistrationWaitlisted  EventType = "registration.waitlisted"
	EventRegistrationReactivated EventType = "registration.reactivated"
	EventRegistrationCancelled   EventType = "registration.cancelled"
	EventRegistrationPromoted    EventType = "registration.promoted"

	// Activity events
	EventAttendanceMarked  EventType = "attendance.marked"
	EventAttendanceChecked EventType = "attendance.checked_out"
	EventFeedbackSubmitted EventType = "feedback.submitted"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ActivityEvent is emitted for every participation change. The aggregate is the
// activity record (registration, attendance or feedback) that changed.
type ActivityEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	EventID   string `json:"event_id"`
	Status    string `json:"status,omitempty"`
}

// Payload implements Event interface.
func (e ActivityEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"student_id": e.StudentID,
		"event_id":   e.EventID,
	}
	if e.Status != "" {
		p["status"] = e.Status
	}
	return p
}

// NewActivityEvent creates an activity event for the given record.
func NewActivityEvent(eventType EventType, recordID, studentID, eventID, status string, at time.Time) ActivityEvent {
	return ActivityEvent{
		BaseEvent: NewBaseEvent(eventType, recordID, at),
		StudentID: studentID,
		EventID:   eventID,
		Status:    status,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
