package eventhandler

import (
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
)

// AuditLogHandler writes one structured line per participation change.
type AuditLogHandler struct {
	log *logger.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler.
func NewAuditLogHandler(log *logger.Logger) *AuditLogHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditLogHandler{log: log.With(logger.Component("audit"))}
}

// Handle implements shared.EventHandler.
func (h *AuditLogHandler) Handle(event shared.Event) error {
	studentID, eventID := participants(event)
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.String("record_id", event.AggregateID()),
		logger.StudentID(studentID),
		logger.EventID(eventID),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	if status, _ := event.Payload()["status"].(string); status != "" {
		fields = append(fields, logger.Status(status))
	}
	if ae, ok := event.(shared.ActivityEvent); ok && ae.CorrelationID != "" {
		fields = append(fields, logger.String("correlation_id", ae.CorrelationID))
	}
	h.log.Info("participation changed", fields...)
	return nil
}

// Subscribe wires the audit log and, when a cache is configured, the cache
// invalidator to the bus.
func Subscribe(bus shared.EventSubscriber, invalidator *OnActivityChangedHandler, audit *AuditLogHandler) error {
	if audit != nil {
		if err := bus.SubscribeAll(audit.Handle); err != nil {
			return err
		}
	}
	if invalidator != nil {
		if err := bus.SubscribeAll(invalidator.Handle); err != nil {
			return err
		}
	}
	return nil
}
