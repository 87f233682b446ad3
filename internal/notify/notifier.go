// Package notify fans out pipeline events (message ingested, sync finished,
// entity auto-created) to pluggable sinks.
package notify

import (
	"github.com/relay-crm/core/internal/database/models"
)

// Event types emitted by the ingestion pipeline.
const (
	EventMessageReceived = "message.received"
	EventSyncCompleted   = "sync.completed"
	EventEntityCreated   = "entity.created"
)

// Event is a single notification. Payload keys depend on the event type.
type Event struct {
	UserID  uint                   `json:"user_id"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Notifier delivers events. Implementations must not block the sync loop;
// delivery failures are swallowed after logging.
type Notifier interface {
	Notify(event Event)
}

// EventLogger is the slice of the log service the LogNotifier needs.
type EventLogger interface {
	LogInfo(userID uint, module models.LogModule, action, message string, details interface{}) error
}

// LogNotifier records events through the log service.
type LogNotifier struct {
	logger EventLogger
}

func NewLogNotifier(logger EventLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(event Event) {
	if n.logger == nil {
		return
	}
	n.logger.LogInfo(event.UserID, models.LogModuleNotify, event.Type, "event emitted", event.Payload)
}

// NopNotifier discards everything. Used in tests and in CLI commands that
// run without a notification sink.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}
