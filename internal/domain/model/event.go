package model

import "time"

// EventLevel is the severity of a pipeline event.
type EventLevel string

const (
	EventInfo  EventLevel = "info"
	EventWarn  EventLevel = "warn"
	EventError EventLevel = "error"
)

// Event is one ordered log entry emitted for an application.
type Event struct {
	AppID   string     `json:"app_id"`
	RunID   string     `json:"run_id,omitempty"`
	Seq     uint64     `json:"seq"`
	Time    time.Time  `json:"time"`
	Level   EventLevel `json:"level"`
	Stage   Stage      `json:"stage,omitempty"`
	Message string     `json:"message"`
	// Status is set on events that accompany a status change.
	Status Status `json:"status,omitempty"`
}
