package repository

import "appdeck/internal/domain/model"

// EventSink receives ordered pipeline events. Emit must not block on slow consumers.
type EventSink interface {
	Emit(event model.Event)
}
