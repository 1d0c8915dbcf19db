package status

import (
	"context"
	"fmt"
	"time"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"
)

// Machine is the only writer of application status. Each transition is a
// single read-modify-write on the record, checked against the transition
// table, and announced on the event sink.
type Machine struct {
	store  repository.AppStore
	events repository.EventSink
	now    func() time.Time
}

// NewMachine creates a state machine over store. events may be nil.
func NewMachine(store repository.AppStore, events repository.EventSink) *Machine {
	return &Machine{store: store, events: events, now: time.Now}
}

// Transition moves the record to status to. mutate, when set, runs inside
// the same update so the status and the fields it changes land together.
func (m *Machine) Transition(ctx context.Context, id string, to model.Status, message string, mutate func(app *model.App)) (*model.App, error) {
	var from model.Status
	app, err := m.store.Update(ctx, id, func(app *model.App) error {
		from = app.Status
		if err := model.CheckTransition(app.Status, to); err != nil {
			return err
		}
		app.Status = to
		app.StatusMessage = message
		app.UpdatedAt = m.now()
		if mutate != nil {
			mutate(app)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to move %s to %s: %w", id, to, err)
	}

	log.Debug("Application status changed", "app_id", id, "from", from, "to", to)
	m.emit(id, to, message)
	return app, nil
}

// Fail moves the record to Error with message. It is legal from every state
// the pipeline and commands pass through.
func (m *Machine) Fail(ctx context.Context, id, message string) (*model.App, error) {
	return m.Transition(ctx, id, model.StatusError, message, nil)
}

// Settle leaves a transient state: it moves the record to Error unless it
// already left the transient state. It returns the record as stored.
func (m *Machine) Settle(ctx context.Context, id, message string) (*model.App, error) {
	app, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.Transient() {
		return app, nil
	}
	log.Warn("Application left in transient state, marking as failed", "app_id", id, "status", app.Status)
	return m.Fail(ctx, id, message)
}

func (m *Machine) emit(id string, to model.Status, message string) {
	if m.events == nil {
		return
	}
	level := model.EventInfo
	if to == model.StatusError {
		level = model.EventError
	}
	if message == "" {
		message = "status changed to " + string(to)
	}
	m.events.Emit(model.Event{
		AppID:   id,
		Time:    m.now(),
		Level:   level,
		Message: message,
		Status:  to,
	})
}
