package status

import (
	"context"
	"sync"
	"testing"

	"appdeck/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	apps map[string]*model.App
}

func newMemoryStore(apps ...*model.App) *memoryStore {
	s := &memoryStore{apps: make(map[string]*model.App)}
	for _, a := range apps {
		s.apps[a.ID] = a.Clone()
	}
	return s
}

func (s *memoryStore) Create(_ context.Context, app *model.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*model.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *memoryStore) List(context.Context) ([]*model.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.App
	for _, a := range s.apps {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, id string, fn func(*model.App) error) (*model.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := a.Clone()
	if err := fn(c); err != nil {
		return nil, err
	}
	s.apps[id] = c
	return c.Clone(), nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, id)
	return nil
}

type recordingSink struct {
	events []model.Event
}

func (r *recordingSink) Emit(e model.Event) { r.events = append(r.events, e) }

func TestTransitionAppliesMutationAndEmits(t *testing.T) {
	store := newMemoryStore(&model.App{ID: "a1", Status: model.StatusInstalling})
	sink := &recordingSink{}
	m := NewMachine(store, sink)

	app, err := m.Transition(context.Background(), "a1", model.StatusSuccess, "", func(a *model.App) {
		a.Installed = true
		a.Running = true
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, app.Status)
	assert.True(t, app.Installed)

	require.Len(t, sink.events, 1)
	assert.Equal(t, model.StatusSuccess, sink.events[0].Status)
	assert.Equal(t, model.EventInfo, sink.events[0].Level)
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	store := newMemoryStore(&model.App{ID: "a1", Status: model.StatusImported})
	sink := &recordingSink{}
	m := NewMachine(store, sink)

	_, err := m.Transition(context.Background(), "a1", model.StatusStarting, "", func(a *model.App) {
		a.Running = true
	})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	stored, _ := store.Get(context.Background(), "a1")
	assert.Equal(t, model.StatusImported, stored.Status)
	assert.False(t, stored.Running)
	assert.Empty(t, sink.events)
}

func TestTransitionMissingRecord(t *testing.T) {
	m := NewMachine(newMemoryStore(), nil)
	_, err := m.Transition(context.Background(), "missing", model.StatusImporting, "", nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSettle(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(
		&model.App{ID: "building", Status: model.StatusBuilding},
		&model.App{ID: "done", Status: model.StatusSuccess},
	)
	sink := &recordingSink{}
	m := NewMachine(store, sink)

	app, err := m.Settle(ctx, "building", "interrupted")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, app.Status)
	assert.Equal(t, "interrupted", app.StatusMessage)
	require.Len(t, sink.events, 1)
	assert.Equal(t, model.EventError, sink.events[0].Level)

	app, err = m.Settle(ctx, "done", "interrupted")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, app.Status)
	assert.Len(t, sink.events, 1)
}
