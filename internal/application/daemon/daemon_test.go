package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/application/query/get_apps"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/cqrs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	inventory []model.ContainerApp
}

func (b *stubBackend) Apply(context.Context, repository.Project, time.Duration) error { return nil }
func (b *stubBackend) Start(context.Context, repository.Project) error                { return nil }
func (b *stubBackend) Stop(context.Context, repository.Project) error                 { return nil }
func (b *stubBackend) Down(context.Context, repository.Project, bool) error           { return nil }

func (b *stubBackend) Status(_ context.Context, name string) (model.ContainerApp, error) {
	for _, a := range b.inventory {
		if a.Name == name {
			return a, nil
		}
	}
	return model.ContainerApp{Name: name, StatusCode: model.ContainerStatusStopped}, nil
}

func (b *stubBackend) Inventory(context.Context) ([]model.ContainerApp, error) {
	return b.inventory, nil
}

func newTestDaemon(t *testing.T, backend *stubBackend) *Daemon {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadConfig(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	cfg.BasePath = filepath.Join(dir, "base")
	cfg.DataPath = filepath.Join(dir, "data")

	d, err := NewDaemon(context.Background(), cfg, filepath.Join(dir, "missing.json"), Options{
		Backend:       backend,
		InMemoryStore: true,
	})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestRecoverSettlesTransientRecords(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{inventory: []model.ContainerApp{
		{Name: "web", StatusCode: model.ContainerStatusActive},
	}}
	d := newTestDaemon(t, backend)

	for _, a := range []*model.App{
		{ID: "a1", Name: "builder", Status: model.StatusBuilding},
		{ID: "a2", Name: "web", Status: model.StatusSuccess, Installed: true, Running: false},
		{ID: "a3", Name: "db", Status: model.StatusSuccess, Installed: true, Running: true},
	} {
		require.NoError(t, d.Store().Create(ctx, a))
	}

	require.NoError(t, d.Recover(ctx))

	tests := []struct {
		id      string
		status  model.Status
		running bool
	}{
		{"a1", model.StatusError, false},
		{"a2", model.StatusSuccess, true},
		{"a3", model.StatusSuccess, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			app, err := d.Store().Get(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.status, app.Status)
			assert.Equal(t, tt.running, app.Running)
		})
	}

	app, err := d.Store().Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, interruptedMessage, app.StatusMessage)
}

func TestHandlersAreRegistered(t *testing.T) {
	ctx := context.Background()
	d := newTestDaemon(t, &stubBackend{})
	require.NoError(t, d.Store().Create(ctx, &model.App{ID: "a1", Name: "demo", Status: model.StatusImported}))

	apps, err := cqrs.DispatchAs[[]*model.App](ctx, d.queryBus, get_apps.GetAppsQuery{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "demo", apps[0].Name)
}
