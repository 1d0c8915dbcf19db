package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/internal/domain/service/lock"
	"appdeck/internal/domain/service/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	apps map[string]*model.App
}

func (s *memoryStore) Create(_ context.Context, app *model.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return errors.New("duplicate id")
	}
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
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
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
	if _, ok := s.apps[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

type fakeFetcher struct {
	descriptor string
	err        error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, dir string) (repository.FetchResult, error) {
	if f.err != nil {
		return repository.FetchResult{}, f.err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return repository.FetchResult{}, err
	}
	if f.descriptor != "" {
		if err := os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(f.descriptor), 0o644); err != nil {
			return repository.FetchResult{}, err
		}
	}
	return repository.FetchResult{Dir: dir, Revision: "abc"}, nil
}

func (f *fakeFetcher) RemoteRevision(context.Context, string) (string, error) { return "abc", nil }

type fakeBackend struct {
	startErr error
	downErr  error
	running  bool
	starts   int
	stops    int
	downs    []bool
}

func (b *fakeBackend) Apply(context.Context, repository.Project, time.Duration) error { return nil }

func (b *fakeBackend) Start(context.Context, repository.Project) error {
	b.starts++
	if b.startErr == nil {
		b.running = true
	}
	return b.startErr
}

func (b *fakeBackend) Stop(context.Context, repository.Project) error {
	b.stops++
	b.running = false
	return nil
}

func (b *fakeBackend) Down(_ context.Context, _ repository.Project, removeVolumes bool) error {
	b.downs = append(b.downs, removeVolumes)
	return b.downErr
}

func (b *fakeBackend) Status(_ context.Context, name string) (model.ContainerApp, error) {
	code := model.ContainerStatusStopped
	if b.running {
		code = model.ContainerStatusActive
	}
	return model.ContainerApp{Name: name, StatusCode: code}, nil
}

func (b *fakeBackend) Inventory(context.Context) ([]model.ContainerApp, error) { return nil, nil }

const descriptorText = `services:
  web:
    image: nginx
    environment:
      FOO: bar
`

func newTestService(t *testing.T, apps ...*model.App) (*Service, *memoryStore, *fakeFetcher, *fakeBackend, *lock.Keyed) {
	t.Helper()
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	cfg.BasePath = t.TempDir()
	cfg.DataPath = t.TempDir()

	store := &memoryStore{apps: make(map[string]*model.App)}
	for _, a := range apps {
		require.NoError(t, store.Create(context.Background(), a))
	}
	fetcher := &fakeFetcher{descriptor: descriptorText}
	backend := &fakeBackend{}
	locks := lock.NewKeyed()
	svc := NewService(cfg, store, status.NewMachine(store, nil), locks, fetcher, backend)
	return svc, store, fetcher, backend, locks
}

func installedApp() *model.App {
	return &model.App{
		ID:                "app-1",
		Name:              "blog",
		SourceKind:        model.DescriptorOnly,
		Status:            model.StatusSuccess,
		Installed:         true,
		Running:           true,
		WorkingDescriptor: descriptorText,
	}
}

func TestImport(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	app, err := svc.Import(context.Background(), "app-1", "https://example.com/org/app.git")
	require.NoError(t, err)
	assert.Equal(t, model.StatusImported, app.Status)
	assert.Equal(t, "app", app.Name)
	assert.Equal(t, model.SourceControlled, app.SourceKind)
	assert.Equal(t, descriptorText, app.RawDescriptor)
	assert.Empty(t, app.CurrentVersion)
	assert.Empty(t, app.LatestVersion)
}

func TestImportFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fakeFetcher)
		wantErr error
	}{
		{name: "fetch", setup: func(f *fakeFetcher) { f.err = errors.New("auth required") }, wantErr: model.ErrFetch},
		{name: "missing descriptor", setup: func(f *fakeFetcher) { f.descriptor = "" }, wantErr: model.ErrDescriptorParse},
		{name: "invalid descriptor", setup: func(f *fakeFetcher) { f.descriptor = "services: 3\n" }, wantErr: model.ErrDescriptorParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, fetcher, _, _ := newTestService(t)
			tt.setup(fetcher)

			_, err := svc.Import(context.Background(), "app-1", "https://example.com/org/app.git")
			require.ErrorIs(t, err, tt.wantErr)

			app, err := store.Get(context.Background(), "app-1")
			require.NoError(t, err)
			assert.Equal(t, model.StatusError, app.Status)
			assert.NotEmpty(t, app.StatusMessage)
		})
	}
}

func TestImportDeduplicatesNames(t *testing.T) {
	svc, _, _, _, _ := newTestService(t, installedApp())

	app, err := svc.ImportDescriptor(context.Background(), "7f3c9e21-aaaa", "Blog", []byte(descriptorText))
	require.NoError(t, err)
	assert.Equal(t, "blog-7f3c9e21", app.Name)
}

func TestImportDescriptor(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	app, err := svc.ImportDescriptor(context.Background(), "app-1", "", []byte("name: Notes\n"+descriptorText))
	require.NoError(t, err)
	assert.Equal(t, "notes", app.Name)
	assert.Equal(t, model.DescriptorOnly, app.SourceKind)
	assert.Equal(t, model.StatusImported, app.Status)

	text, err := svc.GetDescriptor(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "name: Notes\n"+descriptorText, text)
}

func TestImportDescriptorInvalidLeavesError(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	app, err := svc.ImportDescriptor(context.Background(), "app-1", "notes", []byte("services: [\n"))
	require.ErrorIs(t, err, model.ErrDescriptorParse)
	require.NotNil(t, app)
	assert.Equal(t, model.StatusError, app.Status)

	require.NoError(t, svc.PutDescriptor(context.Background(), "app-1", []byte(descriptorText)))
	text, err := svc.GetDescriptor(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, descriptorText, text)
}

func TestPutDescriptor(t *testing.T) {
	svc, _, _, _, locks := newTestService(t, installedApp())
	edited := []byte("services:\n  web:\n    image: nginx:2\n")

	require.ErrorIs(t, svc.PutDescriptor(context.Background(), "app-1", []byte("services: [\n")), model.ErrDescriptorParse)

	release, ok, _ := locks.TryLock("app-1", "run-1")
	require.True(t, ok)
	require.ErrorIs(t, svc.PutDescriptor(context.Background(), "app-1", edited), model.ErrAlreadyInProgress)
	release()

	require.NoError(t, svc.PutDescriptor(context.Background(), "app-1", edited))
	text, err := svc.GetDescriptor(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, string(edited), text)
}

func TestReconcileDoesNotMutate(t *testing.T) {
	svc, store, _, _, _ := newTestService(t, installedApp())
	incoming := []byte("services:\n  web:\n    image: nginx\n    environment:\n      FOO: baz\n")

	result, err := svc.Reconcile(context.Background(), "app-1", incoming)
	require.NoError(t, err)
	assert.False(t, result.StructurallyChanged)
	assert.Equal(t, []model.TransferableKey{{Service: "web", Key: "FOO"}}, result.TransferableKeys())

	app, err := store.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, descriptorText, app.WorkingDescriptor)
}

func TestSetRunning(t *testing.T) {
	svc, _, _, backend, _ := newTestService(t, installedApp())

	app, err := svc.SetRunning(context.Background(), "app-1", false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, app.Status)
	assert.False(t, app.Running)
	assert.Equal(t, 1, backend.stops)

	app, err = svc.SetRunning(context.Background(), "app-1", true)
	require.NoError(t, err)
	assert.True(t, app.Running)
	assert.Equal(t, 1, backend.starts)
}

func TestSetRunningFailureMovesToError(t *testing.T) {
	svc, store, _, backend, _ := newTestService(t, installedApp())
	backend.startErr = errors.New("port already allocated")

	_, err := svc.SetRunning(context.Background(), "app-1", true)
	require.Error(t, err)

	app, err := store.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, app.Status)
	assert.Equal(t, "port already allocated", app.StatusMessage)
}

func TestSetRunningRequiresInstall(t *testing.T) {
	app := installedApp()
	app.Installed = false
	app.Status = model.StatusImported
	svc, _, _, _, _ := newTestService(t, app)

	_, err := svc.SetRunning(context.Background(), "app-1", true)
	assert.ErrorIs(t, err, model.ErrNotInstalled)
}

func TestSetAutoUpdate(t *testing.T) {
	src := installedApp()
	src.SourceKind = model.SourceControlled
	svc, _, _, _, _ := newTestService(t, src)

	_, err := svc.SetAutoUpdate(context.Background(), "app-1", true, 2)
	require.Error(t, err)

	app, err := svc.SetAutoUpdate(context.Background(), "app-1", true, 30)
	require.NoError(t, err)
	assert.True(t, app.AutoUpdate)
	assert.Equal(t, 30, app.AutoUpdateIntervalMinutes)
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name         string
		preserveData bool
		wantVolumes  bool
	}{
		{name: "wipe data", preserveData: false, wantVolumes: true},
		{name: "preserve data", preserveData: true, wantVolumes: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, backend, _ := newTestService(t, installedApp())
			dataFile := filepath.Join(svc.config.GetAppDataDir("blog"), "db", "data")
			require.NoError(t, os.MkdirAll(filepath.Dir(dataFile), 0o755))
			require.NoError(t, os.WriteFile(dataFile, []byte("x"), 0o644))
			require.NoError(t, os.MkdirAll(svc.config.GetAppDir("blog"), 0o755))

			require.NoError(t, svc.Remove(context.Background(), "app-1", tt.preserveData))

			assert.Equal(t, []bool{tt.wantVolumes}, backend.downs)
			_, err := store.Get(context.Background(), "app-1")
			assert.ErrorIs(t, err, model.ErrNotFound)
			assert.NoDirExists(t, svc.config.GetAppDir("blog"))
			if tt.preserveData {
				assert.FileExists(t, dataFile)
			} else {
				assert.NoFileExists(t, dataFile)
			}
		})
	}
}

func TestRemoveFailureKeepsRecordInError(t *testing.T) {
	svc, store, _, backend, _ := newTestService(t, installedApp())
	backend.downErr = errors.New("daemon unreachable")

	require.Error(t, svc.Remove(context.Background(), "app-1", false))

	app, err := store.Get(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, app.Status)
	assert.Contains(t, app.StatusMessage, "daemon unreachable")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My App", "my-app"},
		{"__blog", "blog"},
		{"ghost.io", "ghost-io"},
		{"", "app-12345678"},
		{"***", "app-12345678"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in, "12345678-9"), tt.in)
	}
}

func TestNameFromLocation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/org/Blog.git", "blog"},
		{"https://example.com/org/shop/", "shop"},
		{"git@github.com:org/wiki.git", "wiki"},
		{"/srv/repos/notes", "notes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nameFromLocation(tt.in), tt.in)
	}
}
