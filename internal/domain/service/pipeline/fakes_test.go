package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	apps map[string]*model.App
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
	delete(s.apps, id)
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingSink) Emit(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// statuses returns the status changes announced so far.
func (r *recordingSink) statuses() []model.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Status
	for _, e := range r.events {
		if e.Status != "" {
			out = append(out, e.Status)
		}
	}
	return out
}

func (r *recordingSink) warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Level == model.EventWarn {
			out = append(out, e.Message)
		}
	}
	return out
}

type fakeFetcher struct {
	descriptor string
	files      map[string]string
	revision   string
	err        error
	calls      int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, dir string) (repository.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return repository.FetchResult{}, f.err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return repository.FetchResult{}, err
	}
	files := map[string]string{"compose.yml": f.descriptor}
	for name, content := range f.files {
		files[name] = content
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return repository.FetchResult{}, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return repository.FetchResult{}, err
		}
	}
	return repository.FetchResult{Dir: dir, Revision: f.revision}, nil
}

func (f *fakeFetcher) RemoteRevision(context.Context, string) (string, error) {
	return f.revision, nil
}

type fakeBuilder struct {
	requests []repository.BuildRequest
	err      error
}

func (b *fakeBuilder) Build(_ context.Context, req repository.BuildRequest) (string, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return "", b.err
	}
	return req.Tag, nil
}

type fakeBackend struct {
	mu        sync.Mutex
	applyErrs []error
	timeouts  []time.Duration
	applied   []string
	running   bool
	statusErr error
	downs     []bool
	networks  []string
	projects  []string
	// statusNames lists the identities Status was asked about.
	statusNames []string
	// inventory replaces the view derived from applied projects when set.
	inventory []model.ContainerApp

	entered chan struct{}
	block   chan struct{}
}

func (b *fakeBackend) Apply(_ context.Context, project repository.Project, timeout time.Duration) error {
	b.mu.Lock()
	b.timeouts = append(b.timeouts, timeout)
	data, _ := os.ReadFile(filepath.Join(project.Dir, config.DescriptorFile))
	b.applied = append(b.applied, string(data))
	b.projects = append(b.projects, project.Name)
	var err error
	if len(b.applyErrs) > 0 {
		err = b.applyErrs[0]
		b.applyErrs = b.applyErrs[1:]
	}
	b.mu.Unlock()

	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.block != nil {
		<-b.block
	}
	return err
}

func (b *fakeBackend) Start(context.Context, repository.Project) error { return nil }

func (b *fakeBackend) Stop(context.Context, repository.Project) error { return nil }

func (b *fakeBackend) Down(_ context.Context, _ repository.Project, removeVolumes bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downs = append(b.downs, removeVolumes)
	return nil
}

func (b *fakeBackend) Status(_ context.Context, name string) (model.ContainerApp, error) {
	b.mu.Lock()
	b.statusNames = append(b.statusNames, name)
	b.mu.Unlock()
	if b.statusErr != nil {
		return model.ContainerApp{}, b.statusErr
	}
	code := model.ContainerStatusStopped
	if b.running {
		code = model.ContainerStatusActive
	}
	return model.ContainerApp{Name: name, StatusCode: code}, nil
}

func (b *fakeBackend) Inventory(context.Context) ([]model.ContainerApp, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inventory != nil {
		return b.inventory, nil
	}
	code := model.ContainerStatusStopped
	if b.running {
		code = model.ContainerStatusActive
	}
	seen := make(map[string]bool)
	var out []model.ContainerApp
	for _, name := range b.projects {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, model.ContainerApp{Name: name, StatusCode: code})
	}
	return out, nil
}

func (b *fakeBackend) EnsureNetwork(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.networks = append(b.networks, name)
	return nil
}

type fakeHooks struct {
	mu       sync.Mutex
	requests []repository.HookRequest
	err      error
}

func (h *fakeHooks) Run(_ context.Context, req repository.HookRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)
	return h.err
}

func (h *fakeHooks) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.requests {
		out = append(out, r.Name)
	}
	return out
}

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) Issue(_, _, existing string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if existing != "" {
		return existing, nil
	}
	return f.token, nil
}

type harness struct {
	cfg      *config.Config
	store    *memoryStore
	fetcher  *fakeFetcher
	builder  *fakeBuilder
	backend  *fakeBackend
	hooks    *fakeHooks
	tokens   *fakeTokens
	events   *recordingSink
	pipeline *Pipeline
}

func newHarness(t *testing.T, apps ...*model.App) *harness {
	t.Helper()
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	cfg.BasePath = t.TempDir()
	cfg.DataPath = t.TempDir()

	h := &harness{
		cfg:     cfg,
		store:   &memoryStore{apps: make(map[string]*model.App)},
		fetcher: &fakeFetcher{descriptor: webDescriptor, revision: "0a1b2c3d4e5f60718293"},
		builder: &fakeBuilder{},
		backend: &fakeBackend{running: true},
		hooks:   &fakeHooks{},
		tokens:  &fakeTokens{token: "signed-token"},
		events:  &recordingSink{},
	}
	for _, a := range apps {
		require.NoError(t, h.store.Create(context.Background(), a))
	}
	h.pipeline = NewPipeline(cfg, Dependencies{
		Store:   h.store,
		Fetcher: h.fetcher,
		Builder: h.builder,
		Backend: h.backend,
		Hooks:   h.hooks,
		Tokens:  h.tokens,
		Events:  h.events,
	})
	h.pipeline.sleep = func(context.Context, time.Duration) error { return nil }
	h.pipeline.chown = func(string, int, int) error { return nil }
	return h
}

func (h *harness) app(t *testing.T, id string) *model.App {
	t.Helper()
	app, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return app
}

func (h *harness) deployed(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.cfg.GetAppDir(name), config.DescriptorFile))
	require.NoError(t, err)
	return string(data)
}

const webDescriptor = `services:
  web:
    image: nginx:1.27
    environment:
      - FOO=bar
`

func importedApp() *model.App {
	return &model.App{
		ID:             "app-1",
		Name:           "app",
		SourceKind:     model.SourceControlled,
		SourceLocation: "https://example.com/org/app.git",
		Status:         model.StatusImported,
	}
}
