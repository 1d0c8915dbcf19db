package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/internal/domain/service/descriptor"
	"appdeck/internal/domain/service/lock"
	"appdeck/internal/domain/service/reconcile"
	"appdeck/internal/domain/service/status"
	"appdeck/pkg/log"

	giturls "github.com/whilp/git-urls"
)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// ServiceInterface is the set of record operations that run outside the pipeline.
type ServiceInterface interface {
	Import(ctx context.Context, id, location string) (*model.App, error)
	ImportDescriptor(ctx context.Context, id, name string, text []byte) (*model.App, error)
	GetDescriptor(ctx context.Context, id string) (string, error)
	PutDescriptor(ctx context.Context, id string, text []byte) error
	Reconcile(ctx context.Context, id string, incoming []byte) (model.DiffResult, error)
	SetRunning(ctx context.Context, id string, start bool) (*model.App, error)
	SetAutoUpdate(ctx context.Context, id string, enabled bool, intervalMinutes int) (*model.App, error)
	Remove(ctx context.Context, id string, preserveData bool) error
}

// Service implements the application lifecycle around the pipeline: import,
// manual descriptor edits, start/stop and removal.
type Service struct {
	config  *config.Config
	store   repository.AppStore
	status  *status.Machine
	locks   *lock.Keyed
	fetcher repository.SourceFetcher
	backend repository.DeploymentBackend
	now     func() time.Time
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)

// NewService creates a new Service. locks must be the set shared with the pipeline.
func NewService(cfg *config.Config, store repository.AppStore, machine *status.Machine, locks *lock.Keyed, fetcher repository.SourceFetcher, backend repository.DeploymentBackend) *Service {
	return &Service{
		config:  cfg,
		store:   store,
		status:  machine,
		locks:   locks,
		fetcher: fetcher,
		backend: backend,
		now:     time.Now,
	}
}

// Import creates a source-controlled record and fetches its source once to
// check that it carries a valid descriptor. The record ends Imported or Error.
func (s *Service) Import(ctx context.Context, id, location string) (*model.App, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("source location is required")
	}
	name, err := s.uniqueName(ctx, nameFromLocation(location), id)
	if err != nil {
		return nil, err
	}

	app := &model.App{
		ID:                        id,
		Name:                      name,
		SourceKind:                model.SourceControlled,
		SourceLocation:            location,
		Status:                    model.StatusIdle,
		AutoUpdateIntervalMinutes: model.MinAutoUpdateIntervalMinutes,
		CreatedAt:                 s.now(),
		UpdatedAt:                 s.now(),
	}
	release, err := s.create(ctx, app, "import")
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.status.Transition(ctx, id, model.StatusImporting, "", nil); err != nil {
		return nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout.Std())
	defer cancel()
	res, err := s.fetcher.Fetch(fctx, location, s.config.GetSourceDir(id))
	if err != nil {
		return s.importFailed(ctx, id, fmt.Errorf("%w: %v", model.ErrFetch, err))
	}
	dir := res.Dir
	if dir == "" {
		dir = s.config.GetSourceDir(id)
	}
	text, err := descriptor.ReadFrom(dir)
	if err == nil {
		_, err = descriptor.Parse(text)
	}
	if err != nil {
		return s.importFailed(ctx, id, err)
	}

	log.Info("Application imported", "app_id", id, "name", name, "revision", res.Revision)
	return s.status.Transition(ctx, id, model.StatusImported, "", func(app *model.App) {
		app.RawDescriptor = string(text)
	})
}

// ImportDescriptor creates a descriptor-only record from text. An invalid
// descriptor still creates the record, in Error, so it can be fixed with PutDescriptor.
func (s *Service) ImportDescriptor(ctx context.Context, id, name string, text []byte) (*model.App, error) {
	doc, parseErr := descriptor.Parse(text)
	if name == "" && parseErr == nil {
		name = doc.Name()
	}
	if name == "" {
		name = "app"
	}
	name, err := s.uniqueName(ctx, sanitizeName(name, id), id)
	if err != nil {
		return nil, err
	}

	app := &model.App{
		ID:                        id,
		Name:                      name,
		SourceKind:                model.DescriptorOnly,
		Status:                    model.StatusIdle,
		AutoUpdateIntervalMinutes: model.MinAutoUpdateIntervalMinutes,
		CreatedAt:                 s.now(),
		UpdatedAt:                 s.now(),
	}
	release, err := s.create(ctx, app, "import")
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.status.Transition(ctx, id, model.StatusImporting, "", nil); err != nil {
		return nil, err
	}
	if parseErr != nil {
		return s.importFailed(ctx, id, parseErr)
	}
	return s.status.Transition(ctx, id, model.StatusImported, "", func(app *model.App) {
		app.WorkingDescriptor = string(text)
	})
}

func (s *Service) create(ctx context.Context, app *model.App, owner string) (func(), error) {
	release, ok, holder := s.locks.TryLock(app.ID, owner)
	if !ok {
		return nil, fmt.Errorf("%w: application %s is held by %s", model.ErrAlreadyInProgress, app.ID, holder)
	}
	if err := s.store.Create(ctx, app); err != nil {
		release()
		return nil, fmt.Errorf("failed to create application record: %w", err)
	}
	return release, nil
}

func (s *Service) importFailed(ctx context.Context, id string, cause error) (*model.App, error) {
	log.Warn("Application import failed", "app_id", id, "error", cause)
	app, err := s.status.Fail(ctx, id, cause.Error())
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return app, cause
}

// GetDescriptor returns the working descriptor, or the fetched one when the
// application was never deployed or edited.
func (s *Service) GetDescriptor(ctx context.Context, id string) (string, error) {
	app, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if app.WorkingDescriptor != "" {
		return app.WorkingDescriptor, nil
	}
	if app.RawDescriptor != "" {
		return app.RawDescriptor, nil
	}
	return "", fmt.Errorf("%w: application %s has no descriptor", model.ErrDescriptorParse, id)
}

// PutDescriptor replaces the working descriptor as given. It does not
// reconcile; it is rejected while another operation holds the application.
func (s *Service) PutDescriptor(ctx context.Context, id string, text []byte) error {
	if _, err := descriptor.Parse(text); err != nil {
		return err
	}
	release, ok, holder := s.locks.TryLock(id, "put-descriptor")
	if !ok {
		return fmt.Errorf("%w: application %s is held by %s", model.ErrAlreadyInProgress, id, holder)
	}
	defer release()

	_, err := s.store.Update(ctx, id, func(app *model.App) error {
		app.WorkingDescriptor = string(text)
		app.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("Working descriptor replaced", "app_id", id)
	return nil
}

// Reconcile compares incoming with the current descriptor without changing anything.
func (s *Service) Reconcile(ctx context.Context, id string, incoming []byte) (model.DiffResult, error) {
	current, err := s.GetDescriptor(ctx, id)
	if err != nil {
		return model.DiffResult{}, err
	}
	return reconcile.Diff([]byte(current), incoming), nil
}

// SetRunning starts or stops an installed application through Starting or Stopping.
func (s *Service) SetRunning(ctx context.Context, id string, start bool) (*model.App, error) {
	owner, via := "stop", model.StatusStopping
	if start {
		owner, via = "start", model.StatusStarting
	}
	release, ok, holder := s.locks.TryLock(id, owner)
	if !ok {
		return nil, fmt.Errorf("%w: application %s is held by %s", model.ErrAlreadyInProgress, id, holder)
	}
	defer release()

	app, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.Installed {
		return nil, fmt.Errorf("%w: %s", model.ErrNotInstalled, id)
	}
	if _, err := s.status.Transition(ctx, id, via, "", nil); err != nil {
		return nil, err
	}

	project := s.project(app)
	if start {
		err = s.backend.Start(ctx, project)
	} else {
		err = s.backend.Stop(ctx, project)
	}
	if err != nil {
		log.Warn("Failed to change running state", "app_id", id, "start", start, "error", err)
		if _, ferr := s.status.Fail(context.WithoutCancel(ctx), id, err.Error()); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}

	running := start
	if observed, err := s.backend.Status(ctx, app.Identity()); err == nil {
		running = observed.Running()
	}
	return s.status.Transition(context.WithoutCancel(ctx), id, model.StatusSuccess, "", func(app *model.App) {
		app.Running = running
	})
}

// SetAutoUpdate configures update checks for a source-controlled application.
func (s *Service) SetAutoUpdate(ctx context.Context, id string, enabled bool, intervalMinutes int) (*model.App, error) {
	if intervalMinutes != 0 && intervalMinutes < model.MinAutoUpdateIntervalMinutes {
		return nil, fmt.Errorf("auto update interval must be at least %d minutes", model.MinAutoUpdateIntervalMinutes)
	}
	return s.store.Update(ctx, id, func(app *model.App) error {
		if enabled && app.SourceKind != model.SourceControlled {
			return fmt.Errorf("auto update requires a source-controlled application")
		}
		app.AutoUpdate = enabled
		if intervalMinutes != 0 {
			app.AutoUpdateIntervalMinutes = intervalMinutes
		}
		app.UpdatedAt = s.now()
		return nil
	})
}

// Remove tears the application down and deletes its record. With
// preserveData the project's volumes and managed data are kept. A failed
// teardown leaves the record in Error.
func (s *Service) Remove(ctx context.Context, id string, preserveData bool) error {
	release, ok, holder := s.locks.TryLock(id, "remove")
	if !ok {
		return fmt.Errorf("%w: application %s is held by %s", model.ErrAlreadyInProgress, id, holder)
	}
	defer release()

	app, err := s.status.Transition(ctx, id, model.StatusUninstalling, "", nil)
	if err != nil {
		return err
	}
	final := context.WithoutCancel(ctx)
	fail := func(cause error) error {
		log.Warn("Failed to remove application", "app_id", id, "error", cause)
		if _, err := s.status.Fail(final, id, cause.Error()); err != nil {
			return errors.Join(cause, err)
		}
		return cause
	}

	name := app.Identity()
	appDir := s.config.GetAppDir(name)
	if app.Installed || fileExists(appDir) {
		if err := s.backend.Down(ctx, s.project(app), !preserveData); err != nil {
			return fail(fmt.Errorf("failed to tear down %s: %w", name, err))
		}
	}

	targets := []string{appDir, s.config.GetSourceDir(id)}
	if !preserveData {
		targets = append(targets, s.config.GetAppDataDir(name))
	}
	for _, dir := range targets {
		if err := os.RemoveAll(dir); err != nil {
			return fail(fmt.Errorf("failed to remove %s: %w", dir, err))
		}
	}

	if err := s.store.Delete(final, id); err != nil {
		return fail(fmt.Errorf("failed to delete application record: %w", err))
	}
	log.Info("Application removed", "app_id", id, "name", name, "preserve_data", preserveData)
	return nil
}

func (s *Service) project(app *model.App) repository.Project {
	return repository.Project{
		Name:    app.Identity(),
		Dir:     s.config.GetAppDir(app.Identity()),
		EnvFile: config.EnvFile,
	}
}

// uniqueName returns name, suffixed with part of id when another record already uses it.
func (s *Service) uniqueName(ctx context.Context, name, id string) (string, error) {
	apps, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range apps {
		if a.Identity() == name {
			return name + "-" + shortID(id), nil
		}
	}
	return name, nil
}

// nameFromLocation derives a project name from a clone URL, including the
// scp-like "git@host:org/app.git" form.
func nameFromLocation(location string) string {
	p := location
	if u, err := giturls.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(strings.TrimRight(p, "/"))
	base = strings.TrimSuffix(base, ".git")
	return sanitizeName(base, "")
}

// sanitizeName turns s into a valid project name.
func sanitizeName(s, id string) string {
	s = invalidNameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.TrimLeft(s, "-_")
	s = strings.TrimRight(s, "-")
	if s == "" {
		if id == "" {
			return "app"
		}
		return "app-" + shortID(id)
	}
	return s
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
