package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/internal/domain/service/descriptor"
	"appdeck/internal/domain/service/reconcile"
	"appdeck/internal/domain/service/retry"
	"appdeck/pkg/env"
	"appdeck/pkg/metrics"
)

const (
	tokenVar        = "APPDECK_TOKEN"
	preInstallFile  = "hooks/pre-install.sh"
	postInstallFile = "hooks/post-install.sh"
)

var projectName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

type step struct {
	stage model.Stage
	run   func(ctx context.Context, r *run) error
}

func (p *Pipeline) steps() []step {
	return []step{
		{model.StageFetch, p.fetch},
		{model.StageBuild, p.build},
		{model.StageDescriptor, p.loadDescriptor},
		{model.StageRename, p.rename},
		{model.StagePreInstallHook, p.preInstallHook},
		{model.StageToken, p.issueToken},
		{model.StagePreprocess, p.preprocess},
		{model.StageProvision, p.provision},
		{model.StageWriteDescriptor, p.writeDescriptor},
		{model.StageApply, p.apply},
		{model.StageOwnership, p.reconcileOwnership},
		{model.StageVerify, p.verify},
		{model.StagePersist, p.persist},
		{model.StagePostInstallHook, p.postInstallHook},
		{model.StageSync, p.sync},
	}
}

// stages runs every step in order and stops at the first fatal error.
func (p *Pipeline) stages(ctx context.Context, r *run) error {
	r.installed = r.app.Installed
	r.name = r.app.Identity()
	for _, s := range p.steps() {
		start := p.now()
		err := s.run(ctx, r)
		metrics.ObserveStage(string(s.stage), start)
		if err != nil {
			return stageErr(s.stage, err)
		}
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, r *run) error {
	if r.app.SourceKind != model.SourceControlled {
		return nil
	}
	r.sourceDir = p.config.GetSourceDir(r.app.ID)
	r.info(model.StageFetch, "Fetching source from "+r.app.SourceLocation)

	fctx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout.Std())
	defer cancel()
	res, err := p.deps.Fetcher.Fetch(fctx, r.app.SourceLocation, r.sourceDir)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrFetch, err)
	}
	if res.Dir != "" {
		r.sourceDir = res.Dir
	}
	r.revision = res.Revision
	r.info(model.StageFetch, "Source at revision "+shortRevision(r.revision))
	return nil
}

// build builds one image per service declaring a build section, or a single
// image from a root Dockerfile when none does. The Installing transition
// happens here for source-controlled applications.
func (p *Pipeline) build(ctx context.Context, r *run) error {
	if r.app.SourceKind != model.SourceControlled {
		return nil
	}

	contexts := map[string][2]string{}
	if text, err := descriptor.ReadFrom(r.sourceDir); err == nil {
		if doc, err := descriptor.Parse(text); err == nil {
			contexts = doc.BuildContexts()
		}
	}

	bctx, cancel := context.WithTimeout(ctx, p.config.BuildTimeout.Std())
	defer cancel()

	base := "appdeck/" + r.name
	version := shortRevision(r.revision)
	services := make([]string, 0, len(contexts))
	for svc := range contexts {
		services = append(services, svc)
	}
	sort.Strings(services)

	for _, svc := range services {
		dir, err := within(r.sourceDir, contexts[svc][0])
		if err != nil {
			return fmt.Errorf("%w: service %s: %v", model.ErrBuild, svc, err)
		}
		r.info(model.StageBuild, "Building image for service "+svc)
		ref, err := p.deps.Builder.Build(bctx, repository.BuildRequest{
			ContextDir: dir,
			Dockerfile: contexts[svc][1],
			Tag:        fmt.Sprintf("%s-%s:%s", base, svc, version),
		})
		if err != nil {
			return fmt.Errorf("%w: service %s: %v", model.ErrBuild, svc, err)
		}
		r.images[svc] = ref
		if r.imageRef == "" {
			r.imageRef = ref
		}
	}

	if len(services) == 0 && fileExists(filepath.Join(r.sourceDir, "Dockerfile")) {
		r.info(model.StageBuild, "Building image from Dockerfile")
		ref, err := p.deps.Builder.Build(bctx, repository.BuildRequest{
			ContextDir: r.sourceDir,
			Tag:        fmt.Sprintf("%s:%s", base, version),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", model.ErrBuild, err)
		}
		r.imageRef = ref
	}
	if r.imageRef == "" {
		r.info(model.StageBuild, "Nothing to build")
	}

	_, err := p.deps.Status.Transition(ctx, r.app.ID, model.StatusInstalling, "", nil)
	return err
}

// loadDescriptor produces the working descriptor for this run. When a
// source-controlled application already has a working descriptor, the
// fetched one is reconciled against it and customised values are carried over.
func (p *Pipeline) loadDescriptor(ctx context.Context, r *run) error {
	if r.app.SourceKind == model.DescriptorOnly {
		if strings.TrimSpace(r.app.WorkingDescriptor) == "" {
			return fmt.Errorf("%w: application has no descriptor", model.ErrDescriptorParse)
		}
		r.working = []byte(r.app.WorkingDescriptor)
	} else {
		text, err := descriptor.ReadFrom(r.sourceDir)
		if err != nil {
			return err
		}
		r.raw = text
		r.working = text
		if err := p.carryOver(r, text); err != nil {
			return stageErr(model.StageReconcile, err)
		}
	}

	if _, err := descriptor.Parse(r.working); err != nil {
		return err
	}
	r.info(model.StageDescriptor, "Descriptor loaded")
	return nil
}

func (p *Pipeline) carryOver(r *run, incoming []byte) error {
	old := r.app.WorkingDescriptor
	if old == "" || r.opts.ForceDeleteExistingData {
		return nil
	}

	result := reconcile.Reconcile([]byte(old), incoming)
	for _, w := range result.Warnings {
		r.warn(model.StageReconcile, w, nil)
	}
	if result.StructurallyChanged {
		r.info(model.StageReconcile, "Descriptor changed structurally upstream")
	} else {
		r.info(model.StageReconcile, "Descriptor unchanged apart from environment values")
	}
	if !r.opts.TransferEnvironment || result.Transfer.Len() == 0 {
		return nil
	}

	merged, err := reconcile.ApplyTransfer(incoming, result.Transfer)
	if err != nil {
		return err
	}
	r.working = merged
	r.info(model.StageReconcile, fmt.Sprintf("Carried over %d customised environment values", result.Transfer.Len()))
	return nil
}

// rename adopts a name declared in the descriptor as the display identity.
// Problems are warnings; the run keeps the previous identity.
func (p *Pipeline) rename(ctx context.Context, r *run) error {
	doc, err := descriptor.Parse(r.working)
	if err != nil {
		return err
	}
	declared := strings.ToLower(doc.Name())
	if declared == "" || declared == r.name {
		return nil
	}
	if !projectName.MatchString(declared) {
		r.warn(model.StageRename, fmt.Sprintf("Ignoring declared name %q", declared), nil)
		return nil
	}

	oldDir := p.config.GetAppDir(r.name)
	newDir := p.config.GetAppDir(declared)
	if fileExists(newDir) {
		r.warn(model.StageRename, fmt.Sprintf("Cannot rename to %q, directory already exists", declared), nil)
		return nil
	}
	if r.installed && fileExists(oldDir) {
		if err := p.deps.Backend.Down(ctx, r.project(), false); err != nil {
			r.warn(model.StageRename, "Failed to stop project under its previous name", err)
		}
	}
	if fileExists(oldDir) {
		if err := os.Rename(oldDir, newDir); err != nil {
			r.warn(model.StageRename, "Failed to move application directory", err)
			return nil
		}
	}

	previous := r.name
	r.name = declared
	if _, err := p.deps.Store.Update(ctx, r.app.ID, func(app *model.App) error {
		app.DisplayName = declared
		return nil
	}); err != nil {
		r.warn(model.StageRename, "Failed to record new name", err)
	}
	r.info(model.StageRename, fmt.Sprintf("Renamed %s to %s", previous, declared))
	return nil
}

func (p *Pipeline) preInstallHook(ctx context.Context, r *run) error {
	if r.installed {
		r.info(model.StagePreInstallHook, "Skipping pre-install hook on an installed application")
		return nil
	}
	if !r.opts.RunPreInstallHook || !p.config.IsFeatureEnabled(config.FeatureHooks) {
		return nil
	}
	req, ok := r.hook(true)
	if !ok {
		r.info(model.StagePreInstallHook, "No pre-install hook declared")
		return nil
	}
	r.info(model.StagePreInstallHook, "Running pre-install hook")
	if err := p.runHook(ctx, req); err != nil {
		return fmt.Errorf("%w: pre-install: %v", model.ErrHookExecution, err)
	}
	return nil
}

func (p *Pipeline) postInstallHook(ctx context.Context, r *run) error {
	if !r.running || !p.config.IsFeatureEnabled(config.FeatureHooks) {
		return nil
	}
	req, ok := r.hook(false)
	if !ok {
		return nil
	}
	r.info(model.StagePostInstallHook, "Running post-install hook")
	if err := p.runHook(ctx, req); err != nil {
		r.warn(model.StagePostInstallHook, "Post-install hook failed",
			fmt.Errorf("%w: %v", model.ErrHookExecution, err))
	}
	return nil
}

func (p *Pipeline) runHook(ctx context.Context, req repository.HookRequest) error {
	hctx, cancel := context.WithTimeout(ctx, p.config.HookTimeout.Std())
	defer cancel()
	return p.deps.Hooks.Run(hctx, req)
}

// hook returns the request for the pre- or post-install hook: the inline
// script from the descriptor annotation, else the script file in the source tree.
func (r *run) hook(pre bool) (repository.HookRequest, bool) {
	name, file := "post-install", postInstallFile
	if pre {
		name, file = "pre-install", preInstallFile
	}
	req := repository.HookRequest{
		Name: name,
		Dir:  r.p.config.GetAppDir(r.name),
		User: r.opts.RunAsUser,
		Env:  r.vars(),
	}
	if doc, err := descriptor.Parse(r.working); err == nil {
		preScript, postScript := doc.Hooks()
		script := postScript
		if pre {
			script = preScript
		}
		if strings.TrimSpace(script) != "" {
			req.Script = script
			return req, true
		}
	}
	if r.sourceDir != "" {
		path := filepath.Join(r.sourceDir, file)
		if fileExists(path) {
			req.Path = path
			req.Dir = r.sourceDir
			return req, true
		}
	}
	return req, false
}

// issueToken reuses the token in the application's env file when it is still
// valid for the same binding. Failure is a warning.
func (p *Pipeline) issueToken(ctx context.Context, r *run) error {
	if !p.config.IsFeatureEnabled(config.FeatureCapabilityToken) || p.deps.Tokens == nil {
		return nil
	}
	existing := ""
	if vars, err := env.Load(filepath.Join(p.config.GetAppDir(r.name), config.EnvFile)); err == nil {
		existing = vars[tokenVar]
	}
	token, err := p.deps.Tokens.Issue(r.app.ID, r.sourceIdentity(), existing)
	if err != nil {
		r.warn(model.StageToken, "Continuing without capability token",
			fmt.Errorf("%w: %v", model.ErrTokenIssuance, err))
		return nil
	}
	r.token = token
	if token == existing {
		r.info(model.StageToken, "Reusing capability token")
	} else {
		r.info(model.StageToken, "Issued capability token")
	}
	return nil
}

func (r *run) sourceIdentity() string {
	if r.app.SourceKind == model.SourceControlled {
		return r.app.SourceLocation
	}
	return "descriptor:" + r.app.ID
}

// writeDescriptor writes the preprocessed descriptor and the env file the
// backend reads from.
func (p *Pipeline) writeDescriptor(ctx context.Context, r *run) error {
	dir := p.config.GetAppDir(r.name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create application directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, config.DescriptorFile), r.final, 0o644); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}

	vars := map[string]string{}
	if r.token != "" {
		vars[tokenVar] = r.token
	}
	if err := env.Save(filepath.Join(dir, config.EnvFile), vars); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	r.info(model.StageWriteDescriptor, "Descriptor written to "+dir)
	return nil
}

func (p *Pipeline) apply(ctx context.Context, r *run) error {
	r.info(model.StageApply, "Applying descriptor")
	project := r.project()
	err := p.policy.Do(ctx, p.config.ApplyTimeout.Std(),
		func(ctx context.Context, timeout time.Duration) error {
			return p.deps.Backend.Apply(ctx, project, timeout)
		},
		func(attempt int, next time.Duration, err error) {
			metrics.ObserveApplyRetry()
			r.warn(model.StageApply, fmt.Sprintf("Apply timed out, retrying with %s budget", next), nil)
		})
	if err == nil {
		return nil
	}
	if retry.Classify(err) == retry.ClassTimeout {
		return err
	}
	if !errors.Is(err, model.ErrApply) {
		err = fmt.Errorf("%w: %v", model.ErrApply, err)
	}
	return err
}

func (p *Pipeline) verify(ctx context.Context, r *run) error {
	if err := p.sleep(ctx, p.config.SettleDelay.Std()); err != nil {
		r.warn(model.StageVerify, "Settle delay interrupted", err)
	}
	status, err := p.deps.Backend.Status(ctx, r.name)
	if err != nil {
		r.warn(model.StageVerify, "Failed to query running state", err)
	}
	r.running = err == nil && status.Running()
	if !r.running {
		r.message = model.ErrVerificationMismatch.Error()
		r.warn(model.StageVerify, "Application installed but not running", nil)
		return nil
	}
	r.info(model.StageVerify, "Application is running")
	return nil
}

func (p *Pipeline) persist(ctx context.Context, r *run) error {
	_, err := p.deps.Status.Transition(ctx, r.app.ID, model.StatusSuccess, r.message, func(app *model.App) {
		app.Installed = true
		app.Running = r.running
		app.DisplayName = r.name
		app.WorkingDescriptor = string(r.working)
		if r.app.SourceKind == model.SourceControlled {
			app.RawDescriptor = string(r.raw)
			app.CurrentVersion = r.revision
			if app.LatestVersion == "" {
				app.LatestVersion = r.revision
			}
		}
		if r.imageRef != "" {
			app.ImageRef = r.imageRef
		}
	})
	return err
}

// sync refreshes the running flag of every other record from the backend
// inventory. The flag verify just observed for this run is kept.
func (p *Pipeline) sync(ctx context.Context, r *run) error {
	if err := p.syncInventory(ctx, r.app.ID); err != nil {
		r.warn(model.StageSync, "Inventory sync failed", err)
	}
	return nil
}

// SyncInventory sets every record's running flag from the backend inventory.
func (p *Pipeline) SyncInventory(ctx context.Context) error {
	return p.syncInventory(ctx, "")
}

func (p *Pipeline) syncInventory(ctx context.Context, skipID string) error {
	inventory, err := p.deps.Backend.Inventory(ctx)
	if err != nil {
		return err
	}
	running := make(map[string]bool, len(inventory))
	for _, c := range inventory {
		running[c.Name] = c.Running()
	}
	apps, err := p.deps.Store.List(ctx)
	if err != nil {
		return err
	}
	for _, app := range apps {
		if app.ID == skipID || !app.Installed || app.Status.Transient() {
			continue
		}
		observed := running[app.Identity()]
		if app.Running == observed {
			continue
		}
		if _, err := p.deps.Store.Update(ctx, app.ID, func(a *model.App) error {
			a.Running = observed
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func shortRevision(rev string) string {
	if rev == "" {
		return "latest"
	}
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// within resolves rel against root and rejects paths escaping root.
func within(root, rel string) (string, error) {
	path := filepath.Join(root, rel)
	r, err := filepath.Rel(root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, root)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
