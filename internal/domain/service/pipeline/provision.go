package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/service/descriptor"
)

// managedPaths returns the descriptor's host paths under the data root,
// deduplicated by resolved path.
func (p *Pipeline) managedPaths(doc *descriptor.Document, appDir string) []string {
	root := filepath.Clean(p.config.GetDataPath())
	seen := make(map[string]bool)
	var paths []string
	for _, path := range doc.HostPaths(appDir) {
		if seen[path] || !under(root, path) {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}

// provision creates every managed path and hands it to the service identity.
// A path that cannot be provisioned is a warning. A forced reinstall first
// tears the project down with its volumes and wipes its managed data.
func (p *Pipeline) provision(ctx context.Context, r *run) error {
	if r.opts.ForceDeleteExistingData {
		if err := p.wipe(ctx, r); err != nil {
			return fmt.Errorf("%w: %v", model.ErrProvisioning, err)
		}
	}
	for _, path := range r.paths {
		if err := p.provisionPath(path); err != nil {
			r.warn(model.StageProvision, "Failed to provision "+path, fmt.Errorf("%w: %v", model.ErrProvisioning, err))
			continue
		}
		r.info(model.StageProvision, "Provisioned "+path)
	}
	return nil
}

func (p *Pipeline) provisionPath(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	return p.chown(path, p.config.ServiceUID, p.config.ServiceGID)
}

func (p *Pipeline) wipe(ctx context.Context, r *run) error {
	if r.installed {
		r.info(model.StageProvision, "Removing project and volumes before reinstall")
		if err := p.deps.Backend.Down(ctx, r.project(), true); err != nil {
			return fmt.Errorf("teardown: %w", err)
		}
	}
	targets := append([]string{p.config.GetAppDataDir(r.name)}, r.paths...)
	for _, path := range targets {
		if path == filepath.Clean(p.config.GetDataPath()) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("wipe %s: %w", path, err)
		}
	}
	r.info(model.StageProvision, "Wiped existing data")
	return nil
}

// reconcileOwnership hands back paths the backend may have recreated as root.
func (p *Pipeline) reconcileOwnership(ctx context.Context, r *run) error {
	for _, path := range r.paths {
		if !fileExists(path) {
			continue
		}
		if err := p.chown(path, p.config.ServiceUID, p.config.ServiceGID); err != nil {
			r.warn(model.StageOwnership, "Failed to reset ownership of "+path, err)
		}
	}
	return nil
}

func under(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
