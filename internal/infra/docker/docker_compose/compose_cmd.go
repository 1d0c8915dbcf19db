package docker_compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"
)

// overrideFile is picked up next to the descriptor when present.
const overrideFile = "compose.override.yml"

type runner func(ctx context.Context, dir string, args ...string) (string, error)

// Apply runs `docker compose up -d` within timeout. Failures are
// *model.ApplyFailure; Timeout is set when the budget ran out.
func (r *composeRepository) Apply(ctx context.Context, project repository.Project, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	output, err := r.compose(ctx, project, "up", "-d", "--remove-orphans")
	if err == nil {
		log.Info("Project applied", "project", project.Name, "duration", time.Since(started).Round(time.Millisecond))
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &model.ApplyFailure{Timeout: true, Output: output, Err: fmt.Errorf("no result within %s", timeout)}
	}
	return &model.ApplyFailure{Output: output, Err: fmt.Errorf("%w: %s", err, lastLines(output, 10))}
}

func (r *composeRepository) Start(ctx context.Context, project repository.Project) error {
	output, err := r.compose(ctx, project, "start")
	if err != nil {
		return fmt.Errorf("docker compose start failed: %w: %s", err, lastLines(output, 10))
	}
	return nil
}

func (r *composeRepository) Stop(ctx context.Context, project repository.Project) error {
	output, err := r.compose(ctx, project, "stop")
	if err != nil {
		return fmt.Errorf("docker compose stop failed: %w: %s", err, lastLines(output, 10))
	}
	return nil
}

// Down removes the project. It works from the project name alone when the
// project directory is already gone.
func (r *composeRepository) Down(ctx context.Context, project repository.Project, removeVolumes bool) error {
	args := []string{"down", "--remove-orphans"}
	if removeVolumes {
		args = append(args, "--volumes")
	}
	output, err := r.compose(ctx, project, args...)
	if err != nil {
		return fmt.Errorf("docker compose down failed: %w: %s", err, lastLines(output, 10))
	}
	return nil
}

// compose runs a compose subcommand for project with the project name, env
// file and descriptor files resolved from its directory.
func (r *composeRepository) compose(ctx context.Context, project repository.Project, args ...string) (string, error) {
	full := []string{"-p", project.Name}
	dir := ""
	if dirExists(project.Dir) {
		dir = project.Dir
		if project.EnvFile != "" && fileExists(filepath.Join(project.Dir, project.EnvFile)) {
			full = append(full, "--env-file", project.EnvFile)
		}
		full = append(full, buildComposeFileArgs(detectComposeFiles(project.Dir))...)
	}
	full = append(full, args...)
	return r.run(ctx, dir, full...)
}

// detectComposeFiles returns the descriptor plus its override, when both
// exist. A lone descriptor is found by docker compose itself.
func detectComposeFiles(appDir string) []string {
	compose := filepath.Join(appDir, config.DescriptorFile)
	override := filepath.Join(appDir, overrideFile)
	if fileExists(compose) && fileExists(override) {
		return []string{compose, override}
	}
	return nil
}

// buildComposeFileArgs converts file list into `-f file` CLI arguments.
func buildComposeFileArgs(files []string) []string {
	var args []string
	for _, f := range files {
		args = append(args, "-f", filepath.Base(f))
	}
	return args
}

// runDockerCompose executes `docker compose` with given args in dir.
func runDockerCompose(ctx context.Context, dir string, args ...string) (string, error) {
	fullCmd := append([]string{"compose"}, args...)
	cmd := exec.CommandContext(ctx, "docker", fullCmd...)
	cmd.Dir = dir
	// Let compose finish its own cleanup after cancellation.
	cmd.Cancel = func() error { return cmd.Process.Signal(interruptSignal) }
	cmd.WaitDelay = 10 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		log.Error("docker compose command failed", "dir", dir, "args", fullCmd, "output", lastLines(out.String(), 20), "error", err)
		return out.String(), fmt.Errorf("docker compose %v failed: %w", args, err)
	}
	log.Debug("docker compose executed", "dir", dir, "args", fullCmd, "output", out.String())
	return out.String(), nil
}
