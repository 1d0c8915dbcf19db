// Package builder builds application images with the docker CLI.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"appdeck/internal/domain/repository"
	"appdeck/pkg/log"
)

type runner func(ctx context.Context, args ...string) (string, error)

// DockerBuilder implements repository.ImageBuilder with "docker build".
type DockerBuilder struct {
	run runner
}

var _ repository.ImageBuilder = (*DockerBuilder)(nil)

func NewDockerBuilder() *DockerBuilder {
	return &DockerBuilder{run: runDocker}
}

// Build builds req.ContextDir and returns the tag. The Dockerfile path is
// relative to the context, as in a compose build section.
func (b *DockerBuilder) Build(ctx context.Context, req repository.BuildRequest) (string, error) {
	if req.Tag == "" {
		return "", errors.New("image tag is required")
	}
	args := []string{"build", "--pull", "-t", req.Tag}
	if req.Dockerfile != "" {
		args = append(args, "-f", filepath.Join(req.ContextDir, req.Dockerfile))
	}
	args = append(args, req.ContextDir)

	log.Info("Building image", "tag", req.Tag, "context", req.ContextDir)
	if out, err := b.run(ctx, args...); err != nil {
		return "", fmt.Errorf("%w: %s", err, lastLines(out, 10))
	}
	return req.Tag, nil
}

func runDocker(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out.String(), fmt.Errorf("docker build timed out: %w", ctx.Err())
		}
		return out.String(), fmt.Errorf("docker build: %w", err)
	}
	return out.String(), nil
}

// lastLines keeps the tail of build output for error messages.
func lastLines(out string, n int) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
