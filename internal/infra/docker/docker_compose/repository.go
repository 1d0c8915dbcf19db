// Package docker_compose implements the deployment backend on top of the
// "docker compose" CLI and the Docker engine API.
package docker_compose

import (
	"context"

	"appdeck/internal/application/config"
	"appdeck/internal/domain/repository"
	"appdeck/internal/infra/docker/network"

	"github.com/docker/docker/api/types/container"
)

// Engine is the subset of the Docker client the backend needs.
// *client.Client satisfies it.
type Engine interface {
	network.Client
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// composeRepository implements repository.DeploymentBackend.
//
// The implementation is split across several files in this package:
//   - repository.go   struct definition and constructor
//   - compose_cmd.go  lifecycle operations wrapping `docker compose`
//   - status.go       runtime status from the engine API
//   - utils.go        small helpers
type composeRepository struct {
	client   Engine
	networks *network.Repository
	config   *config.Config
	run      runner
}

var _ repository.DeploymentBackend = (*composeRepository)(nil)

// NewComposeRepository creates a Docker Compose backed DeploymentBackend.
// The returned value also implements EnsureNetwork.
func NewComposeRepository(cfg *config.Config, dockerClient Engine) repository.DeploymentBackend {
	return &composeRepository{
		client:   dockerClient,
		networks: network.NewRepository(dockerClient),
		config:   cfg,
		run:      runDockerCompose,
	}
}

// EnsureNetwork creates the shared network projects attach to.
func (r *composeRepository) EnsureNetwork(ctx context.Context, name string) error {
	return r.networks.EnsureNetwork(ctx, name)
}
