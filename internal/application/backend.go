package application

import (
	"appdeck/internal/application/config"
	"appdeck/internal/domain/repository"
	"appdeck/internal/infra/docker/docker_compose"

	"github.com/docker/docker/client"
)

// NewDeploymentBackend returns the Docker Compose backend talking to the
// engine configured by the standard DOCKER_* environment.
func NewDeploymentBackend(cfg *config.Config) (repository.DeploymentBackend, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return docker_compose.NewComposeRepository(cfg, dockerClient), nil
}
