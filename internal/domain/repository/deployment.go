package repository

import (
	"context"
	"time"

	"appdeck/internal/domain/model"
)

// Project identifies a deployment on the backend.
type Project struct {
	Name string
	Dir  string
	// EnvFile is the env file passed to the backend, relative to Dir. May be empty.
	EnvFile string
}

// DeploymentBackend applies descriptors and reports runtime state.
type DeploymentBackend interface {
	// Apply creates or updates the project. Failures are *model.ApplyFailure
	// with Timeout set when the timeout budget was exhausted.
	Apply(ctx context.Context, project Project, timeout time.Duration) error

	// Start starts an already applied project.
	Start(ctx context.Context, project Project) error

	// Stop stops the project's containers without removing them.
	Stop(ctx context.Context, project Project) error

	// Down removes the project's containers and, when removeVolumes is set, its volumes.
	Down(ctx context.Context, project Project, removeVolumes bool) error

	// Status returns the runtime view of one project.
	Status(ctx context.Context, name string) (model.ContainerApp, error)

	// Inventory returns the runtime view of every project on the host.
	Inventory(ctx context.Context) ([]model.ContainerApp, error)
}
