package docker_compose

import (
	"context"
	"fmt"
	"sort"

	"appdeck/internal/domain/model"
	"appdeck/internal/infra/docker"
	"appdeck/pkg/log"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

// Status returns the runtime view of one compose project.
func (r *composeRepository) Status(ctx context.Context, name string) (model.ContainerApp, error) {
	log.Debug("Getting Docker Compose project status", "project", name)

	filterArgs := filters.NewArgs()
	filterArgs.Add("label", fmt.Sprintf("%s=%s", docker.ProjectLabel, name))

	dockerContainers, err := r.client.ContainerList(ctx, container.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		log.Error("Failed to list containers for project", "project", name, "error", err)
		return model.ContainerApp{}, fmt.Errorf("failed to list containers: %w", err)
	}

	app := model.ContainerApp{
		Name:       name,
		Containers: make([]model.Container, 0, len(dockerContainers)),
	}
	for _, c := range dockerContainers {
		app.Containers = append(app.Containers, docker.MapContainer(c))
	}

	// No containers: a stopped project still has its directory.
	if len(app.Containers) == 0 {
		if dirExists(r.config.GetAppDir(name)) {
			app.StatusCode = model.ContainerStatusStopped
		} else {
			app.StatusCode = model.ContainerStatusUnknown
		}
	} else {
		app.StatusCode = docker.AggregateStatus(app.Containers)
	}

	log.Debug("Docker Compose project status retrieved", "project", name, "containers", len(app.Containers), "status_code", app.StatusCode)
	return app, nil
}

// Inventory groups every compose-labelled container on the host by project.
func (r *composeRepository) Inventory(ctx context.Context) ([]model.ContainerApp, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("label", docker.ProjectLabel)

	dockerContainers, err := r.client.ContainerList(ctx, container.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		log.Error("Failed to list containers for all projects", "error", err)
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	grouped := make(map[string][]model.Container)
	for _, c := range dockerContainers {
		project, ok := c.Labels[docker.ProjectLabel]
		if !ok {
			continue
		}
		grouped[project] = append(grouped[project], docker.MapContainer(c))
	}

	apps := make([]model.ContainerApp, 0, len(grouped))
	for name, containers := range grouped {
		apps = append(apps, model.ContainerApp{
			Name:       name,
			StatusCode: docker.AggregateStatus(containers),
			Containers: containers,
		})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })

	log.Debug("Docker Compose inventory retrieved", "projects", len(apps))
	return apps, nil
}
