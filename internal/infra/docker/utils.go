package docker

import (
	"strings"

	"appdeck/internal/domain/model"

	"github.com/docker/docker/api/types/container"
)

// Compose labels set on every container of a project.
const (
	ProjectLabel = "com.docker.compose.project"
	ServiceLabel = "com.docker.compose.service"
)

// MapDockerStateToContainerStatus maps Docker container state to ContainerStatusCode
func MapDockerStateToContainerStatus(state string) model.ContainerStatusCode {
	switch strings.ToLower(state) {
	case "running":
		return model.ContainerStatusActive
	case "exited", "stopped", "created":
		return model.ContainerStatusStopped
	case "restarting":
		return model.ContainerStatusRestarting
	case "paused":
		return model.ContainerStatusIdle
	case "dead", "oomkilled":
		return model.ContainerStatusProblematic
	default:
		return model.ContainerStatusUnknown
	}
}

// MapDockerPortsToContainerPorts converts published Docker ports to ContainerPort slice
func MapDockerPortsToContainerPorts(dockerPorts []container.Port) []model.ContainerPort {
	var ports []model.ContainerPort
	for _, dockerPort := range dockerPorts {
		if dockerPort.PublicPort > 0 {
			ports = append(ports, model.ContainerPort{
				Port:     int(dockerPort.PublicPort),
				Protocol: dockerPort.Type,
			})
		}
	}
	return ports
}

// MapContainer converts a container list entry into the runtime model.
func MapContainer(c container.Summary) model.Container {
	name := c.ID
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}
	out := model.Container{
		ID:         c.ID,
		Name:       name,
		Service:    c.Labels[ServiceLabel],
		StatusCode: MapDockerStateToContainerStatus(c.State),
		Ports:      MapDockerPortsToContainerPorts(c.Ports),
	}
	if out.StatusCode == model.ContainerStatusProblematic {
		out.Error = "Container in problematic state: " + c.Status
	}
	return out
}

// AggregateStatus derives a project status from its containers.
func AggregateStatus(containers []model.Container) model.ContainerStatusCode {
	if len(containers) == 0 {
		return model.ContainerStatusStopped
	}

	var active, idle, stopped, restarting, problematic int
	for _, c := range containers {
		switch c.StatusCode {
		case model.ContainerStatusActive:
			active++
		case model.ContainerStatusIdle:
			idle++
		case model.ContainerStatusStopped:
			stopped++
		case model.ContainerStatusRestarting:
			if c.ExitCode != 0 {
				problematic++
			} else {
				restarting++
			}
		default:
			problematic++
		}
	}

	switch {
	case problematic > 0:
		return model.ContainerStatusProblematic
	case restarting > 0:
		return model.ContainerStatusRestarting
	case active > 0 && stopped == 0 && idle == 0:
		return model.ContainerStatusActive
	case stopped > 0 && active == 0 && idle == 0:
		return model.ContainerStatusStopped
	case idle > 0 || (active > 0 && stopped > 0):
		return model.ContainerStatusIdle
	}
	return model.ContainerStatusUnknown
}
