package model

type ContainerStatusCode int8

const (
	ContainerStatusUnknown     ContainerStatusCode = 0
	ContainerStatusActive      ContainerStatusCode = 1
	ContainerStatusIdle        ContainerStatusCode = 2
	ContainerStatusRestarting  ContainerStatusCode = 3
	ContainerStatusProblematic ContainerStatusCode = 4
	ContainerStatusStopped     ContainerStatusCode = 5
)

// ContainerApp is the runtime view of one deployment project.
type ContainerApp struct {
	Name       string              `json:"name"`
	StatusCode ContainerStatusCode `json:"status_code"`
	Containers []Container         `json:"containers"`
}

// Running reports whether the project counts as running.
func (a ContainerApp) Running() bool {
	switch a.StatusCode {
	case ContainerStatusActive, ContainerStatusIdle, ContainerStatusRestarting:
		return true
	}
	return false
}

type Container struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Service    string              `json:"service,omitempty"`
	StatusCode ContainerStatusCode `json:"status_code"`
	ExitCode   int                 `json:"exit_code"`
	Error      string              `json:"error,omitempty"`
	Ports      []ContainerPort     `json:"ports,omitempty"`
}

type ContainerPort struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}
