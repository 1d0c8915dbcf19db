package capabilities

// NewDockerCapability creates a new Docker capability
func NewDockerCapability() Capability {
	return &commandCapability{
		name:    CapabilityDocker,
		command: []string{"docker", "--version"},
		marker:  "Docker version",
		field:   2,
		run:     runCommand,
	}
}

// NewDockerComposeCapability creates a new Docker Compose capability. Only the
// compose plugin is checked since the deployment backend invokes "docker compose".
func NewDockerComposeCapability() Capability {
	return &commandCapability{
		name:    CapabilityDockerCompose,
		command: []string{"docker", "compose", "version"},
		marker:  "Docker Compose version",
		field:   3,
		run:     runCommand,
	}
}
