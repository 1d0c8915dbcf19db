package capabilities

// NewGitCapability creates a new Git capability
func NewGitCapability() Capability {
	return &commandCapability{
		name:    CapabilityGit,
		command: []string{"git", "--version"},
		marker:  "git version",
		field:   2,
		run:     runCommand,
	}
}
