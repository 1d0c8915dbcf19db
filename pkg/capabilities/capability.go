package capabilities

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Capability names
const (
	CapabilityGit           = "git"
	CapabilityDocker        = "docker"
	CapabilityDockerCompose = "docker-compose"
)

const checkTimeout = 5 * time.Second

// Capability represents a host tool the pipeline depends on.
type Capability interface {
	// Name returns the name of the capability
	Name() string
	// Version returns the detected version, or the empty string before detection
	Version() string
	// IsAvailable checks the host and records the version on success
	IsAvailable(ctx context.Context) bool
}

// SystemInfo represents basic system information
type SystemInfo struct {
	OS   string
	Arch string
}

// GetSystemInfo returns the current system information
func GetSystemInfo() SystemInfo {
	return SystemInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// Report is the result of probing one capability.
type Report struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

// CapabilityFactory creates and returns all capabilities the pipeline relies on
type CapabilityFactory struct {
	capabilities []Capability
}

// NewCapabilityFactory creates a new capability factory
func NewCapabilityFactory() *CapabilityFactory {
	return &CapabilityFactory{
		capabilities: []Capability{
			NewGitCapability(),
			NewDockerCapability(),
			NewDockerComposeCapability(),
		},
	}
}

// GetAllCapabilities returns all capabilities
func (f *CapabilityFactory) GetAllCapabilities() []Capability {
	return f.capabilities
}

// GetCapabilityByName returns a capability by its name
func (f *CapabilityFactory) GetCapabilityByName(name string) Capability {
	for _, c := range f.capabilities {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Probe checks every capability and returns one report per capability.
func (f *CapabilityFactory) Probe(ctx context.Context) []Report {
	reports := make([]Report, 0, len(f.capabilities))
	for _, c := range f.capabilities {
		available := c.IsAvailable(ctx)
		reports = append(reports, Report{
			Name:      c.Name(),
			Available: available,
			Version:   c.Version(),
		})
	}
	return reports
}

// commandCapability checks a tool by running it with a version flag and
// picking a whitespace-separated field from the first output line.
type commandCapability struct {
	name    string
	command []string
	marker  string
	field   int
	version string
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (c *commandCapability) Name() string { return c.name }

func (c *commandCapability) Version() string { return c.version }

func (c *commandCapability) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	output, err := c.run(ctx, c.command[0], c.command[1:]...)
	if err != nil {
		return false
	}
	version, ok := parseVersion(string(output), c.marker, c.field)
	if !ok {
		return false
	}
	c.version = version
	return true
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func parseVersion(output, marker string, field int) (string, bool) {
	line := strings.TrimSpace(strings.SplitN(output, "\n", 2)[0])
	if !strings.Contains(line, marker) {
		return "", false
	}
	parts := strings.Fields(line)
	if field >= len(parts) {
		return "", true
	}
	return strings.TrimPrefix(strings.TrimSuffix(parts[field], ","), "v"), true
}
