package capabilities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name   string
		output string
		marker string
		field  int
		want   string
		wantOK bool
	}{
		{"git", "git version 2.43.0\n", "git version", 2, "2.43.0", true},
		{"docker", "Docker version 28.2.2, build e6534b4\n", "Docker version", 2, "28.2.2", true},
		{"compose", "Docker Compose version v2.36.2\n", "Docker Compose version", 3, "2.36.2", true},
		{"unexpected output", "command not found", "git version", 2, "", false},
		{"missing field", "git version", "git version", 2, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseVersion(tt.output, tt.marker, tt.field)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFactoryProbe(t *testing.T) {
	ok := func(out string) func(context.Context, string, ...string) ([]byte, error) {
		return func(context.Context, string, ...string) ([]byte, error) { return []byte(out), nil }
	}
	fail := func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("exit status 127") }

	f := NewCapabilityFactory()
	f.GetCapabilityByName(CapabilityGit).(*commandCapability).run = ok("git version 2.43.0")
	f.GetCapabilityByName(CapabilityDocker).(*commandCapability).run = ok("Docker version 28.2.2, build e6534b4")
	f.GetCapabilityByName(CapabilityDockerCompose).(*commandCapability).run = fail

	reports := f.Probe(context.Background())

	assert.Equal(t, []Report{
		{Name: CapabilityGit, Available: true, Version: "2.43.0"},
		{Name: CapabilityDocker, Available: true, Version: "28.2.2"},
		{Name: CapabilityDockerCompose, Available: false},
	}, reports)
	assert.Nil(t, f.GetCapabilityByName("kubernetes"))
}
