package builder

import (
	"context"
	"errors"
	"testing"

	"appdeck/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArguments(t *testing.T) {
	tests := []struct {
		name string
		req  repository.BuildRequest
		want []string
	}{
		{
			name: "default dockerfile",
			req:  repository.BuildRequest{ContextDir: "/src/app", Tag: "appdeck/app:abc"},
			want: []string{"build", "--pull", "-t", "appdeck/app:abc", "/src/app"},
		},
		{
			name: "custom dockerfile",
			req:  repository.BuildRequest{ContextDir: "/src/app/web", Dockerfile: "docker/Dockerfile.prod", Tag: "appdeck/app-web:abc"},
			want: []string{"build", "--pull", "-t", "appdeck/app-web:abc", "-f", "/src/app/web/docker/Dockerfile.prod", "/src/app/web"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			b := &DockerBuilder{run: func(_ context.Context, args ...string) (string, error) {
				got = args
				return "", nil
			}}
			ref, err := b.Build(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.req.Tag, ref)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFailureCarriesOutputTail(t *testing.T) {
	b := &DockerBuilder{run: func(context.Context, ...string) (string, error) {
		return "step 1\nstep 2\nERROR: failed to solve\n", errors.New("exit status 1")
	}}
	_, err := b.Build(context.Background(), repository.BuildRequest{ContextDir: "/src", Tag: "x:y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to solve")
}

func TestBuildRequiresTag(t *testing.T) {
	_, err := NewDockerBuilder().Build(context.Background(), repository.BuildRequest{ContextDir: "/src"})
	assert.Error(t, err)
}
