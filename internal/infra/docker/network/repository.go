package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/docker/docker/api/types/filters"
	networktypes "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"

	"appdeck/pkg/log"
)

// ManagedLabel marks networks created by appdeck.
const ManagedLabel = "io.appdeck.managed"

// Client is the subset of the Docker client used for networks.
type Client interface {
	NetworkList(ctx context.Context, options networktypes.ListOptions) ([]networktypes.Summary, error)
	NetworkCreate(ctx context.Context, name string, options networktypes.CreateOptions) (networktypes.CreateResponse, error)
}

// Repository ensures shared bridge networks exist.
type Repository struct {
	client Client
	mu     sync.Mutex
}

// NewRepository creates a Repository using the provided Docker client.
// Logs a fatal error and exits the program if the client is nil.
func NewRepository(dockerClient Client) *Repository {
	if dockerClient == nil {
		log.Fatalf("[Network] docker client is nil, repository cannot be created")
	}
	return &Repository{client: dockerClient}
}

// EnsureNetwork creates the named bridge network unless it already exists.
func (r *Repository) EnsureNetwork(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	networks, err := r.client.NetworkList(ctx, networktypes.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		log.Error("[Network] failed to list networks", "error", err)
		return fmt.Errorf("list networks: %w", err)
	}
	// The name filter matches substrings.
	for _, n := range networks {
		if n.Name == name {
			return nil
		}
	}

	_, err = r.client.NetworkCreate(ctx, name, networktypes.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{ManagedLabel: "true"},
	})
	if err != nil {
		if errdefs.IsConflict(err) {
			return nil
		}
		log.Error("[Network] failed to create network", "network_name", name, "error", err)
		return fmt.Errorf("create network: %w", err)
	}

	log.Info("[Network] network created", "network_name", name)
	return nil
}
