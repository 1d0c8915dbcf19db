package network

import (
	"context"
	"errors"
	"testing"

	networktypes "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	existing  []string
	createErr error
	created   []networktypes.CreateOptions
	names     []string
}

func (f *fakeClient) NetworkList(_ context.Context, opts networktypes.ListOptions) ([]networktypes.Summary, error) {
	var out []networktypes.Summary
	for _, name := range f.existing {
		out = append(out, networktypes.Summary{Name: name})
	}
	return out, nil
}

func (f *fakeClient) NetworkCreate(_ context.Context, name string, opts networktypes.CreateOptions) (networktypes.CreateResponse, error) {
	if f.createErr != nil {
		return networktypes.CreateResponse{}, f.createErr
	}
	f.names = append(f.names, name)
	f.created = append(f.created, opts)
	return networktypes.CreateResponse{ID: "n1"}, nil
}

func TestEnsureNetwork(t *testing.T) {
	tests := []struct {
		name       string
		client     *fakeClient
		wantCreate bool
		wantErr    bool
	}{
		{name: "creates missing network", client: &fakeClient{}, wantCreate: true},
		{name: "substring match is not a match", client: &fakeClient{existing: []string{"appdeck-old"}}, wantCreate: true},
		{name: "existing network", client: &fakeClient{existing: []string{"appdeck"}}},
		{name: "lost create race", client: &fakeClient{createErr: errdefs.Conflict(errors.New("network with name appdeck already exists"))}},
		{name: "create failure", client: &fakeClient{createErr: errors.New("daemon down")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRepository(tt.client).EnsureNetwork(context.Background(), "appdeck")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantCreate {
				require.Equal(t, []string{"appdeck"}, tt.client.names)
				assert.Equal(t, "bridge", tt.client.created[0].Driver)
				assert.Equal(t, "true", tt.client.created[0].Labels[ManagedLabel])
			} else {
				assert.Empty(t, tt.client.names)
			}
		})
	}
}
