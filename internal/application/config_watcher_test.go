package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"appdeck/internal/application/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdeck.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"info"}`), 0o644))

	changes := make(chan *config.Config, 4)
	w := NewConfigWatcher(path, func(cfg *config.Config) { changes <- cfg })
	w.SetDebounce(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"debug"}`), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.LogLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestConfigWatcherIgnoresInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appdeck.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	changes := make(chan *config.Config, 4)
	w := NewConfigWatcher(path, func(cfg *config.Config) { changes <- cfg })

	w.handleFileChange(path)
	require.Len(t, changes, 1)
	<-changes

	require.NoError(t, os.WriteFile(path, []byte(`{"max_concurrent_builds": -1}`), 0o644))
	w.handleFileChange(path)
	assert.Empty(t, changes)
}
