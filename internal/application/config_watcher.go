package application

import (
	"context"
	"time"

	"appdeck/internal/application/config"
	"appdeck/pkg/files"
	log "appdeck/pkg/log"
)

// ConfigWatcher watches a configuration file for changes
type ConfigWatcher struct {
	fileWatcher *files.FileWatcher
	onChange    func(*config.Config)
}

// NewConfigWatcher creates a new configuration file watcher
func NewConfigWatcher(configPath string, onChange func(*config.Config)) *ConfigWatcher {
	cw := &ConfigWatcher{
		onChange: onChange,
	}

	cw.fileWatcher = files.NewFileWatcher(configPath, cw.handleFileChange)

	return cw
}

// Start begins watching the configuration file for changes
func (w *ConfigWatcher) Start(ctx context.Context) error {
	log.Info("Config watcher starting", "path", w.fileWatcher.GetFilePath())
	return w.fileWatcher.Start(ctx)
}

// Stop stops watching the configuration file
func (w *ConfigWatcher) Stop() {
	log.Info("Config watcher stopping")
	w.fileWatcher.Stop()
}

// handleFileChange loads the new configuration. An invalid file is logged
// and ignored so the running configuration stays in effect.
func (w *ConfigWatcher) handleFileChange(filePath string) {
	log.Info("Configuration file changed, reloading", "path", filePath)

	newConfig, err := config.LoadConfig(filePath)
	if err != nil {
		log.Error("Failed to load new configuration", "error", err)
		return
	}

	if w.onChange != nil {
		w.onChange(newConfig)
	}
}

// SetDebounce sets how long bursts of file events are coalesced
func (w *ConfigWatcher) SetDebounce(d time.Duration) {
	w.fileWatcher.SetDebounce(d)
}

// ApplyLogSettings re-initialises logging from cfg. It is the reload action
// for settings that are safe to change at runtime.
func ApplyLogSettings(cfg *config.Config) {
	log.InitLog(cfg.LogLevel, cfg.LogFormat)
	log.Info("Log settings applied", "level", cfg.LogLevel, "format", cfg.LogFormat)
}
