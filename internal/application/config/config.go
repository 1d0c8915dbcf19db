package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"appdeck/pkg/log"
	"appdeck/pkg/yaml"

	"github.com/go-playground/validator/v10"
)

var (
	basePath string
	dataPath string
)

const (
	// defaultBasePath is the root for apps, sources, the record store and secrets.
	defaultBasePath = "/opt/appdeck"
	// defaultDataPath is the managed data root host volumes are provisioned under.
	defaultDataPath = "/srv/appdeck"

	defaultListenAddress       = "127.0.0.1:8420"
	defaultMaxConcurrentBuilds = 2
	defaultSettleDelay         = 5 * time.Second
	defaultApplyTimeout        = 10 * time.Minute
	defaultApplyTimeoutFactor  = 1.5
	defaultFetchTimeout        = 5 * time.Minute
	defaultBuildTimeout        = 30 * time.Minute
	defaultHookTimeout         = 10 * time.Minute
	defaultTokenTTL            = 365 * 24 * time.Hour
	defaultUpdateCheckInterval = time.Minute
	defaultSharedNetwork       = "appdeck"

	appsFolder    = "apps"
	sourcesFolder = "sources"
	storeFolder   = "store"
	secretsFolder = ".secrets"
	tokenKeyFile  = "token.key"

	// DescriptorFile is the file name the deployment backend reads.
	DescriptorFile = "compose.yml"
	// EnvFile holds values injected at apply time, such as the capability token.
	EnvFile = ".appdeck.env"
)

// Duration is a time.Duration that reads "90s"-style strings or plain
// seconds from JSON and YAML.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value * float64(time.Second)))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the application configuration
type Config struct {
	Features map[string]bool `json:"features"`
	// BasePath is the root directory for rendered apps, fetched sources, the record store and secrets.
	BasePath string `json:"base_path,omitempty" validate:"required"`
	// DataPath is the managed data root; bind mounts under it are provisioned by the pipeline.
	DataPath string `json:"data_path,omitempty" validate:"required"`
	// LogLevel specifies the minimum log level to output (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	// LogFormat is "json" or "text".
	LogFormat     string `json:"log_format,omitempty" validate:"omitempty,oneof=json text"`
	ListenAddress string `json:"listen_address,omitempty" validate:"required,hostname_port"`

	MaxConcurrentBuilds int      `json:"max_concurrent_builds,omitempty" validate:"gte=1"`
	SettleDelay         Duration `json:"settle_delay,omitempty" validate:"gte=0"`
	ApplyTimeout        Duration `json:"apply_timeout,omitempty" validate:"gt=0"`
	ApplyTimeoutFactor  float64  `json:"apply_timeout_factor,omitempty" validate:"gt=1"`
	FetchTimeout        Duration `json:"fetch_timeout,omitempty" validate:"gt=0"`
	BuildTimeout        Duration `json:"build_timeout,omitempty" validate:"gt=0"`
	HookTimeout         Duration `json:"hook_timeout,omitempty" validate:"gt=0"`

	// ServiceUID and ServiceGID own provisioned data directories.
	ServiceUID int `json:"service_uid,omitempty" validate:"gte=0"`
	ServiceGID int `json:"service_gid,omitempty" validate:"gte=0"`

	SharedNetwork   string `json:"shared_network,omitempty"`
	DefaultMemLimit string `json:"default_mem_limit,omitempty"`
	DefaultCPUs     string `json:"default_cpus,omitempty" validate:"omitempty,numeric"`

	TokenTTL            Duration `json:"token_ttl,omitempty" validate:"gt=0"`
	UpdateCheckInterval Duration `json:"update_check_interval,omitempty" validate:"gt=0"`
}

// prepareConfig ensures the configuration is valid by applying defaults and validating features
func prepareConfig(cfg *Config) {
	if cfg.BasePath == "" {
		cfg.BasePath = defaultBasePath
	}
	if cfg.DataPath == "" {
		cfg.DataPath = defaultDataPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if cfg.MaxConcurrentBuilds == 0 {
		cfg.MaxConcurrentBuilds = defaultMaxConcurrentBuilds
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = Duration(defaultSettleDelay)
	}
	if cfg.ApplyTimeout == 0 {
		cfg.ApplyTimeout = Duration(defaultApplyTimeout)
	}
	if cfg.ApplyTimeoutFactor == 0 {
		cfg.ApplyTimeoutFactor = defaultApplyTimeoutFactor
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = Duration(defaultFetchTimeout)
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = Duration(defaultBuildTimeout)
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = Duration(defaultHookTimeout)
	}
	if cfg.SharedNetwork == "" {
		cfg.SharedNetwork = defaultSharedNetwork
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = Duration(defaultTokenTTL)
	}
	if cfg.UpdateCheckInterval == 0 {
		cfg.UpdateCheckInterval = Duration(defaultUpdateCheckInterval)
	}

	// Validate and merge features
	cfg.Features = validateAndMergeFeatures(cfg.Features)
}

// validateAndMergeFeatures ensures only supported features are used and merges with defaults
func validateAndMergeFeatures(configFeatures map[string]bool) map[string]bool {
	if configFeatures == nil {
		configFeatures = make(map[string]bool)
	}

	mergedFeatures := make(map[string]bool)
	for feature, defaultValue := range DefaultFeatureValues {
		if value, exists := configFeatures[feature]; exists {
			mergedFeatures[feature] = value
		} else {
			mergedFeatures[feature] = defaultValue
		}
	}

	return mergedFeatures
}

func NewConfig() *Config {
	config := &Config{
		Features: make(map[string]bool),
	}

	// Apply build-time overrides or defaults
	if basePath != "" {
		config.BasePath = basePath
	} else {
		config.BasePath = defaultBasePath
	}
	if dataPath != "" {
		config.DataPath = dataPath
	} else {
		config.DataPath = defaultDataPath
	}

	return config
}

// LoadConfig loads the configuration from a JSON or YAML file. A missing file
// yields the defaults; an unreadable or invalid one is an error.
func LoadConfig(configPath string) (*Config, error) {
	config := NewConfig()
	config.Features = validateAndMergeFeatures(nil)

	if _, err := os.Stat(configPath); err == nil {
		if err := readConfigFile(configPath, config); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	prepareConfig(config)
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func readConfigFile(configPath string, config *Config) error {
	switch {
	case isYAMLPath(configPath):
		if err := yaml.ReadFile(configPath, config); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	default:
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints after defaults are applied.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SaveConfig saves the configuration as YAML when the path ends in .yaml or
// .yml and as JSON otherwise.
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return log.Errorf("failed to create config directory: %w", err)
	}

	prepareConfig(config)

	configToSave := *config

	// Only persist features that differ from their defaults
	filteredFeatures := make(map[string]bool)
	for feature, value := range config.Features {
		if defaultValue, exists := DefaultFeatureValues[feature]; !exists || value != defaultValue {
			filteredFeatures[feature] = value
		}
	}
	configToSave.Features = filteredFeatures

	data, err := json.MarshalIndent(configToSave, "", "  ")
	if err != nil {
		return log.Errorf("failed to marshal config: %w", err)
	}
	if isYAMLPath(configPath) {
		if data, err = yaml.JSONToYAML(data); err != nil {
			return log.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return log.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// buildPath constructs a file path from base path and components
func (c *Config) buildPath(components ...string) string {
	parts := append([]string{c.BasePath}, components...)
	return filepath.Join(parts...)
}

// GetAppsPath is where each application's final descriptor lives, one
// directory per display name.
func (c *Config) GetAppsPath() string {
	return c.buildPath(appsFolder)
}

// GetAppDir returns the directory the deployment backend runs name from.
func (c *Config) GetAppDir(name string) string {
	return c.buildPath(appsFolder, name)
}

// GetSourcesPath is where source-controlled applications are checked out.
func (c *Config) GetSourcesPath() string {
	return c.buildPath(sourcesFolder)
}

// GetSourceDir returns the checkout directory for an application id.
func (c *Config) GetSourceDir(appID string) string {
	return c.buildPath(sourcesFolder, appID)
}

func (c *Config) GetStorePath() string {
	return c.buildPath(storeFolder)
}

func (c *Config) GetSecretsPath() string {
	return c.buildPath(secretsFolder)
}

// GetTokenKeyPath is the HMAC key used to sign capability tokens.
func (c *Config) GetTokenKeyPath() string {
	return c.buildPath(secretsFolder, tokenKeyFile)
}

func (c *Config) GetDataPath() string {
	return filepath.Clean(c.DataPath)
}

// GetAppDataDir is the managed data directory of one application.
func (c *Config) GetAppDataDir(name string) string {
	return filepath.Join(c.GetDataPath(), name)
}
