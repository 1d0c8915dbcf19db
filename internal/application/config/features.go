package config

const (
	// FeatureAutoUpdate lets the update poller start pipelines on its own.
	FeatureAutoUpdate = "auto_update"
	// FeatureHooks enables lifecycle hook execution.
	FeatureHooks = "hooks"
	// FeatureCapabilityToken enables issuing tokens to applications.
	FeatureCapabilityToken = "capability_token"
	// FeatureResourceDefaults injects default memory and CPU limits.
	FeatureResourceDefaults = "resource_defaults"
)

// DefaultFeatureValues defines the default values for each feature
var DefaultFeatureValues = map[string]bool{
	FeatureAutoUpdate:       true,
	FeatureHooks:            true,
	FeatureCapabilityToken:  true,
	FeatureResourceDefaults: true,
}

// IsFeatureEnabled checks if a feature is enabled in the configuration.
func (c *Config) IsFeatureEnabled(feature string) bool {
	value, exists := c.Features[feature]
	if !exists {
		return DefaultFeatureValues[feature]
	}
	return value
}
