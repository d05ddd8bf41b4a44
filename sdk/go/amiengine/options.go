package amiengine

import "go.uber.org/zap"

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	profileName string
	configPath  string
	overrides   map[string]float64
	logger      *zap.Logger
	stream      bool
}

// WithProfile layers a named threshold profile over the config.
func WithProfile(name string) Option {
	return func(c *clientConfig) { c.profileName = name }
}

// WithConfigPath sets the path to a config YAML file. Without it the engine
// defaults are used; ~/.amiengine/config.yaml is never read implicitly.
func WithConfigPath(path string) Option {
	return func(c *clientConfig) { c.configPath = path }
}

// WithOverrides sets individual thresholds by key (e.g. "J_MIN"), applied
// after the profile.
func WithOverrides(values map[string]float64) Option {
	return func(c *clientConfig) {
		if c.overrides == nil {
			c.overrides = make(map[string]float64, len(values))
		}
		for k, v := range values {
			c.overrides[k] = v
		}
	}
}

// WithLogger sets the logger the engine writes debug stages to.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithStream makes consecutive decisions one stream: temporal drift and
// hysteresis carry over between calls.
func WithStream() Option {
	return func(c *clientConfig) { c.stream = true }
}
