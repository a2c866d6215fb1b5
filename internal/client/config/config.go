package config

import "time"

// Config holds runtime settings for the HealthChat CLI.
//
// Fields:
//   - ServerURL: base URL of the HealthChat HTTP API; the WebSocket endpoint
//     is derived from it.
//   - RequestTimeout: deadline for plain HTTP calls. Streaming replies are
//     not bounded by it.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
