package config

import "time"

// Config holds runtime settings for the varejo CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - SessionDir: directory keeping the session file between invocations.
//   - RequestTimeout: deadline applied to every unary call.
//   - WatchRetryInterval: pause before reopening a broken permission watch.
type Config struct {
	ServerEndpointAddr string
	SessionDir         string
	RequestTimeout     time.Duration
	WatchRetryInterval time.Duration
}

// FlagNames lists every command-line flag consumed by this package, so the
// command parser can ignore them.
var FlagNames = []string{"-a", "-d", "-t", "-c", "-config"}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionDir = ".varejo"
	c.RequestTimeout = 15 * time.Second
	c.WatchRetryInterval = 30 * time.Second
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
