package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/varejo/internal/flagx"
	"github.com/dmitrijs2005/varejo/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "15s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	SessionDir         string         `json:"session_dir"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
	WatchRetryInterval timex.Duration `json:"watch_retry_interval"`
}

// parseJson overlays Config with values loaded from a JSON file. Fields
// missing from the file keep their current value. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFilePath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.SessionDir != "" {
		cfg.SessionDir = jc.SessionDir
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.WatchRetryInterval.Duration > 0 {
		cfg.WatchRetryInterval = jc.WatchRetryInterval.Duration
	}
}
