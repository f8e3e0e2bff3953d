package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"glowhost/internal/common/fsutil"
	"glowhost/pkg/types"
)

// Config holds glowhostd's own startup parameters: where it listens, which
// devices to bring up, and the Host Manager tunables from the host config
// table. Zero values mean "unspecified" and are replaced by defaults in
// main and by host.DefaultConfig.
type Config struct {
	Addr              string              `json:"addr" yaml:"addr" toml:"addr"`
	Devices           []types.DeviceConfig `json:"devices" yaml:"devices" toml:"devices"`
	ExecutorThreads   int                 `json:"executor_threads" yaml:"executor_threads" toml:"executor_threads"`
	MaxActiveRequests int                 `json:"max_active_requests" yaml:"max_active_requests" toml:"max_active_requests"`
	MaxQueueSize      int                 `json:"max_queue_size" yaml:"max_queue_size" toml:"max_queue_size"`
}

// Load reads a configuration file based on its extension. Supports
// .yaml/.yml, .json, .toml. A leading '~' in path is expanded to the
// caller's home directory via fsutil.ExpandHome.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
