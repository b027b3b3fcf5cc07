// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	vxerrors "github.com/sbalabanov/vx/internal/errors"
)

// FileName is the config file inside the repository data directory.
const FileName = "config.json"

// EnvLogLevel overrides log_level when set.
const EnvLogLevel = "VX_LOG_LEVEL"

type Config struct {
	LogLevel string `json:"log_level"` // debug, info, warn, error
	// Concurrent subtree builds during commit and status
	Workers int `json:"workers"`

	Storage struct {
		SyncWrites bool `json:"sync_writes"`
	} `json:"storage"`

	Objects struct {
		CacheSize   int `json:"cache_size"`
		Compression struct {
			MinSize int `json:"min_size"`
			Level   int `json:"level"`
		} `json:"compression"`
	} `json:"objects"`

	// Base names or filepath.Match patterns left out of snapshots
	Ignore []string `json:"ignore"`
}

func Default() *Config {
	var c Config
	c.LogLevel = "info"
	c.Workers = runtime.NumCPU()
	c.Storage.SyncWrites = true
	c.Objects.CacheSize = 4096
	c.Objects.Compression.MinSize = 1024
	c.Objects.Compression.Level = 2
	return &c
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		config.applyEnv()
		return config, nil
	}
	if err != nil {
		return nil, vxerrors.IOFailure("config.load", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, vxerrors.Corruption("config.load", path, err)
	}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, vxerrors.Wrap("config.load", path, err)
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return vxerrors.Validation("config.validate", "workers", fmt.Sprintf("must be at least 1, got %d", c.Workers))
	}
	if c.Objects.CacheSize < 1 {
		return vxerrors.Validation("config.validate", "objects.cache_size", fmt.Sprintf("must be at least 1, got %d", c.Objects.CacheSize))
	}
	if lvl := c.Objects.Compression.Level; lvl < 1 || lvl > 4 {
		return vxerrors.Validation("config.validate", "objects.compression.level", fmt.Sprintf("must be between 1 and 4, got %d", lvl))
	}
	for _, p := range c.Ignore {
		if _, err := filepath.Match(p, ""); err != nil {
			return vxerrors.Validation("config.validate", "ignore", fmt.Sprintf("bad pattern %q", p))
		}
	}
	return nil
}

// Save writes c as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return vxerrors.IOFailure("config.save", path, err)
	}
	return nil
}
