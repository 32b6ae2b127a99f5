package schema

import (
	"os"
	"path/filepath"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	ServerRoot     string
	StateDir       string
	DefaultJava    string
	DefaultMinRAM  string
	DefaultMaxRAM  string
	BufferMaxLines int
	StopTimeout    int
	// WatchFiles enables filesystem change events for server directories.
	WatchFiles bool
}

// DefaultBufferMaxLines is the default per-server console buffer limit.
const DefaultBufferMaxLines = 1000

// DefaultStopTimeoutSeconds bounds the graceful stop before the process is killed.
const DefaultStopTimeoutSeconds = 30

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.ServerRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.ServerRoot = filepath.Join(home, ".blockdeck", "servers")
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".blockdeck", "state")
	}
	if cfg.DefaultJava == "" {
		cfg.DefaultJava = "java"
	}
	if cfg.DefaultMinRAM == "" {
		cfg.DefaultMinRAM = "1G"
	}
	if cfg.DefaultMaxRAM == "" {
		cfg.DefaultMaxRAM = "2G"
	}
	if cfg.BufferMaxLines <= 0 {
		cfg.BufferMaxLines = DefaultBufferMaxLines
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeoutSeconds
	}
	return cfg, nil
}
