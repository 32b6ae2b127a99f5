package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var lookupEnv = os.LookupEnv

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("server_root", cfg.ServerRoot)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("java.path", cfg.Java.Path)
	v.SetDefault("java.min_ram", cfg.Java.MinRAM)
	v.SetDefault("java.max_ram", cfg.Java.MaxRAM)
	v.SetDefault("service.buffer_max_lines", cfg.Service.BufferMaxLines)
	v.SetDefault("service.stop_timeout_seconds", cfg.Service.StopTimeoutSeconds)
	v.SetDefault("service.watch_files", cfg.Service.WatchFiles)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.session_cookie", cfg.HTTP.SessionCookie)
	v.SetDefault("http.session_ttl_hours", cfg.HTTP.SessionTTLHours)
	v.SetDefault("http.initial_buffer_lines", cfg.HTTP.InitialBufferLines)
	v.SetDefault("auth.user_file", cfg.Auth.UserFile)
	v.SetDefault("auth.seed_users", cfg.Auth.SeedUsers)
	v.SetDefault("console.request_timeout_seconds", cfg.Console.RequestTimeoutSeconds)
	v.SetDefault("console.poll_interval_seconds", cfg.Console.PollIntervalSeconds)
	v.SetDefault("console.reconnect_seconds", cfg.Console.ReconnectSeconds)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	return cfg, nil
}

// WriteDefault writes the default config to path, refusing to overwrite
// unless overwrite is set. Returns the path written.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.ServerRoot = expandEnv(cfg.ServerRoot)
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Java.Path = expandEnv(cfg.Java.Path)
	cfg.Auth.UserFile = expandEnv(cfg.Auth.UserFile)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}
