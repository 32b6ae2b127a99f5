package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/blockdeck/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	ServerRoot    string        `mapstructure:"server_root" yaml:"server_root"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Java          JavaConfig    `mapstructure:"java" yaml:"java"`
	Service       ServiceConfig `mapstructure:"service" yaml:"service"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	Auth          AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Console       ConsoleConfig `mapstructure:"console" yaml:"console"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// JavaConfig controls the default java runtime for launched servers.
type JavaConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	MinRAM string `mapstructure:"min_ram" yaml:"min_ram"`
	MaxRAM string `mapstructure:"max_ram" yaml:"max_ram"`
}

// ServiceConfig controls core service behavior.
type ServiceConfig struct {
	BufferMaxLines     int  `mapstructure:"buffer_max_lines" yaml:"buffer_max_lines"`
	StopTimeoutSeconds int  `mapstructure:"stop_timeout_seconds" yaml:"stop_timeout_seconds"`
	WatchFiles         bool `mapstructure:"watch_files" yaml:"watch_files"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	BasePath           string `mapstructure:"base_path" yaml:"base_path"`
	SessionCookie      string `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionTTLHours    int    `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	InitialBufferLines int    `mapstructure:"initial_buffer_lines" yaml:"initial_buffer_lines"`
}

// AuthConfig configures auth storage and seed users.
type AuthConfig struct {
	UserFile  string     `mapstructure:"user_file" yaml:"user_file"`
	SeedUsers []SeedUser `mapstructure:"seed_users" yaml:"seed_users"`
}

// ConsoleConfig tunes the client-side console/file-edit state layer.
type ConsoleConfig struct {
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	PollIntervalSeconds   int `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	ReconnectSeconds      int `mapstructure:"reconnect_seconds" yaml:"reconnect_seconds"`
}

// SeedUser seeds a user record in the auth store.
type SeedUser struct {
	Username     string `mapstructure:"username" yaml:"username"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		ServerRoot:    filepath.Join(home, ".blockdeck", "servers"),
		StateDir:      filepath.Join(home, ".blockdeck", "state"),
		Java: JavaConfig{
			Path:   "java",
			MinRAM: "1G",
			MaxRAM: "2G",
		},
		Service: ServiceConfig{
			BufferMaxLines:     schema.DefaultBufferMaxLines,
			StopTimeoutSeconds: schema.DefaultStopTimeoutSeconds,
			WatchFiles:         true,
		},
		HTTP: HTTPConfig{
			Addr:               ":25580",
			SessionCookie:      "blockdeck_session",
			SessionTTLHours:    720,
			InitialBufferLines: 200,
		},
		Auth: AuthConfig{
			UserFile: filepath.Join(home, ".blockdeck", "users.json"),
		},
		Console: ConsoleConfig{
			RequestTimeoutSeconds: 10,
			PollIntervalSeconds:   3,
			ReconnectSeconds:      3,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".blockdeck", "config.yaml"), nil
}
