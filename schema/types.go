package schema

// UserID identifies a panel user.
type UserID string

// ServerID identifies a managed server instance.
type ServerID string

// ServerName is the user-facing name of a server instance.
type ServerName string

// FileHash is a cheap content hash used for change detection.
// It is not a security boundary; collisions are tolerable.
type FileHash string

// RunState describes the lifecycle state of a server process.
type RunState string

const (
	// RunStateStopped indicates no process is running.
	RunStateStopped RunState = "stopped"
	// RunStateStarting indicates the process is being launched.
	RunStateStarting RunState = "starting"
	// RunStateRunning indicates the process is up and streaming output.
	RunStateRunning RunState = "running"
	// RunStateStopping indicates a stop has been requested.
	RunStateStopping RunState = "stopping"
)

// ServerDef describes a managed Minecraft server instance.
type ServerDef struct {
	ID       ServerID   `json:"id"`
	Name     ServerName `json:"name"`
	Dir      string     `json:"dir"`
	JarPath  string     `json:"jar_path"`
	JavaPath string     `json:"java_path"`
	MinRAM   string     `json:"min_ram"`
	MaxRAM   string     `json:"max_ram"`
	JVMArgs  []string   `json:"jvm_args,omitempty"`
}

// ServerSnapshot is a read-only view of instance state for transports.
type ServerSnapshot struct {
	ID       ServerID   `json:"id"`
	Name     ServerName `json:"name"`
	State    RunState   `json:"state"`
	PID      int        `json:"pid,omitempty"`
	LastLog  string     `json:"last_log,omitempty"`
	Uptime   int64      `json:"uptime_seconds,omitempty"`
	ExitInfo string     `json:"exit_info,omitempty"`
}

// ConsoleSnapshot represents the current console scrollback view.
type ConsoleSnapshot struct {
	ServerID   ServerID `json:"server_id"`
	Lines      []string `json:"lines"`
	TotalLines int      `json:"total_lines"`
}

// LogFileInfo describes a historical log file.
type LogFileInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"`
}

// FileStat reports file metadata plus a content hash for drift detection.
type FileStat struct {
	Path    string   `json:"path"`
	Size    int64    `json:"size"`
	ModTime int64    `json:"mod_time"`
	Hash    FileHash `json:"hash"`
}
