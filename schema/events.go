package schema

// OutputEvent carries console output lines for a server.
type OutputEvent struct {
	UserID   UserID
	ServerID ServerID
	Lines    []string
}

// ServerEventType describes a server lifecycle transition.
type ServerEventType string

const (
	// ServerEventCreated indicates a server instance was registered.
	ServerEventCreated ServerEventType = "created"
	// ServerEventState indicates the run state changed.
	ServerEventState ServerEventType = "state"
	// ServerEventRemoved indicates a server instance was removed.
	ServerEventRemoved ServerEventType = "removed"
)

// ServerEvent carries server lifecycle updates.
type ServerEvent struct {
	UserID   UserID
	Type     ServerEventType
	Server   ServerSnapshot
	Previous RunState
}

// FileEvent reports an on-disk change under a server directory.
type FileEvent struct {
	UserID   UserID
	ServerID ServerID
	Path     string
	Removed  bool
}
