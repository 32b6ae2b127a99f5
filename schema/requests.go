package schema

// Server lifecycle.

// CreateServerRequest describes a request to register a server instance.
type CreateServerRequest struct {
	UserID   UserID
	Name     ServerName
	JarPath  string
	JavaPath string
	MinRAM   string
	MaxRAM   string
	JVMArgs  []string
}

// CreateServerResponse reports the created server.
type CreateServerResponse struct {
	Server ServerSnapshot
}

// ListServersRequest describes a request to list servers.
type ListServersRequest struct {
	UserID UserID
}

// ListServersResponse reports all registered servers.
type ListServersResponse struct {
	Servers []ServerSnapshot
}

// GetServerRequest describes a request for one server snapshot.
type GetServerRequest struct {
	UserID   UserID
	ServerID ServerID
}

// GetServerResponse reports the server snapshot.
type GetServerResponse struct {
	Server ServerSnapshot
}

// StartServerRequest describes a request to launch the server process.
type StartServerRequest struct {
	UserID   UserID
	ServerID ServerID
}

// StartServerResponse reports the post-start snapshot.
type StartServerResponse struct {
	Server ServerSnapshot
}

// StopServerRequest describes a request to stop the server process.
type StopServerRequest struct {
	UserID   UserID
	ServerID ServerID
}

// StopServerResponse reports the post-stop snapshot.
type StopServerResponse struct {
	Server ServerSnapshot
}

// Console operations.

// SendCommandRequest submits a console command to a running server.
type SendCommandRequest struct {
	UserID   UserID
	ServerID ServerID
	Command  string
}

// SendCommandResponse acknowledges a dispatched command.
type SendCommandResponse struct {
	Server ServerSnapshot
}

// GetConsoleRequest asks for the current console scrollback.
type GetConsoleRequest struct {
	UserID   UserID
	ServerID ServerID
	Limit    int
}

// GetConsoleResponse reports the console scrollback view.
type GetConsoleResponse struct {
	Console ConsoleSnapshot
}

// Log file operations.

// ListLogFilesRequest asks for the historical log files of a server.
type ListLogFilesRequest struct {
	UserID   UserID
	ServerID ServerID
}

// ListLogFilesResponse reports log files, canonical latest first.
type ListLogFilesResponse struct {
	Files []LogFileInfo
}

// GetLogFileRequest asks for the full content of one log file.
type GetLogFileRequest struct {
	UserID   UserID
	ServerID ServerID
	Name     string
}

// GetLogFileResponse reports log content split into lines.
type GetLogFileResponse struct {
	Lines []string
}

// File operations.

// ReadFileRequest asks for the content of a file under the server dir.
type ReadFileRequest struct {
	UserID   UserID
	ServerID ServerID
	Path     string
}

// ReadFileResponse reports file content and its stat.
type ReadFileResponse struct {
	Content string
	Stat    FileStat
}

// WriteFileRequest overwrites a file under the server dir.
type WriteFileRequest struct {
	UserID   UserID
	ServerID ServerID
	Path     string
	Content  string
}

// WriteFileResponse reports the post-write stat.
type WriteFileResponse struct {
	Stat FileStat
}

// StatFileRequest asks for metadata plus content hash of a file.
type StatFileRequest struct {
	UserID   UserID
	ServerID ServerID
	Path     string
}

// StatFileResponse reports the file stat.
type StatFileResponse struct {
	Stat FileStat
}
