package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidUser indicates an invalid user identifier.
	ErrInvalidUser = errors.New("invalid user")
	// ErrInvalidServer indicates an invalid server identifier.
	ErrInvalidServer = errors.New("invalid server")
	// ErrInvalidServerName indicates an invalid server name.
	ErrInvalidServerName = errors.New("invalid server name")
	// ErrServerNotFound indicates a requested server could not be found.
	ErrServerNotFound = errors.New("server not found")
	// ErrServerExists indicates a server with the same name already exists.
	ErrServerExists = errors.New("server already exists")
	// ErrServerNotRunning indicates an operation requires a running process.
	ErrServerNotRunning = errors.New("server not running")
	// ErrServerRunning indicates an operation requires a stopped process.
	ErrServerRunning = errors.New("server already running")
	// ErrEmptyCommand indicates a blank console command.
	ErrEmptyCommand = errors.New("empty command")
	// ErrInvalidPath indicates a path escaping the server directory.
	ErrInvalidPath = errors.New("invalid path")
	// ErrFileNotFound indicates a requested file could not be found.
	ErrFileNotFound = errors.New("file not found")
	// ErrLogNotFound indicates a requested log file could not be found.
	ErrLogNotFound = errors.New("log file not found")
)
