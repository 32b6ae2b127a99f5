package console

import (
	"context"

	"pkt.systems/blockdeck/schema"
)

// Client is the backend contract the console and edit-session state
// machines run against. httpapi serves it over REST and SSE; tests
// substitute in-package fakes.
type Client interface {
	// ListLogFiles returns the historical log files of a server. Order
	// is backend-defined; callers sort so the canonical latest file
	// comes first.
	ListLogFiles(ctx context.Context, serverID schema.ServerID) ([]schema.LogFileInfo, error)

	// FetchLogFile returns the full content of one log file split into
	// lines.
	FetchLogFile(ctx context.Context, serverID schema.ServerID, name string) ([]string, error)

	// StreamConsole delivers live console lines through onLine, in
	// emission order, until the context is cancelled or the transport
	// fails. A nil return means the stream ended cleanly.
	StreamConsole(ctx context.Context, serverID schema.ServerID, onLine func(line string)) error

	// SendCommand submits one operator command to a running server.
	SendCommand(ctx context.Context, serverID schema.ServerID, command string) error

	// FetchFile returns the content of a file under the server's
	// directory.
	FetchFile(ctx context.Context, serverID schema.ServerID, path string) (string, error)

	// WriteFile overwrites a file with the given content. The backend
	// treats the write as an atomic replace.
	WriteFile(ctx context.Context, serverID schema.ServerID, path, content string) error

	// StatFile returns file metadata including the backend's content
	// hash, comparable with HashContent.
	StatFile(ctx context.Context, serverID schema.ServerID, path string) (schema.FileStat, error)
}
