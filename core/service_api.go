package core

import (
	"context"

	"pkt.systems/blockdeck/schema"
)

// Service is the transport-agnostic API for managing Minecraft server
// instances, their consoles, log files, and server-directory files.
type Service interface {
	CreateServer(ctx context.Context, req schema.CreateServerRequest) (schema.CreateServerResponse, error)
	ListServers(ctx context.Context, req schema.ListServersRequest) (schema.ListServersResponse, error)
	GetServer(ctx context.Context, req schema.GetServerRequest) (schema.GetServerResponse, error)
	StartServer(ctx context.Context, req schema.StartServerRequest) (schema.StartServerResponse, error)
	StopServer(ctx context.Context, req schema.StopServerRequest) (schema.StopServerResponse, error)
	SendCommand(ctx context.Context, req schema.SendCommandRequest) (schema.SendCommandResponse, error)
	GetConsole(ctx context.Context, req schema.GetConsoleRequest) (schema.GetConsoleResponse, error)
	ListLogFiles(ctx context.Context, req schema.ListLogFilesRequest) (schema.ListLogFilesResponse, error)
	GetLogFile(ctx context.Context, req schema.GetLogFileRequest) (schema.GetLogFileResponse, error)
	ReadFile(ctx context.Context, req schema.ReadFileRequest) (schema.ReadFileResponse, error)
	WriteFile(ctx context.Context, req schema.WriteFileRequest) (schema.WriteFileResponse, error)
	StatFile(ctx context.Context, req schema.StatFileRequest) (schema.StatFileResponse, error)
	Close(ctx context.Context) error
}
