package console

import (
	"context"

	"pkt.systems/blockdeck/schema"
)

// fakeClient backs the console tests with function-field overrides.
type fakeClient struct {
	listLogFiles  func(ctx context.Context, serverID schema.ServerID) ([]schema.LogFileInfo, error)
	fetchLogFile  func(ctx context.Context, serverID schema.ServerID, name string) ([]string, error)
	streamConsole func(ctx context.Context, serverID schema.ServerID, onLine func(string)) error
	sendCommand   func(ctx context.Context, serverID schema.ServerID, command string) error
	fetchFile     func(ctx context.Context, serverID schema.ServerID, path string) (string, error)
	writeFile     func(ctx context.Context, serverID schema.ServerID, path, content string) error
	statFile      func(ctx context.Context, serverID schema.ServerID, path string) (schema.FileStat, error)
}

func (f *fakeClient) ListLogFiles(ctx context.Context, serverID schema.ServerID) ([]schema.LogFileInfo, error) {
	if f.listLogFiles == nil {
		return nil, nil
	}
	return f.listLogFiles(ctx, serverID)
}

func (f *fakeClient) FetchLogFile(ctx context.Context, serverID schema.ServerID, name string) ([]string, error) {
	if f.fetchLogFile == nil {
		return nil, nil
	}
	return f.fetchLogFile(ctx, serverID, name)
}

func (f *fakeClient) StreamConsole(ctx context.Context, serverID schema.ServerID, onLine func(string)) error {
	if f.streamConsole == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.streamConsole(ctx, serverID, onLine)
}

func (f *fakeClient) SendCommand(ctx context.Context, serverID schema.ServerID, command string) error {
	if f.sendCommand == nil {
		return nil
	}
	return f.sendCommand(ctx, serverID, command)
}

func (f *fakeClient) FetchFile(ctx context.Context, serverID schema.ServerID, path string) (string, error) {
	if f.fetchFile == nil {
		return "", nil
	}
	return f.fetchFile(ctx, serverID, path)
}

func (f *fakeClient) WriteFile(ctx context.Context, serverID schema.ServerID, path, content string) error {
	if f.writeFile == nil {
		return nil
	}
	return f.writeFile(ctx, serverID, path, content)
}

func (f *fakeClient) StatFile(ctx context.Context, serverID schema.ServerID, path string) (schema.FileStat, error) {
	if f.statFile == nil {
		return schema.FileStat{}, nil
	}
	return f.statFile(ctx, serverID, path)
}
