package core

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/blockdeck/internal/command"
	"pkt.systems/blockdeck/internal/logx"
	"pkt.systems/blockdeck/schema"
)

func (s *service) SendCommand(ctx context.Context, req schema.SendCommandRequest) (schema.SendCommandResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.SendCommandResponse{}, err
	}
	cmd, err := command.Normalize(req.Command)
	if err != nil {
		return schema.SendCommandResponse{}, err
	}
	log := logx.WithUserServer(ctx, req.UserID, req.ServerID)

	s.mu.Lock()
	if inst.state != schema.RunStateRunning || inst.stdin == nil {
		s.mu.Unlock()
		return schema.SendCommandResponse{}, schema.ErrServerNotRunning
	}
	stdin := inst.stdin
	s.mu.Unlock()

	if _, err := io.WriteString(stdin, cmd+"\n"); err != nil {
		log.Warn("command write failed", "err", err)
		return schema.SendCommandResponse{}, err
	}
	log.Info("command dispatched", "command", cmd)
	if command.IsStop(cmd) {
		s.mu.Lock()
		if inst.state == schema.RunStateRunning {
			inst.state = schema.RunStateStopping
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	snapshot := inst.Snapshot()
	s.mu.Unlock()
	return schema.SendCommandResponse{Server: snapshot}, nil
}

func (s *service) ListLogFiles(ctx context.Context, req schema.ListLogFilesRequest) (schema.ListLogFilesResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.ListLogFilesResponse{}, err
	}
	logsDir := filepath.Join(inst.def.Dir, "logs")
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schema.ListLogFilesResponse{}, nil
		}
		return schema.ListLogFilesResponse{}, err
	}
	files := make([]schema.LogFileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") && !strings.HasSuffix(name, ".log.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, schema.LogFileInfo{
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
	}
	sortLogFiles(files)
	return schema.ListLogFilesResponse{Files: files}, nil
}

func (s *service) GetLogFile(ctx context.Context, req schema.GetLogFileRequest) (schema.GetLogFileResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.GetLogFileResponse{}, err
	}
	name := filepath.Base(strings.TrimSpace(req.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return schema.GetLogFileResponse{}, schema.ErrLogNotFound
	}
	data, err := os.ReadFile(filepath.Join(inst.def.Dir, "logs", name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schema.GetLogFileResponse{}, schema.ErrLogNotFound
		}
		return schema.GetLogFileResponse{}, err
	}
	return schema.GetLogFileResponse{Lines: splitLines(string(data))}, nil
}

// splitLines splits on newline, dropping only a trailing terminator so
// interior blank lines survive.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}
