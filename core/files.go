package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"pkt.systems/blockdeck/internal/logx"
	"pkt.systems/blockdeck/schema"
)

func (s *service) ReadFile(ctx context.Context, req schema.ReadFileRequest) (schema.ReadFileResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.ReadFileResponse{}, err
	}
	path, err := ResolvePath(inst.def.Dir, req.Path)
	if err != nil {
		return schema.ReadFileResponse{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schema.ReadFileResponse{}, schema.ErrFileNotFound
		}
		return schema.ReadFileResponse{}, err
	}
	stat, err := statWithHash(path, req.Path, data)
	if err != nil {
		return schema.ReadFileResponse{}, err
	}
	return schema.ReadFileResponse{Content: string(data), Stat: stat}, nil
}

func (s *service) WriteFile(ctx context.Context, req schema.WriteFileRequest) (schema.WriteFileResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.WriteFileResponse{}, err
	}
	path, err := ResolvePath(inst.def.Dir, req.Path)
	if err != nil {
		return schema.WriteFileResponse{}, err
	}
	log := logx.WithUserServer(ctx, req.UserID, req.ServerID)

	// Atomic replace: readers never observe a half-written file.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return schema.WriteFileResponse{}, err
	}
	tmp, err := os.CreateTemp(dir, ".blockdeck-*")
	if err != nil {
		return schema.WriteFileResponse{}, err
	}
	if _, err := tmp.WriteString(req.Content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return schema.WriteFileResponse{}, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return schema.WriteFileResponse{}, err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return schema.WriteFileResponse{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return schema.WriteFileResponse{}, err
	}
	log.Info("file written", "path", req.Path, "bytes", len(req.Content))

	stat, err := statWithHash(path, req.Path, []byte(req.Content))
	if err != nil {
		return schema.WriteFileResponse{}, err
	}
	return schema.WriteFileResponse{Stat: stat}, nil
}

func (s *service) StatFile(ctx context.Context, req schema.StatFileRequest) (schema.StatFileResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.StatFileResponse{}, err
	}
	path, err := ResolvePath(inst.def.Dir, req.Path)
	if err != nil {
		return schema.StatFileResponse{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return schema.StatFileResponse{}, schema.ErrFileNotFound
		}
		return schema.StatFileResponse{}, err
	}
	stat, err := statWithHash(path, req.Path, data)
	if err != nil {
		return schema.StatFileResponse{}, err
	}
	return schema.StatFileResponse{Stat: stat}, nil
}

func statWithHash(path, rel string, content []byte) (schema.FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return schema.FileStat{}, err
	}
	return schema.FileStat{
		Path:    rel,
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
		Hash:    schema.HashContent(content),
	}, nil
}
