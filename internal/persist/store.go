package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/blockdeck/schema"
	"pkt.systems/pslog"
)

// Registry captures the set of registered server instances for persistence.
type Registry struct {
	Servers []schema.ServerDef `json:"servers"`
}

// Store persists the server registry to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads the server registry from disk.
func (s *Store) Load() (Registry, bool, error) {
	path := s.registryPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("registry load miss")
			}
			return Registry{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("registry load failed", "err", err)
		}
		return Registry{}, false, err
	}
	var registry Registry
	if err := json.Unmarshal(data, &registry); err != nil {
		if s.log != nil {
			s.log.Warn("registry load failed", "err", err)
		}
		return Registry{}, false, err
	}
	if s.log != nil {
		s.log.Debug("registry load ok", "servers", len(registry.Servers))
	}
	return registry, true, nil
}

// Save writes the server registry to disk with an atomic rename.
func (s *Store) Save(registry Registry) error {
	path := s.registryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return s.saveFailed(err)
	}
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return s.saveFailed(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "registry-*.json")
	if err != nil {
		return s.saveFailed(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return s.saveFailed(err)
	}
	if s.log != nil {
		s.log.Trace("registry save ok", "servers", len(registry.Servers))
	}
	return nil
}

func (s *Store) saveFailed(err error) error {
	if s.log != nil {
		s.log.Warn("registry save failed", "err", err)
	}
	return err
}

func (s *Store) registryPath() string {
	return filepath.Join(s.dir, "servers.json")
}
