package core

import (
	"errors"
	"path/filepath"
	"strings"

	"pkt.systems/blockdeck/schema"
)

// ServerDir builds a server directory using the configured root and name.
func ServerDir(serverRoot string, name schema.ServerName) (string, error) {
	if strings.TrimSpace(serverRoot) == "" {
		return "", errors.New("server root is required")
	}
	normalized, err := schema.NormalizeServerName(string(name))
	if err != nil {
		return "", err
	}
	return filepath.Join(serverRoot, string(normalized)), nil
}

// ResolvePath resolves a user-supplied relative path against a server
// directory, rejecting anything that escapes it.
func ResolvePath(serverDir, rel string) (string, error) {
	if strings.TrimSpace(serverDir) == "" {
		return "", errors.New("server dir is required")
	}
	rel = strings.TrimSpace(rel)
	if rel == "" || filepath.IsAbs(rel) {
		return "", schema.ErrInvalidPath
	}
	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", schema.ErrInvalidPath
	}
	return filepath.Join(serverDir, cleaned), nil
}
