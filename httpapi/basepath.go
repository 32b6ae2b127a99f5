package httpapi

import "strings"

// normalizeBasePath canonicalizes a reverse-proxy mount path: leading
// slash, no trailing slash, empty when the server is mounted at root.
func normalizeBasePath(value string) string {
	path := strings.TrimSpace(value)
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "/" {
		return ""
	}
	return path
}
