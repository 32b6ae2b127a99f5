package command

import (
	"strings"

	"pkt.systems/blockdeck/schema"
)

// Normalize prepares operator input for delivery to a server's stdin.
// Blank or whitespace-only input is rejected. A single leading slash is
// stripped: Minecraft consoles take bare commands, but operators used to
// in-game chat habitually type "/stop".
func Normalize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", schema.ErrEmptyCommand
	}
	if strings.HasPrefix(trimmed, "/") {
		trimmed = strings.TrimSpace(trimmed[1:])
		if trimmed == "" {
			return "", schema.ErrEmptyCommand
		}
	}
	return trimmed, nil
}

// IsStop reports whether a normalized command shuts the server down.
func IsStop(cmd string) bool {
	fields := strings.Fields(strings.ToLower(cmd))
	return len(fields) > 0 && fields[0] == "stop"
}
