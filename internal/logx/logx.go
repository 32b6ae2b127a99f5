package logx

import (
	"context"

	"pkt.systems/blockdeck/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	userKey contextKey = iota
	serverKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithUser annotates the logger with the user id if present.
func WithUser(ctx context.Context, userID schema.UserID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if userID != "" {
		if current, ok := ctx.Value(userKey).(schema.UserID); ok && current == userID {
			return log
		}
		log = log.With("user", userID)
	}
	return log
}

// WithUserServer annotates the logger with user and server identifiers.
func WithUserServer(ctx context.Context, userID schema.UserID, serverID schema.ServerID) pslog.Logger {
	log := WithUser(ctx, userID)
	if serverID != "" {
		if current, ok := ctx.Value(serverKey).(schema.ServerID); ok && current == serverID {
			return log
		}
		log = log.With("server", serverID)
	}
	return log
}

// WithServer annotates a logger with a server id when available.
func WithServer(log pslog.Logger, serverID schema.ServerID) pslog.Logger {
	if serverID != "" {
		log = log.With("server", serverID)
	}
	return log
}

// ContextWithUser stores the user marker on the context for log de-duplication.
func ContextWithUser(ctx context.Context, userID schema.UserID) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, userID)
}

// ContextWithServer stores the server marker on the context for log de-duplication.
func ContextWithServer(ctx context.Context, serverID schema.ServerID) context.Context {
	if ctx == nil || serverID == "" {
		return ctx
	}
	return context.WithValue(ctx, serverKey, serverID)
}

// ContextWithUserServer stores user/server markers on the context.
func ContextWithUserServer(ctx context.Context, userID schema.UserID, serverID schema.ServerID) context.Context {
	return ContextWithServer(ContextWithUser(ctx, userID), serverID)
}

// ContextWithUserLogger attaches the logger and user marker to the context.
func ContextWithUserLogger(ctx context.Context, log pslog.Logger, userID schema.UserID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithUser(ctx, userID)
}

// CopyContextFields copies user/server markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if user, ok := src.Value(userKey).(schema.UserID); ok && user != "" {
		dst = ContextWithUser(dst, user)
	}
	if server, ok := src.Value(serverKey).(schema.ServerID); ok && server != "" {
		dst = ContextWithServer(dst, server)
	}
	return dst
}
