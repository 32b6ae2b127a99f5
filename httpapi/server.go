package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"pkt.systems/blockdeck/core"
	"pkt.systems/blockdeck/internal/logx"
	"pkt.systems/blockdeck/schema"
	"pkt.systems/pslog"
)

// Authenticator verifies username and password.
type Authenticator interface {
	Authenticate(username, password string) error
	ChangePassword(username, currentPassword, newPassword string) error
}

// Server serves the HTTP API.
type Server struct {
	cfg       Config
	service   core.Service
	authStore Authenticator
	sessions  *sessionStore
	hub       *Hub
	basePath  string
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, authStore Authenticator, hub *Hub) *Server {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 720 * time.Hour
	}
	return &Server{
		cfg:       cfg,
		service:   service,
		authStore: authStore,
		sessions:  newSessionStore(ttl, cfg.SessionFile),
		hub:       hub,
		basePath:  normalizeBasePath(cfg.BasePath),
	}
}

// SetBaseContext sets the parent context for session lifetimes.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.sessions.setBaseContext(ctx)
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/chpasswd", s.requireSession(s.handleChangePassword))
	mux.HandleFunc("/api/me", s.requireSession(s.handleMe))
	mux.HandleFunc("/api/servers", s.requireSession(s.handleServers))
	mux.HandleFunc("/api/servers/start", s.requireSession(s.handleStart))
	mux.HandleFunc("/api/servers/stop", s.requireSession(s.handleStop))
	mux.HandleFunc("/api/command", s.requireSession(s.handleCommand))
	mux.HandleFunc("/api/console", s.requireSession(s.handleConsole))
	mux.HandleFunc("/api/logs", s.requireSession(s.handleLogs))
	mux.HandleFunc("/api/logfile", s.requireSession(s.handleLogFile))
	mux.HandleFunc("/api/file", s.requireSession(s.handleFile))
	mux.HandleFunc("/api/filestat", s.requireSession(s.handleFileStat))
	mux.HandleFunc("/api/download", s.requireSession(s.handleDownload))
	mux.HandleFunc("/api/stream", s.requireSession(s.handleStream))

	handler := withRequestLogging(mux, s.lookupSession)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http login decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log = log.With("user", payload.Username)
	if err := s.authStore.Authenticate(payload.Username, payload.Password); err != nil {
		log.Warn("http login failed", "err", err)
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	token, sess := s.sessions.create(schema.UserID(payload.Username))
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.expiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{"username": payload.Username})
	log.Info("http login ok")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := s.sessionToken(r)
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	if token != "" {
		if entry, ok := s.sessions.get(token); ok {
			log = log.With("user", entry.userID, "http_session", entry.id)
		}
		s.sessions.delete(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Info("http logout")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("user", userID, "remote", clientIP(r))
	var payload struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http chpasswd decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.CurrentPassword) == "" {
		writeError(w, http.StatusBadRequest, errors.New("current password is required"))
		return
	}
	if strings.TrimSpace(payload.NewPassword) == "" {
		writeError(w, http.StatusBadRequest, errors.New("new password is required"))
		return
	}
	if payload.NewPassword != payload.ConfirmPassword {
		writeError(w, http.StatusBadRequest, errors.New("passwords do not match"))
		return
	}
	if err := s.authStore.ChangePassword(string(userID), payload.CurrentPassword, payload.NewPassword); err != nil {
		log.Warn("http chpasswd failed", "err", err)
		status := http.StatusInternalServerError
		if isPasswordChangeAuthError(err) {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	log.Info("http chpasswd ok")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	writeJSON(w, http.StatusOK, map[string]any{"username": userID})
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	log := logx.WithUser(r.Context(), userID)
	ctx := sessionContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.ListServers(ctx, schema.ListServersRequest{UserID: userID})
		if err != nil {
			log.Warn("http servers list failed", "err", err)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http servers list ok", "count", len(resp.Servers))
	case http.MethodPost:
		var payload struct {
			Name     string   `json:"name"`
			JarPath  string   `json:"jar_path"`
			JavaPath string   `json:"java_path"`
			MinRAM   string   `json:"min_ram"`
			MaxRAM   string   `json:"max_ram"`
			JVMArgs  []string `json:"jvm_args"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http servers decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.CreateServer(ctx, schema.CreateServerRequest{
			UserID:   userID,
			Name:     schema.ServerName(payload.Name),
			JarPath:  payload.JarPath,
			JavaPath: payload.JavaPath,
			MinRAM:   payload.MinRAM,
			MaxRAM:   payload.MaxRAM,
			JVMArgs:  payload.JVMArgs,
		})
		if err != nil {
			log.Warn("http servers create failed", "err", err)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http servers create ok", "server", resp.Server.ID, "name", resp.Server.Name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	s.handleLifecycle(w, r, userID, "start")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	s.handleLifecycle(w, r, userID, "stop")
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request, userID schema.UserID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.WithUser(r.Context(), userID)
	ctx := sessionContext(r.Context())
	var payload struct {
		ServerID string `json:"server_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http lifecycle decode failed", "action", action, "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	serverID := schema.ServerID(payload.ServerID)
	log = log.With("server", serverID, "action", action)
	var snapshot schema.ServerSnapshot
	if action == "start" {
		resp, err := s.service.StartServer(ctx, schema.StartServerRequest{UserID: userID, ServerID: serverID})
		if err != nil {
			log.Warn("http lifecycle failed", "err", err)
			writeServiceError(w, err)
			return
		}
		snapshot = resp.Server
		writeJSON(w, http.StatusOK, resp)
	} else {
		resp, err := s.service.StopServer(ctx, schema.StopServerRequest{UserID: userID, ServerID: serverID})
		if err != nil {
			log.Warn("http lifecycle failed", "err", err)
			writeServiceError(w, err)
			return
		}
		snapshot = resp.Server
		writeJSON(w, http.StatusOK, resp)
	}
	log.Info("http lifecycle ok", "state", snapshot.State)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.WithUser(r.Context(), userID)
	ctx := sessionContext(r.Context())
	var payload struct {
		ServerID string `json:"server_id"`
		Command  string `json:"command"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http command decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.SendCommand(ctx, schema.SendCommandRequest{
		UserID:   userID,
		ServerID: schema.ServerID(payload.ServerID),
		Command:  payload.Command,
	})
	if err != nil {
		log.Warn("http command failed", "server", payload.ServerID, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Info("http command ok", "server", payload.ServerID)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.WithUser(r.Context(), userID)
	serverID := schema.ServerID(r.URL.Query().Get("server_id"))
	limit := parseInt(r.URL.Query().Get("limit"), s.cfg.InitialBufferLines)
	resp, err := s.service.GetConsole(r.Context(), schema.GetConsoleRequest{
		UserID:   userID,
		ServerID: serverID,
		Limit:    limit,
	})
	if err != nil {
		log.Warn("http console failed", "server", serverID, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http console ok", "server", serverID, "lines", resp.Console.TotalLines)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.WithUser(r.Context(), userID)
	serverID := schema.ServerID(r.URL.Query().Get("server_id"))
	resp, err := s.service.ListLogFiles(r.Context(), schema.ListLogFilesRequest{
		UserID:   userID,
		ServerID: serverID,
	})
	if err != nil {
		log.Warn("http logs failed", "server", serverID, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http logs ok", "server", serverID, "count", len(resp.Files))
}

func (s *Server) handleLogFile(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.WithUser(r.Context(), userID)
	serverID := schema.ServerID(r.URL.Query().Get("server_id"))
	name := r.URL.Query().Get("name")
	resp, err := s.service.GetLogFile(r.Context(), schema.GetLogFileRequest{
		UserID:   userID,
		ServerID: serverID,
		Name:     name,
	})
	if err != nil {
		log.Warn("http logfile failed", "server", serverID, "name", name, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Debug("http logfile ok", "server", serverID, "name", name, "lines", len(resp.Lines))
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	log := logx.WithUser(r.Context(), userID)
	ctx := sessionContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		serverID := schema.ServerID(r.URL.Query().Get("server_id"))
		filePath := r.URL.Query().Get("path")
		resp, err := s.service.ReadFile(ctx, schema.ReadFileRequest{
			UserID:   userID,
			ServerID: serverID,
			Path:     filePath,
		})
		if err != nil {
			log.Warn("http file read failed", "server", serverID, "path", filePath, "err", err)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Debug("http file read ok", "server", serverID, "path", filePath, "bytes", len(resp.Content))
	case http.MethodPut:
		var payload struct {
			ServerID string `json:"server_id"`
			Path     string `json:"path"`
			Content  string `json:"content"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http file write decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.WriteFile(ctx, schema.WriteFileRequest{
			UserID:   userID,
			ServerID: schema.ServerID(payload.ServerID),
			Path:     payload.Path,
			Content:  payload.Content,
		})
		if err != nil {
			log.Warn("http file write failed", "server", payload.ServerID, "path", payload.Path, "err", err)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		log.Info("http file write ok", "server", payload.ServerID, "path", payload.Path, "bytes", len(payload.Content))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFileStat(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.WithUser(r.Context(), userID)
	serverID := schema.ServerID(r.URL.Query().Get("server_id"))
	filePath := r.URL.Query().Get("path")
	resp, err := s.service.StatFile(r.Context(), schema.StatFileRequest{
		UserID:   userID,
		ServerID: serverID,
		Path:     filePath,
	})
	if err != nil {
		log.Warn("http filestat failed", "server", serverID, "path", filePath, "err", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	log.Trace("http filestat ok", "server", serverID, "path", filePath)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.WithUser(r.Context(), userID)
	serverID := schema.ServerID(r.URL.Query().Get("server_id"))
	filePath := r.URL.Query().Get("path")
	resp, err := s.service.ReadFile(r.Context(), schema.ReadFileRequest{
		UserID:   userID,
		ServerID: serverID,
		Path:     filePath,
	})
	if err != nil {
		log.Warn("http download failed", "server", serverID, "path", filePath, "err", err)
		writeServiceError(w, err)
		return
	}
	filename := path.Base(filePath)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = io.WriteString(w, resp.Content)
	log.Info("http download ok", "server", serverID, "path", filePath, "bytes", len(resp.Content))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, userID schema.UserID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.WithUser(r.Context(), userID)
	ctx := sessionContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	snapshot := s.buildSnapshot(ctx, userID)
	_ = writeSSEvent(w, StreamEvent{
		Type:      "snapshot",
		Snapshot:  &snapshot,
		Timestamp: time.Now(),
	})
	flusher.Flush()

	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
		flusher.Flush()
	}

	ch, unsubscribe, _, _ := s.hub.Subscribe()
	defer unsubscribe()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "servers", len(snapshot.Servers))
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event := <-ch:
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func (s *Server) buildSnapshot(ctx context.Context, userID schema.UserID) SnapshotPayload {
	resp, err := s.service.ListServers(ctx, schema.ListServersRequest{UserID: userID})
	if err != nil {
		return SnapshotPayload{}
	}
	consoles := make(map[schema.ServerID]schema.ConsoleSnapshot)
	for _, server := range resp.Servers {
		consoleResp, err := s.service.GetConsole(ctx, schema.GetConsoleRequest{
			UserID:   userID,
			ServerID: server.ID,
			Limit:    s.cfg.InitialBufferLines,
		})
		if err != nil {
			continue
		}
		consoles[server.ID] = consoleResp.Console
	}
	return SnapshotPayload{
		Servers:  resp.Servers,
		Consoles: consoles,
	}
}

func (s *Server) requireSession(next func(http.ResponseWriter, *http.Request, schema.UserID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		token := s.sessionToken(r)
		if token == "" {
			log.Warn("http session missing")
			writeError(w, http.StatusUnauthorized, errors.New("missing session"))
			return
		}
		entry, ok := s.sessions.get(token)
		if !ok {
			log.Warn("http session invalid")
			writeError(w, http.StatusUnauthorized, errors.New("invalid session"))
			return
		}
		log = log.With("user", entry.userID, "http_session", entry.id)
		ctx := logx.ContextWithUserLogger(r.Context(), log, entry.userID)
		ctx = withSessionContext(ctx, entry)
		next(w, r.WithContext(ctx), entry.userID)
	}
}

type sessionContextKey struct{}

func withSessionContext(ctx context.Context, sess session) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

func sessionContext(ctx context.Context) context.Context {
	if ctx == nil {
		return nil
	}
	value := ctx.Value(sessionContextKey{})
	sess, ok := value.(session)
	if !ok || sess.ctx == nil {
		return ctx
	}
	logger := pslog.Ctx(ctx)
	return logx.CopyContextFields(pslog.ContextWithLogger(sess.ctx, logger), ctx)
}

func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) lookupSession(r *http.Request) (schema.UserID, string) {
	if s == nil || r == nil {
		return "", ""
	}
	token := s.sessionToken(r)
	if token == "" {
		return "", ""
	}
	entry, ok := s.sessions.get(token)
	if !ok {
		return "", ""
	}
	return entry.userID, entry.id
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeServiceError maps service sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, serviceErrorStatus(err), err)
}

func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, schema.ErrServerNotFound),
		errors.Is(err, schema.ErrFileNotFound),
		errors.Is(err, schema.ErrLogNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrServerExists),
		errors.Is(err, schema.ErrServerRunning),
		errors.Is(err, schema.ErrServerNotRunning):
		return http.StatusConflict
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidUser),
		errors.Is(err, schema.ErrInvalidServer),
		errors.Is(err, schema.ErrInvalidServerName),
		errors.Is(err, schema.ErrInvalidPath),
		errors.Is(err, schema.ErrEmptyCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func isPasswordChangeAuthError(err error) bool {
	if err == nil {
		return false
	}
	switch strings.TrimSpace(err.Error()) {
	case "invalid credentials", "user not found":
		return true
	default:
		return false
	}
}
