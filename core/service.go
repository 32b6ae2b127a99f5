package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"pkt.systems/blockdeck/internal/logx"
	"pkt.systems/blockdeck/internal/persist"
	"pkt.systems/blockdeck/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg    schema.ServiceConfig
	sink   EventSink
	store  *persist.Store
	logger pslog.Logger
	watch  *fileWatcher

	mu        sync.Mutex
	instances map[schema.ServerID]*instance
	order     []schema.ServerID
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if err := os.MkdirAll(cfg.ServerRoot, 0o755); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	s := &service{
		cfg:       cfg,
		sink:      deps.EventSink,
		store:     store,
		logger:    logger,
		instances: make(map[schema.ServerID]*instance),
	}
	if err := s.loadRegistry(); err != nil {
		return nil, err
	}
	if cfg.WatchFiles {
		watcher, err := newFileWatcher(s, logger)
		if err != nil {
			logger.Warn("file watcher unavailable", "err", err)
		} else {
			s.watch = watcher
			s.mu.Lock()
			for _, inst := range s.instances {
				watcher.Add(inst.def.ID, inst.def.Dir)
			}
			s.mu.Unlock()
		}
	}
	return s, nil
}

func (s *service) loadRegistry() error {
	if s.store == nil {
		return nil
	}
	registry, ok, err := s.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range registry.Servers {
		inst := &instance{
			def:    def,
			state:  schema.RunStateStopped,
			buffer: newBufferWithMaxLines(s.cfg.BufferMaxLines),
		}
		s.instances[def.ID] = inst
		s.order = append(s.order, def.ID)
	}
	s.logger.Info("server registry loaded", "servers", len(registry.Servers))
	return nil
}

func (s *service) saveRegistryLocked() error {
	if s.store == nil {
		return nil
	}
	registry := persist.Registry{Servers: make([]schema.ServerDef, 0, len(s.order))}
	for _, id := range s.order {
		if inst, ok := s.instances[id]; ok {
			registry.Servers = append(registry.Servers, inst.def)
		}
	}
	return s.store.Save(registry)
}

func (s *service) CreateServer(ctx context.Context, req schema.CreateServerRequest) (schema.CreateServerResponse, error) {
	if ctx == nil {
		return schema.CreateServerResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateUserID(req.UserID); err != nil {
		return schema.CreateServerResponse{}, err
	}
	name, err := schema.NormalizeServerName(string(req.Name))
	if err != nil {
		return schema.CreateServerResponse{}, err
	}
	log := logx.WithUser(ctx, req.UserID)
	dir, err := ServerDir(s.cfg.ServerRoot, name)
	if err != nil {
		return schema.CreateServerResponse{}, err
	}
	def := schema.ServerDef{
		ID:       schema.ServerID(newID()),
		Name:     name,
		Dir:      dir,
		JarPath:  req.JarPath,
		JavaPath: req.JavaPath,
		MinRAM:   req.MinRAM,
		MaxRAM:   req.MaxRAM,
		JVMArgs:  append([]string(nil), req.JVMArgs...),
	}
	if def.JarPath == "" {
		def.JarPath = "server.jar"
	}
	if def.JavaPath == "" {
		def.JavaPath = s.cfg.DefaultJava
	}
	if def.MinRAM == "" {
		def.MinRAM = s.cfg.DefaultMinRAM
	}
	if def.MaxRAM == "" {
		def.MaxRAM = s.cfg.DefaultMaxRAM
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return schema.CreateServerResponse{}, err
	}

	s.mu.Lock()
	for _, inst := range s.instances {
		if inst.def.Name == name {
			s.mu.Unlock()
			return schema.CreateServerResponse{}, schema.ErrServerExists
		}
	}
	inst := &instance{
		def:    def,
		state:  schema.RunStateStopped,
		buffer: newBufferWithMaxLines(s.cfg.BufferMaxLines),
	}
	s.instances[def.ID] = inst
	s.order = append(s.order, def.ID)
	saveErr := s.saveRegistryLocked()
	snapshot := inst.Snapshot()
	s.mu.Unlock()
	if saveErr != nil {
		return schema.CreateServerResponse{}, saveErr
	}

	if s.watch != nil {
		s.watch.Add(def.ID, def.Dir)
	}
	log.Info("server created", "server", def.ID, "name", name, "dir", dir)
	if s.sink != nil {
		s.sink.OnServerEvent(schema.ServerEvent{
			UserID: req.UserID,
			Type:   schema.ServerEventCreated,
			Server: snapshot,
		})
	}
	return schema.CreateServerResponse{Server: snapshot}, nil
}

func (s *service) ListServers(ctx context.Context, req schema.ListServersRequest) (schema.ListServersResponse, error) {
	if err := schema.ValidateUserID(req.UserID); err != nil {
		return schema.ListServersResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	servers := make([]schema.ServerSnapshot, 0, len(s.order))
	for _, id := range s.order {
		if inst, ok := s.instances[id]; ok {
			servers = append(servers, inst.Snapshot())
		}
	}
	return schema.ListServersResponse{Servers: servers}, nil
}

func (s *service) GetServer(ctx context.Context, req schema.GetServerRequest) (schema.GetServerResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.GetServerResponse{}, err
	}
	s.mu.Lock()
	snapshot := inst.Snapshot()
	s.mu.Unlock()
	return schema.GetServerResponse{Server: snapshot}, nil
}

func (s *service) StartServer(ctx context.Context, req schema.StartServerRequest) (schema.StartServerResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.StartServerResponse{}, err
	}
	log := logx.WithUserServer(ctx, req.UserID, req.ServerID)

	s.mu.Lock()
	if inst.state != schema.RunStateStopped {
		s.mu.Unlock()
		return schema.StartServerResponse{}, schema.ErrServerRunning
	}
	inst.state = schema.RunStateStarting
	inst.exitInfo = ""
	def := inst.def
	s.mu.Unlock()

	if err := ensureEULA(def.Dir); err != nil {
		s.resetToStopped(inst)
		return schema.StartServerResponse{}, fmt.Errorf("writing eula.txt: %w", err)
	}

	cmd := launchCommand(def)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.resetToStopped(inst)
		return schema.StartServerResponse{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.resetToStopped(inst)
		return schema.StartServerResponse{}, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.resetToStopped(inst)
		return schema.StartServerResponse{}, err
	}
	if err := cmd.Start(); err != nil {
		s.resetToStopped(inst)
		return schema.StartServerResponse{}, err
	}

	s.mu.Lock()
	previous := schema.RunStateStopped
	inst.state = schema.RunStateRunning
	inst.cmd = cmd
	inst.stdin = stdin
	inst.startedAt = time.Now()
	inst.buffer.Reset()
	inst.done = make(chan struct{})
	snapshot := inst.Snapshot()
	s.mu.Unlock()

	go s.streamOutput(stdout, inst, "", log)
	go s.streamOutput(stderr, inst, "ERR", log)
	go s.watchExit(inst, log)

	log.Info("server process started", "pid", snapshot.PID)
	if s.sink != nil {
		s.sink.OnServerEvent(schema.ServerEvent{
			UserID:   req.UserID,
			Type:     schema.ServerEventState,
			Server:   snapshot,
			Previous: previous,
		})
	}
	return schema.StartServerResponse{Server: snapshot}, nil
}

func (s *service) resetToStopped(inst *instance) {
	s.mu.Lock()
	inst.state = schema.RunStateStopped
	s.mu.Unlock()
}

func (s *service) StopServer(ctx context.Context, req schema.StopServerRequest) (schema.StopServerResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.StopServerResponse{}, err
	}
	log := logx.WithUserServer(ctx, req.UserID, req.ServerID)

	s.mu.Lock()
	if inst.state != schema.RunStateRunning {
		s.mu.Unlock()
		return schema.StopServerResponse{}, schema.ErrServerNotRunning
	}
	previous := inst.state
	inst.state = schema.RunStateStopping
	snapshot := inst.Snapshot()
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.OnServerEvent(schema.ServerEvent{
			UserID:   req.UserID,
			Type:     schema.ServerEventState,
			Server:   snapshot,
			Previous: previous,
		})
	}
	log.Info("server stop requested")
	s.requestStop(inst, time.Duration(s.cfg.StopTimeout)*time.Second, log)

	s.mu.Lock()
	snapshot = inst.Snapshot()
	s.mu.Unlock()
	return schema.StopServerResponse{Server: snapshot}, nil
}

func (s *service) GetConsole(ctx context.Context, req schema.GetConsoleRequest) (schema.GetConsoleResponse, error) {
	inst, err := s.lookup(req.UserID, req.ServerID)
	if err != nil {
		return schema.GetConsoleResponse{}, err
	}
	s.mu.Lock()
	snapshot := inst.buffer.Snapshot(req.Limit)
	s.mu.Unlock()
	snapshot.ServerID = req.ServerID
	return schema.GetConsoleResponse{Console: snapshot}, nil
}

func (s *service) Close(ctx context.Context) error {
	s.mu.Lock()
	running := make([]*instance, 0, len(s.instances))
	for _, inst := range s.instances {
		if inst.state == schema.RunStateRunning {
			running = append(running, inst)
		}
	}
	watch := s.watch
	s.mu.Unlock()

	log := logx.Ctx(ctx)
	for _, inst := range running {
		s.mu.Lock()
		inst.state = schema.RunStateStopping
		s.mu.Unlock()
		s.requestStop(inst, time.Duration(s.cfg.StopTimeout)*time.Second, logx.WithServer(log, inst.def.ID))
	}
	if watch != nil {
		return watch.Close()
	}
	return nil
}

func (s *service) lookup(userID schema.UserID, serverID schema.ServerID) (*instance, error) {
	if err := schema.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if serverID == "" {
		return nil, schema.ErrInvalidServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[serverID]
	if !ok {
		return nil, schema.ErrServerNotFound
	}
	return inst, nil
}

func sortLogFiles(files []schema.LogFileInfo) {
	sort.Slice(files, func(i, j int) bool {
		// latest.log is the live file Minecraft writes; it always sorts
		// first, then newest archives by name descending.
		if files[i].Name == "latest.log" {
			return true
		}
		if files[j].Name == "latest.log" {
			return false
		}
		return files[i].Name > files[j].Name
	})
}
