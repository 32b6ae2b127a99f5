package console

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/blockdeck/schema"
)

// ConsoleView owns the console state for one server: the bounded log
// buffer, the live subscription, and the autoscroll controller. It
// switches between live streaming while the server runs and static
// historical log content otherwise.
type ConsoleView struct {
	client Client
	logger pslog.Logger

	serverID schema.ServerID
	Buffer   *LogBuffer
	Scroll   *Autoscroll
	sub      *Subscription

	mu      sync.Mutex
	state   schema.RunState
	cleanup func()
	closed  bool
	// gen guards against stale fetch results applying after the view
	// transitioned again while the fetch was in flight.
	gen int
}

// ViewOptions tune a console view. Zero values take defaults.
type ViewOptions struct {
	BufferCapacity int
	Reconnect      time.Duration
	ScrollToBottom func()
	Schedule       func(func())
}

// NewConsoleView constructs a view for one server.
func NewConsoleView(client Client, serverID schema.ServerID, opts ViewOptions, logger pslog.Logger) *ConsoleView {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &ConsoleView{
		client:   client,
		logger:   logger.With("server", serverID),
		serverID: serverID,
		Buffer:   NewLogBuffer(opts.BufferCapacity),
		Scroll:   NewAutoscroll(opts.ScrollToBottom, opts.Schedule),
		sub:      NewSubscription(client, opts.Reconnect, logger),
		state:    schema.RunStateStopped,
	}
}

// SetRunState applies a run-state transition. Entering running discards
// any static content, resets the buffer, and opens the live stream.
// Leaving running tears the stream down and loads the canonical latest
// historical log in full.
func (v *ConsoleView) SetRunState(ctx context.Context, state schema.RunState) {
	v.mu.Lock()
	if v.closed || state == v.state {
		v.mu.Unlock()
		return
	}
	wasRunning := v.state == schema.RunStateRunning
	v.state = state
	v.gen++
	gen := v.gen
	cleanup := v.cleanup
	v.cleanup = nil
	v.mu.Unlock()

	if state == schema.RunStateRunning {
		v.Buffer.Replace(nil)
		if cleanup != nil {
			cleanup()
		}
		release := v.sub.Subscribe(v.serverID, v.onLine)
		v.mu.Lock()
		v.cleanup = release
		v.mu.Unlock()
		v.logger.Info("console switched to live stream")
		return
	}
	if cleanup != nil {
		cleanup()
	}
	if wasRunning {
		v.loadLatestLog(ctx, gen)
	}
}

// replaceStatic applies fetched historical content unless the view
// moved on while the fetch was in flight.
func (v *ConsoleView) replaceStatic(gen int, lines []string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.gen != gen || v.state == schema.RunStateRunning {
		return false
	}
	v.Buffer.Replace(lines)
	return true
}

func (v *ConsoleView) onLine(line string) {
	v.Buffer.Append(line)
	v.Scroll.OnContentAppended()
}

// loadLatestLog fetches the most recent historical log into the buffer.
// Fetch failures replace the content with one placeholder line rather
// than surfacing an error into the view.
func (v *ConsoleView) loadLatestLog(ctx context.Context, gen int) {
	files, err := v.client.ListLogFiles(ctx, v.serverID)
	if err != nil {
		v.logger.Warn("log list failed", "err", err)
		v.replaceStatic(gen, []string{fmt.Sprintf("failed to list log files: %v", err)})
		return
	}
	if len(files) == 0 {
		v.replaceStatic(gen, nil)
		return
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	SortLogNames(names)
	lines, err := v.client.FetchLogFile(ctx, v.serverID, names[0])
	if err != nil {
		v.logger.Warn("log fetch failed", "name", names[0], "err", err)
		v.replaceStatic(gen, []string{fmt.Sprintf("failed to load %s: %v", names[0], err)})
		return
	}
	if v.replaceStatic(gen, lines) {
		v.logger.Debug("historical log loaded", "name", names[0], "lines", len(lines))
	}
}

// LoadLogFile replaces the buffer with a named historical log. Only
// meaningful while the server is not running.
func (v *ConsoleView) LoadLogFile(ctx context.Context, name string) {
	v.mu.Lock()
	if v.state == schema.RunStateRunning {
		v.mu.Unlock()
		return
	}
	gen := v.gen
	v.mu.Unlock()
	lines, err := v.client.FetchLogFile(ctx, v.serverID, name)
	if err != nil {
		v.logger.Warn("log fetch failed", "name", name, "err", err)
		v.replaceStatic(gen, []string{fmt.Sprintf("failed to load %s: %v", name, err)})
		return
	}
	v.replaceStatic(gen, lines)
}

// Close releases the subscription. The view is unusable afterwards.
func (v *ConsoleView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	cleanup := v.cleanup
	v.cleanup = nil
	v.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
	v.sub.Close()
}

// SortLogNames orders log file names so the canonical live file comes
// first, then archives newest first by name.
func SortLogNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		if names[i] == "latest.log" {
			return true
		}
		if names[j] == "latest.log" {
			return false
		}
		return names[i] > names[j]
	})
}
