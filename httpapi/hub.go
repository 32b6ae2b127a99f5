package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/blockdeck/internal/logx"
	"pkt.systems/blockdeck/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64                 `json:"seq"`
	Type      string                 `json:"type"`
	ServerID  schema.ServerID        `json:"server_id,omitempty"`
	Lines     []string               `json:"lines,omitempty"`
	Event     string                 `json:"event,omitempty"`
	Server    *schema.ServerSnapshot `json:"server,omitempty"`
	Previous  schema.RunState        `json:"previous,omitempty"`
	Path      string                 `json:"path,omitempty"`
	Removed   bool                   `json:"removed,omitempty"`
	Snapshot  *SnapshotPayload       `json:"snapshot,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Servers  []schema.ServerSnapshot                    `json:"servers"`
	Consoles map[schema.ServerID]schema.ConsoleSnapshot `json:"consoles"`
}

// Hub broadcasts events to all connected panel clients. Servers are a
// shared resource, so every subscriber sees every event.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
	}
}

// OnOutput implements core.EventSink.
func (h *Hub) OnOutput(event schema.OutputEvent) {
	log := logx.WithServer(logx.Ctx(context.Background()), event.ServerID)
	log.Trace("hub output event", "lines", len(event.Lines))
	h.publish(StreamEvent{
		Type:      "output",
		ServerID:  event.ServerID,
		Lines:     event.Lines,
		Timestamp: time.Now(),
	})
}

// OnServerEvent implements core.EventSink.
func (h *Hub) OnServerEvent(event schema.ServerEvent) {
	log := logx.WithServer(logx.Ctx(context.Background()), event.Server.ID)
	log.Trace("hub server event", "type", event.Type, "state", event.Server.State)
	server := event.Server
	h.publish(StreamEvent{
		Type:      "server",
		Event:     string(event.Type),
		ServerID:  server.ID,
		Server:    &server,
		Previous:  event.Previous,
		Timestamp: time.Now(),
	})
}

// OnFileEvent implements core.EventSink.
func (h *Hub) OnFileEvent(event schema.FileEvent) {
	log := logx.WithServer(logx.Ctx(context.Background()), event.ServerID)
	log.Trace("hub file event", "path", event.Path, "removed", event.Removed)
	h.publish(StreamEvent{
		Type:      "file",
		ServerID:  event.ServerID,
		Path:      event.Path,
		Removed:   event.Removed,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a stream consumer and returns its channel, an
// unsubscribe function, the current seq, and the buffered history.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64, []StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), h.history...)
	seq := h.seq
	log := logx.Ctx(context.Background())
	log.Info("hub subscribe", "subs", len(h.subs), "history", len(history))
	unsub := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		remaining := len(h.subs)
		h.mu.Unlock()
		log.Info("hub unsubscribe", "subs", remaining)
	}
	return ch, unsub, seq, history
}

// Replay returns buffered events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	logx.Ctx(context.Background()).Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	// Sends stay under the lock so an unsubscribe cannot close a channel
	// mid-broadcast. They cannot block; a full subscriber drops the event.
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		logx.Ctx(context.Background()).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
