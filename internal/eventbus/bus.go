package eventbus

import (
	"context"
	"sync"

	"pkt.systems/blockdeck/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventOutput carries console output lines for a server.
	EventOutput EventType = "output"
	// EventServer carries server lifecycle updates.
	EventServer EventType = "server"
	// EventFile carries file change notifications.
	EventFile EventType = "file"
)

// Event represents a UI-facing event emitted by the core service.
type Event struct {
	Type   EventType
	Output schema.OutputEvent
	Server schema.ServerEvent
	File   schema.FileEvent
}

// Bus fanouts events to per-server subscribers. Subscribers to the empty
// ServerID receive every event (panel-wide listeners).
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.ServerID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.ServerID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the server and returns a channel + cancel.
func (b *Bus) Subscribe(serverID schema.ServerID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	serverSubs := b.subs[serverID]
	if serverSubs == nil {
		serverSubs = make(map[chan Event]struct{})
		b.subs[serverID] = serverSubs
	}
	serverSubs[ch] = struct{}{}
	count := len(serverSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("server", serverID).Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		if subs := b.subs[serverID]; subs != nil {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, serverID)
			}
		}
		b.mu.Unlock()
		close(ch)
		if b.log != nil {
			b.log.With("server", serverID).Debug("eventbus unsubscribe")
		}
	}
}

// OnOutput publishes an output event.
func (b *Bus) OnOutput(event schema.OutputEvent) {
	b.publish(event.ServerID, Event{Type: EventOutput, Output: event})
}

// OnServerEvent publishes a server lifecycle event.
func (b *Bus) OnServerEvent(event schema.ServerEvent) {
	b.publish(event.Server.ID, Event{Type: EventServer, Server: event})
}

// OnFileEvent publishes a file change event.
func (b *Bus) OnFileEvent(event schema.FileEvent) {
	b.publish(event.ServerID, Event{Type: EventFile, File: event})
}

func (b *Bus) publish(serverID schema.ServerID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs[serverID])+len(b.subs[""]))
	for sub := range b.subs[serverID] {
		subs = append(subs, sub)
	}
	if serverID != "" {
		for sub := range b.subs[""] {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.With("server", serverID).Trace("eventbus dropped", "count", dropped)
	}
}
