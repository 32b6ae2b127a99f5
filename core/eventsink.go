package core

import "pkt.systems/blockdeck/schema"

// EventSink receives server, output, and file events from the core service.
type EventSink interface {
	OnOutput(event schema.OutputEvent)
	OnServerEvent(event schema.ServerEvent)
	OnFileEvent(event schema.FileEvent)
}
