package blockdeck

import (
	"pkt.systems/blockdeck/core"
	"pkt.systems/blockdeck/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnOutput(event schema.OutputEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnOutput(event)
	}
}

func (f eventFanout) OnServerEvent(event schema.ServerEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnServerEvent(event)
	}
}

func (f eventFanout) OnFileEvent(event schema.FileEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnFileEvent(event)
	}
}
