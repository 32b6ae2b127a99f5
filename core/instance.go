package core

import (
	"io"
	"os/exec"
	"time"

	"pkt.systems/blockdeck/schema"
)

// instance tracks the runtime state of a single managed server.
type instance struct {
	def       schema.ServerDef
	state     schema.RunState
	buffer    *buffer
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	startedAt time.Time
	exitInfo  string
	done      chan struct{}
}

// Snapshot returns a transport-friendly view of the instance.
func (i *instance) Snapshot() schema.ServerSnapshot {
	snapshot := schema.ServerSnapshot{
		ID:       i.def.ID,
		Name:     i.def.Name,
		State:    i.state,
		LastLog:  i.buffer.Last(),
		ExitInfo: i.exitInfo,
	}
	if i.state == schema.RunStateRunning || i.state == schema.RunStateStopping {
		if i.cmd != nil && i.cmd.Process != nil {
			snapshot.PID = i.cmd.Process.Pid
		}
		if !i.startedAt.IsZero() {
			snapshot.Uptime = int64(time.Since(i.startedAt).Seconds())
		}
	}
	return snapshot
}
