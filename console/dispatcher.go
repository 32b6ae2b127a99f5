package console

import (
	"context"

	"pkt.systems/pslog"

	"pkt.systems/blockdeck/internal/command"
	"pkt.systems/blockdeck/schema"
)

// Dispatcher sends operator commands to a running server, one round
// trip at a time.
type Dispatcher struct {
	client Client
	logger pslog.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(client Client, logger pslog.Logger) *Dispatcher {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Dispatcher{client: client, logger: logger}
}

// Send validates and submits one command. Blank or whitespace-only
// input is rejected locally without a network call. The caller owns the
// input text; Send never clears it, so a failed send can be retried
// verbatim.
func (d *Dispatcher) Send(ctx context.Context, serverID schema.ServerID, text string) error {
	cmd, err := command.Normalize(text)
	if err != nil {
		return err
	}
	if err := d.client.SendCommand(ctx, serverID, cmd); err != nil {
		d.logger.Warn("command send failed", "server", serverID, "err", err)
		return err
	}
	d.logger.Debug("command sent", "server", serverID, "command", cmd)
	return nil
}
