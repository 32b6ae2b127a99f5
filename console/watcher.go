package console

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// DefaultPollInterval is the drift-detection cadence for open files.
const DefaultPollInterval = 3 * time.Second

// ModWatcher polls CheckExternalModification while an edit session is
// active. Poll failures are logged and swallowed; a transient network
// hiccup must not spam the user. Drift itself surfaces once through the
// session's OnExternalChange hook.
type ModWatcher struct {
	session  *EditSession
	interval time.Duration
	logger   pslog.Logger

	mu   sync.Mutex
	gen  int
	stop context.CancelFunc
}

// NewModWatcher constructs a watcher for the session. A non-positive
// interval falls back to DefaultPollInterval.
func NewModWatcher(session *EditSession, interval time.Duration, logger pslog.Logger) *ModWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &ModWatcher{session: session, interval: interval, logger: logger}
}

// Start begins polling and returns a stop function. Stopping is
// idempotent and takes effect immediately; no poll runs against a torn
// down session. Calling Start again first stops the previous loop.
func (w *ModWatcher) Start() func() {
	w.mu.Lock()
	if w.stop != nil {
		w.stop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.gen++
	gen := w.gen
	w.stop = cancel
	w.mu.Unlock()

	go w.run(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			w.mu.Lock()
			// A stale stop from a superseded Start must not clear the
			// registration of a newer loop.
			if w.gen == gen {
				w.stop = nil
			}
			w.mu.Unlock()
		})
	}
}

func (w *ModWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		if err := w.session.CheckExternalModification(ctx); err != nil {
			w.logger.Debug("modification poll failed", "err", err)
		}
	}
}
