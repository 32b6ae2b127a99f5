package console

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"

	"pkt.systems/blockdeck/schema"
)

// ErrNavigationDeclined reports that the user kept their unsaved edits
// instead of switching away.
var ErrNavigationDeclined = errors.New("navigation declined")

// ErrNoFileSelected reports a save or check without a loaded file.
var ErrNoFileSelected = errors.New("no file selected")

// EditSession holds the editable buffer for one selected file: the
// baseline content hash from the last load or save, the working
// content, and the dirty and externally-modified flags.
//
// The two flags are mutually exclusive by construction. Dirty means the
// user changed the buffer since the last sync; externally modified is
// only ever raised while the buffer is clean, because once the user has
// pending edits a hash mismatch could just as well be their own change.
type EditSession struct {
	client Client
	logger pslog.Logger

	mu                 sync.Mutex
	serverID           schema.ServerID
	path               string
	baseline           schema.FileHash
	content            string
	dirty              bool
	externallyModified bool
	// gen guards against stale async results applying after the session
	// moved to another file.
	gen int

	// OnExternalChange, when set, fires once per detected drift.
	OnExternalChange func(path string)
}

// NewEditSession constructs an empty session bound to one server.
func NewEditSession(client Client, serverID schema.ServerID, logger pslog.Logger) *EditSession {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &EditSession{client: client, serverID: serverID, logger: logger}
}

// Path returns the selected file path, empty when nothing is loaded.
func (s *EditSession) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Content returns the working content.
func (s *EditSession) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// Dirty reports whether the buffer holds unsaved user edits.
func (s *EditSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// ExternallyModified reports whether the backend file drifted from the
// baseline while the buffer was clean.
func (s *EditSession) ExternallyModified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.externallyModified
}

// Load fetches the file and resets the session around it: working
// content set, both flags cleared, baseline hash recorded.
func (s *EditSession) Load(ctx context.Context, path string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	content, err := s.client.FetchFile(ctx, s.serverID, path)
	if err != nil {
		s.logger.Warn("file load failed", "path", path, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// The session moved on while the fetch was in flight.
		return nil
	}
	s.path = path
	s.content = content
	s.baseline = schema.HashContent([]byte(content))
	s.dirty = false
	s.externallyModified = false
	s.logger.Debug("file loaded", "path", path, "bytes", len(content))
	return nil
}

// Edit replaces the working content and marks the buffer dirty.
func (s *EditSession) Edit(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return
	}
	s.content = content
	s.dirty = true
	s.externallyModified = false
}

// Save writes the working content back. A clean buffer short-circuits;
// there is nothing to persist. On failure the content and dirty flag
// are left untouched so nothing is lost and the user can retry.
func (s *EditSession) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		s.logger.Warn("save with no file selected")
		return ErrNoFileSelected
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	path := s.path
	content := s.content
	s.mu.Unlock()

	if err := s.client.WriteFile(ctx, s.serverID, path, content); err != nil {
		s.logger.Warn("file save failed", "path", path, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.baseline = schema.HashContent([]byte(content))
	s.externallyModified = false
	// An edit made while the write was in flight keeps the buffer dirty;
	// only the snapshot that went over the wire is persisted.
	if s.content == content {
		s.dirty = false
	}
	s.logger.Info("file saved", "path", path, "bytes", len(content))
	return nil
}

// CheckExternalModification compares the backend's content hash against
// the baseline. It only runs on a clean buffer; once the user has
// pending edits the comparison is meaningless. The working content is
// never touched, the drift is only flagged. Repeat checks while the
// flag is already raised stay silent.
func (s *EditSession) CheckExternalModification(ctx context.Context) error {
	s.mu.Lock()
	if s.path == "" {
		s.mu.Unlock()
		return ErrNoFileSelected
	}
	if s.dirty {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	path := s.path
	baseline := s.baseline
	s.mu.Unlock()

	stat, err := s.client.StatFile(ctx, s.serverID, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.gen != gen || s.dirty {
		s.mu.Unlock()
		return nil
	}
	changed := stat.Hash != baseline && !s.externallyModified
	if changed {
		s.externallyModified = true
	}
	notify := s.OnExternalChange
	s.mu.Unlock()

	if changed {
		s.logger.Info("external file modification detected", "path", path)
		if notify != nil {
			notify(path)
		}
	}
	return nil
}

// Refresh pulls the backend's current content, discarding the stale
// baseline. Used after the user accepts an external modification.
func (s *EditSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()
	if path == "" {
		return ErrNoFileSelected
	}
	return s.Load(ctx, path)
}

// DiscardAndSwitch abandons any unsaved edits and loads a new path.
func (s *EditSession) DiscardAndSwitch(ctx context.Context, newPath string) error {
	s.mu.Lock()
	s.content = ""
	s.dirty = false
	s.externallyModified = false
	s.mu.Unlock()
	return s.Load(ctx, newPath)
}

// SwitchFile navigates to another file, gating on confirm while the
// buffer is dirty. Declining aborts the switch and leaves the session
// untouched.
func (s *EditSession) SwitchFile(ctx context.Context, newPath string, confirm func() bool) error {
	if !s.Guard(confirm) {
		return ErrNavigationDeclined
	}
	return s.DiscardAndSwitch(ctx, newPath)
}

// Guard gates any operation that would replace the session. A clean
// buffer passes; a dirty one asks confirm, and a nil confirm blocks.
func (s *EditSession) Guard(confirm func() bool) bool {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return true
	}
	if confirm == nil {
		return false
	}
	return confirm()
}

// Close tears the session down. Subsequent stale async results are
// dropped by the generation guard.
func (s *EditSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.path = ""
	s.content = ""
	s.baseline = ""
	s.dirty = false
	s.externallyModified = false
}
