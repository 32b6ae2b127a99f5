package console

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pkt.systems/blockdeck/schema"
)

// fileBackend simulates the backend's view of one file.
type fileBackend struct {
	mu       sync.Mutex
	content  string
	writeErr error
	writes   int
}

func (b *fileBackend) setContent(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.content = content
}

func (b *fileBackend) getContent() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

func (b *fileBackend) setWriteErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

func (b *fileBackend) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func (b *fileBackend) client() *fakeClient {
	return &fakeClient{
		fetchFile: func(context.Context, schema.ServerID, string) (string, error) {
			return b.getContent(), nil
		},
		writeFile: func(_ context.Context, _ schema.ServerID, _, content string) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.writes++
			if b.writeErr != nil {
				return b.writeErr
			}
			b.content = content
			return nil
		},
		statFile: func(context.Context, schema.ServerID, string) (schema.FileStat, error) {
			return schema.FileStat{Hash: schema.HashContent([]byte(b.getContent()))}, nil
		},
	}
}

func TestEditSessionLoadEditSave(t *testing.T) {
	backend := &fileBackend{content: "motd=old"}
	s := NewEditSession(backend.client(), "srv-1", nil)

	if err := s.Load(context.Background(), "server.properties"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Dirty() || s.ExternallyModified() {
		t.Fatalf("expected clean session after load")
	}
	if s.Content() != "motd=old" {
		t.Fatalf("unexpected content %q", s.Content())
	}

	s.Edit("motd=new")
	if !s.Dirty() {
		t.Fatalf("expected dirty after edit")
	}
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if s.Dirty() {
		t.Fatalf("expected clean after save")
	}
	if backend.getContent() != "motd=new" {
		t.Fatalf("backend holds %q", backend.getContent())
	}
}

func TestSaveFailurePreservesContentAndDirty(t *testing.T) {
	backend := &fileBackend{content: "motd=old", writeErr: errors.New("disk full")}
	s := NewEditSession(backend.client(), "srv-1", nil)
	if err := s.Load(context.Background(), "server.properties"); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Edit("motd=new")
	if err := s.Save(context.Background()); err == nil {
		t.Fatalf("expected save failure")
	}
	if !s.Dirty() {
		t.Fatalf("dirty flag lost on failed save")
	}
	if s.Content() != "motd=new" {
		t.Fatalf("content lost on failed save: %q", s.Content())
	}
	// Retry after the backend recovers.
	backend.setWriteErr(nil)
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("retry save: %v", err)
	}
	if backend.getContent() != "motd=new" {
		t.Fatalf("backend holds %q after retry", backend.getContent())
	}
}

func TestEditDuringInFlightSaveStaysDirty(t *testing.T) {
	backend := &fileBackend{content: "motd=a"}
	client := backend.client()
	writeStarted := make(chan struct{})
	writeRelease := make(chan struct{})
	write := client.writeFile
	var startOnce sync.Once
	client.writeFile = func(ctx context.Context, id schema.ServerID, path, content string) error {
		startOnce.Do(func() { close(writeStarted) })
		<-writeRelease
		return write(ctx, id, path, content)
	}
	s := NewEditSession(client, "srv-1", nil)
	if err := s.Load(context.Background(), "server.properties"); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Edit("motd=b")

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-writeStarted
	// The user keeps typing while the write is on the wire.
	s.Edit("motd=c")
	close(writeRelease)
	if err := <-done; err != nil {
		t.Fatalf("save: %v", err)
	}

	if !s.Dirty() {
		t.Fatalf("edit made during in-flight save lost its dirty flag")
	}
	if s.Content() != "motd=c" {
		t.Fatalf("working content clobbered: %q", s.Content())
	}
	if backend.getContent() != "motd=b" {
		t.Fatalf("backend holds %q, expected the saved snapshot", backend.getContent())
	}
	// A second save persists the interleaved edit and settles clean.
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if s.Dirty() || backend.getContent() != "motd=c" {
		t.Fatalf("second save did not persist the edit: dirty=%v backend=%q", s.Dirty(), backend.getContent())
	}
}

func TestCleanSaveShortCircuits(t *testing.T) {
	backend := &fileBackend{content: "motd=old"}
	s := NewEditSession(backend.client(), "srv-1", nil)
	if err := s.Load(context.Background(), "server.properties"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("clean save: %v", err)
	}
	if backend.writeCount() != 0 {
		t.Fatalf("clean save must not hit the backend, got %d writes", backend.writeCount())
	}
	if s.Content() != "motd=old" {
		t.Fatalf("content corrupted by clean save: %q", s.Content())
	}
}

func TestSaveWithoutFileSelected(t *testing.T) {
	s := NewEditSession((&fileBackend{}).client(), "srv-1", nil)
	if err := s.Save(context.Background()); !errors.Is(err, ErrNoFileSelected) {
		t.Fatalf("expected ErrNoFileSelected, got %v", err)
	}
}

func TestExternalModificationFlagged(t *testing.T) {
	backend := &fileBackend{content: "motd=old"}
	s := NewEditSession(backend.client(), "srv-1", nil)
	notified := 0
	s.OnExternalChange = func(string) { notified++ }
	if err := s.Load(context.Background(), "server.properties"); err != nil {
		t.Fatalf("load: %v", err)
	}

	backend.setContent("motd=changed-elsewhere")
	if err := s.CheckExternalModification(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !s.ExternallyModified() {
		t.Fatalf("expected external modification flag")
	}
	if s.Content() != "motd=old" {
		t.Fatalf("working content must not be overwritten, got %q", s.Content())
	}
	// Repeat polls against the same drift stay silent.
	if err := s.CheckExternalModification(context.Background()); err != nil {
		t.Fatalf("second check: %v", err)
	}
	if notified != 1 {
		t.Fatalf("expected one notification per drift, got %d", notified)
	}

	// Explicit refresh pulls the new content and clears the flag.
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if s.ExternallyModified() {
		t.Fatalf("flag should clear after refresh")
	}
	if s.Content() != "motd=changed-elsewhere" {
		t.Fatalf("refresh did not pull new content: %q", s.Content())
	}
}

func TestDirtySuppressesExternalModification(t *testing.T) {
	backend := &fileBackend{content: "motd=old"}
	s := NewEditSession(backend.client(), "srv-1", nil)
	if err := s.Load(context.Background(), "server.properties"); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Edit("motd=mine")
	backend.setContent("motd=theirs")
	if err := s.CheckExternalModification(context.Background()); err != nil {
		t.Fatalf("check: %v", err)
	}
	if s.ExternallyModified() {
		t.Fatalf("external flag must stay off while dirty")
	}
	if s.Content() != "motd=mine" {
		t.Fatalf("working content clobbered: %q", s.Content())
	}
}

func TestGuardBlocksDirtyNavigation(t *testing.T) {
	backend := &fileBackend{content: "a=1"}
	s := NewEditSession(backend.client(), "srv-1", nil)
	if err := s.Load(context.Background(), "a.yml"); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Edit("a=2")

	// Declining keeps the session untouched.
	err := s.SwitchFile(context.Background(), "b.yml", func() bool { return false })
	if !errors.Is(err, ErrNavigationDeclined) {
		t.Fatalf("expected ErrNavigationDeclined, got %v", err)
	}
	if s.Path() != "a.yml" || s.Content() != "a=2" || !s.Dirty() {
		t.Fatalf("session mutated by declined navigation")
	}

	// Confirming discards and loads the new file.
	backend.setContent("b=1")
	if err := s.SwitchFile(context.Background(), "b.yml", func() bool { return true }); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if s.Path() != "b.yml" || s.Dirty() {
		t.Fatalf("expected clean session on b.yml, got path=%q dirty=%v", s.Path(), s.Dirty())
	}
	if s.Content() != "b=1" {
		t.Fatalf("unexpected content %q", s.Content())
	}
}

func TestGuardPassesCleanSessionWithoutConfirm(t *testing.T) {
	backend := &fileBackend{content: "a=1"}
	s := NewEditSession(backend.client(), "srv-1", nil)
	if err := s.Load(context.Background(), "a.yml"); err != nil {
		t.Fatalf("load: %v", err)
	}
	confirmCalls := 0
	if !s.Guard(func() bool { confirmCalls++; return false }) {
		t.Fatalf("clean session must pass the guard")
	}
	if confirmCalls != 0 {
		t.Fatalf("confirm must not fire for a clean session")
	}
}

func TestEditWithoutLoadIsIgnored(t *testing.T) {
	s := NewEditSession((&fileBackend{}).client(), "srv-1", nil)
	s.Edit("orphan")
	if s.Dirty() || s.Content() != "" {
		t.Fatalf("edit without a loaded file must be ignored")
	}
}
