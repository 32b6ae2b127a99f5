package core

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"

	"pkt.systems/blockdeck/schema"
)

// fileWatcher forwards on-disk changes under server directories to the
// event sink. This is the push channel backing external-modification
// detection; clients still poll as a fallback.
type fileWatcher struct {
	svc     *service
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	dirs map[string]schema.ServerID
}

func newFileWatcher(svc *service, logger pslog.Logger) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &fileWatcher{
		svc:     svc,
		watcher: watcher,
		dirs:    make(map[string]schema.ServerID),
	}
	go fw.run(logger)
	return fw, nil
}

// Add registers a server directory. Missing directories are skipped; the
// watch is retried the next time the server is created or started.
func (fw *fileWatcher) Add(serverID schema.ServerID, dir string) {
	if fw == nil || dir == "" {
		return
	}
	fw.mu.Lock()
	fw.dirs[dir] = serverID
	fw.mu.Unlock()
	_ = fw.watcher.Add(dir)
}

func (fw *fileWatcher) Close() error {
	return fw.watcher.Close()
}

func (fw *fileWatcher) run(logger pslog.Logger) {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			if logger != nil {
				logger.Warn("file watch error", "err", err)
			}
		}
	}
}

func (fw *fileWatcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	// Editor temp files churn constantly; skip them.
	if strings.HasPrefix(name, ".blockdeck-") || strings.HasSuffix(name, "~") {
		return
	}
	dir := filepath.Dir(event.Name)
	fw.mu.Lock()
	serverID, ok := fw.dirs[dir]
	fw.mu.Unlock()
	if !ok {
		return
	}
	if fw.svc.sink == nil {
		return
	}
	fw.svc.sink.OnFileEvent(schema.FileEvent{
		ServerID: serverID,
		Path:     name,
		Removed:  event.Op&(fsnotify.Remove|fsnotify.Rename) != 0,
	})
}
