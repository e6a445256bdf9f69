package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is the time to wait after the last file change before
// reloading, so editors that write in several steps trigger one reload.
const debounceInterval = 500 * time.Millisecond

// Watcher monitors the servers/ definition directory and registers
// definitions dropped there by external tooling. It never deletes or
// mutates servers that already exist in the registry; command flows own
// those paths.
type Watcher struct {
	mu        sync.Mutex
	registry  *Registry
	dir       string
	sink      api.EventSink
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the given registry and definition
// directory. Registrations are announced through sink so connected
// sessions learn about externally added servers without a resync.
func NewWatcher(registry *Registry, dir string, sink api.EventSink) *Watcher {
	return &Watcher{registry: registry, dir: dir, sink: sink}
}

// Start begins watching the definition directory. Starting twice is a
// no-op; a missing directory is created first so the watch can attach.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		fsWatcher.Close()
		return err
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(fsWatcher.Events, fsWatcher.Errors)

	logging.Info("Registry", "Watching %s for server definitions", w.dir)
	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.running = false
}

// processEvents consumes fsnotify events until the watcher stops.
func (w *Watcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.scheduleReload(event.Name)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Warn("Registry", "Definition watcher error: %v", err)
		}
	}
}

// scheduleReload debounces rapid successive writes to the same file.
func (w *Watcher) scheduleReload(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debounceInterval, func() {
		w.loadFile(path)
	})
}

// loadFile reads one definition file and registers it if it is new.
func (w *Watcher) loadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warn("Registry", "Failed to read definition %s: %v", path, err)
		return
	}
	srv, err := w.registry.loadDefinition(data)
	if err != nil {
		logging.Warn("Registry", "Ignoring definition %s: %v", filepath.Base(path), err)
		return
	}
	if srv == nil {
		// Already registered; rewrites of known files are not creations.
		return
	}
	logging.Info("Registry", "Registered externally added definition %s", filepath.Base(path))
	w.sink.Publish(api.StatusEvent{
		Type:      api.EventServerCreated,
		ServerID:  srv.ID,
		Status:    srv.Status,
		Timestamp: time.Now(),
	})
}
