package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"blackbox-operator/pkg/logging"
)

const detectorSubsystem = "FilesystemDetector"

// DefaultDebounceInterval is used when no debounce interval is configured.
const DefaultDebounceInterval = 500 * time.Millisecond

// FilesystemDetector implements ChangeDetector with fsnotify.
//
// Writes to StorePath produce configChanged. Creation of ReadyPath (the
// supervisor socket, or the root directory of the local backend) produces
// containerReady. Both files are watched through their parent directories so
// atomic replacements and files that do not exist yet are seen.
type FilesystemDetector struct {
	mu sync.Mutex

	storePath string
	readyPath string

	watcher          *fsnotify.Watcher
	debounceInterval time.Duration
	pendingEvents    map[Trigger]*time.Timer

	stopCh  chan struct{}
	running bool
}

// NewFilesystemDetector creates a detector. Either path may be empty to skip
// that trigger.
func NewFilesystemDetector(storePath, readyPath string, debounceInterval time.Duration) *FilesystemDetector {
	if debounceInterval == 0 {
		debounceInterval = DefaultDebounceInterval
	}
	d := &FilesystemDetector{
		debounceInterval: debounceInterval,
		pendingEvents:    make(map[Trigger]*time.Timer),
		stopCh:           make(chan struct{}),
	}
	if storePath != "" {
		d.storePath = filepath.Clean(storePath)
	}
	if readyPath != "" {
		d.readyPath = filepath.Clean(readyPath)
	}
	return d
}

// Start begins watching. If ReadyPath already exists a containerReady event
// is emitted right away.
func (d *FilesystemDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.mu.Unlock()
		return err
	}

	d.watcher = watcher
	d.running = true
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	for _, path := range []string{d.storePath, d.readyPath} {
		if path == "" {
			continue
		}
		if err := d.addWatch(filepath.Dir(path)); err != nil {
			_ = d.Stop()
			return err
		}
	}

	go d.processEvents(ctx, changes)

	if d.readyPath != "" {
		if _, err := os.Stat(d.readyPath); err == nil {
			d.emit(ChangeEvent{Trigger: TriggerContainerReady, Path: d.readyPath, Timestamp: time.Now()}, changes)
		}
	}

	logging.Info(detectorSubsystem, "Started watching %s and %s", d.storePath, d.readyPath)
	return nil
}

func (d *FilesystemDetector) addWatch(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, watched := range d.watcher.WatchList() {
		if watched == dir {
			return nil
		}
	}
	if err := d.watcher.Add(dir); err != nil {
		return err
	}
	logging.Debug(detectorSubsystem, "Watching directory: %s", dir)
	return nil
}

func (d *FilesystemDetector) processEvents(ctx context.Context, changes chan<- ChangeEvent) {
	d.mu.Lock()
	watcher := d.watcher
	stopCh := d.stopCh
	d.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			d.cleanupPendingEvents()
			return

		case <-stopCh:
			d.cleanupPendingEvents()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFsEvent(event, changes)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error(detectorSubsystem, err, "Filesystem watcher error")
		}
	}
}

// handleFsEvent maps a raw event to a trigger, if it concerns a watched file.
func (d *FilesystemDetector) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	name := filepath.Clean(event.Name)

	var trigger Trigger
	switch {
	case d.storePath != "" && name == d.storePath:
		if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
			!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
			return
		}
		trigger = TriggerConfigChanged
	case d.readyPath != "" && name == d.readyPath:
		if !event.Op.Has(fsnotify.Create) {
			return
		}
		trigger = TriggerContainerReady
	default:
		return
	}

	d.debounceEvent(ChangeEvent{Trigger: trigger, Path: name, Timestamp: time.Now()}, changes)
}

// debounceEvent collapses bursts of events for the same trigger into one.
func (d *FilesystemDetector) debounceEvent(event ChangeEvent, changes chan<- ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.pendingEvents[event.Trigger]; ok {
		timer.Stop()
	}

	d.pendingEvents[event.Trigger] = time.AfterFunc(d.debounceInterval, func() {
		d.mu.Lock()
		_, ok := d.pendingEvents[event.Trigger]
		delete(d.pendingEvents, event.Trigger)
		d.mu.Unlock()

		if ok {
			d.emit(event, changes)
		}
	})
}

func (d *FilesystemDetector) emit(event ChangeEvent, changes chan<- ChangeEvent) {
	select {
	case changes <- event:
		logging.Debug(detectorSubsystem, "Emitted %s for %s", event.Trigger, event.Path)
	default:
		logging.Warn(detectorSubsystem, "Change event channel full, dropping %s for %s", event.Trigger, event.Path)
	}
}

func (d *FilesystemDetector) cleanupPendingEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, timer := range d.pendingEvents {
		timer.Stop()
	}
	d.pendingEvents = make(map[Trigger]*time.Timer)
}

// Stop gracefully stops the filesystem detector.
func (d *FilesystemDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.running = false
	close(d.stopCh)

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			logging.Error(detectorSubsystem, err, "Error closing filesystem watcher")
		}
		d.watcher = nil
	}

	logging.Info(detectorSubsystem, "Stopped filesystem detector")
	return nil
}
