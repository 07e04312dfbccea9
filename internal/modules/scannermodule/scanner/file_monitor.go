package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/mediainfo"
	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// FileMonitor keeps the catalog current after a scan completes: new video
// files are probed and upserted, removed files are deleted from the catalog.
// Events are debounced because most writers touch a file repeatedly while
// copying it.
type FileMonitor struct {
	store  *database.Store
	prober Prober
	bus    events.EventBus
	logger hclog.Logger

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	root     string
	pendingC map[string]*time.Timer
	debounce time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewFileMonitor creates a stopped monitor; call Watch to begin.
func NewFileMonitor(store *database.Store, prober Prober, bus events.EventBus, debounce time.Duration, logger hclog.Logger) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &FileMonitor{
		store:    store,
		prober:   prober,
		bus:      bus,
		logger:   logger,
		watcher:  watcher,
		pendingC: make(map[string]*time.Timer),
		debounce: debounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// Watch registers folderPath and its subdirectories and starts processing
// filesystem events.
func (fm *FileMonitor) Watch(folderPath string) error {
	root, err := filepath.Abs(folderPath)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return fs.SkipDir
		}
		return fm.watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	fm.mu.Lock()
	fm.root = root
	fm.mu.Unlock()

	fm.wg.Add(1)
	go fm.processEvents()

	fm.logger.Info("folder monitoring started", "path", root)
	return nil
}

func (fm *FileMonitor) processEvents() {
	defer fm.wg.Done()

	for {
		select {
		case event, ok := <-fm.watcher.Events:
			if !ok {
				return
			}
			fm.handleEvent(event)
		case err, ok := <-fm.watcher.Errors:
			if !ok {
				return
			}
			fm.logger.Warn("file watcher error", "error", err)
		case <-fm.stopCh:
			return
		}
	}
}

func (fm *FileMonitor) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if event.Op&fsnotify.Create != 0 {
				_ = fm.watcher.Add(event.Name)
			}
			return
		}
		if !mediainfo.IsSupportedVideoFile(event.Name) {
			return
		}
		fm.scheduleIngest(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if !mediainfo.IsSupportedVideoFile(event.Name) {
			return
		}
		fm.handleRemoved(event.Name)
	}
}

// scheduleIngest (re)arms the debounce timer for a path.
func (fm *FileMonitor) scheduleIngest(path string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if timer, ok := fm.pendingC[path]; ok {
		timer.Reset(fm.debounce)
		return
	}
	fm.pendingC[path] = time.AfterFunc(fm.debounce, func() {
		fm.mu.Lock()
		delete(fm.pendingC, path)
		fm.mu.Unlock()
		fm.ingest(path)
	})
}

// ingest probes a settled file and upserts its record.
func (fm *FileMonitor) ingest(path string) {
	select {
	case <-fm.stopCh:
		return
	default:
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}

	output, err := fm.prober.Probe(path)
	if err != nil {
		fm.logger.Warn("probe failed for monitored file", "file", path, "error", err)
		return
	}

	meta := mediainfo.Parse(output, path, uint64(info.Size()))
	record := recordFromMetadata(meta)
	if err := fm.store.UpsertVideo(record); err != nil {
		fm.logger.Warn("failed to catalog monitored file", "file", path, "error", err)
		return
	}

	fm.logger.Info("catalogued new file", "file", path)
	event := events.NewEvent(events.EventMonitorFileAdded, "File Added", path)
	event.Data = map[string]interface{}{"file_path": path}
	_ = fm.bus.PublishAsync(event)
}

func (fm *FileMonitor) handleRemoved(path string) {
	if err := fm.store.DeleteVideoByPath(path); err != nil {
		fm.logger.Warn("failed to remove catalog record", "file", path, "error", err)
		return
	}
	fm.logger.Info("removed catalog record for deleted file", "file", path)
	event := events.NewEvent(events.EventMonitorFileRemoved, "File Removed", path)
	event.Data = map[string]interface{}{"file_path": path}
	_ = fm.bus.PublishAsync(event)
}

// Stop ends monitoring and releases the watcher.
func (fm *FileMonitor) Stop() {
	fm.once.Do(func() {
		close(fm.stopCh)
		fm.watcher.Close()
		fm.wg.Wait()

		fm.mu.Lock()
		for path, timer := range fm.pendingC {
			timer.Stop()
			delete(fm.pendingC, path)
		}
		fm.mu.Unlock()
	})
}
