package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrSlotUnsupported is returned by slots the host environment cannot provide
var ErrSlotUnsupported = errors.New("background slot not supported")

// Trigger and acknowledgement file names used by FileSlot
const (
	TriggerFileName = "sync.trigger"
	AckFileName     = "sync.ack"
)

// SlotHandler runs one background invocation. It must always return.
type SlotHandler func(ctx context.Context) BackgroundResult

// BackgroundSlot is the host capability for running work outside the
// foreground. The scheduler registers a handler once during Initialize.
type BackgroundSlot interface {
	Platform() string
	Register(ctx context.Context, handler SlotHandler) error
	Close() error
}

// ForegroundOnly is the slot for hosts without background execution
type ForegroundOnly struct{}

func (ForegroundOnly) Platform() string { return "foreground" }

func (ForegroundOnly) Register(context.Context, SlotHandler) error { return ErrSlotUnsupported }

func (ForegroundOnly) Close() error { return nil }

// FileSlot is a background slot driven by the host dropping a trigger file
// into a watched directory. Each run is acknowledged by writing the result
// as JSON to the ack file.
type FileSlot struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileSlot creates a slot watching dir
func NewFileSlot(dir string, logger *slog.Logger) *FileSlot {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSlot{
		dir:    dir,
		logger: logger,
	}
}

func (f *FileSlot) Platform() string { return "file" }

// TriggerPath returns the file the host creates to request a run
func (f *FileSlot) TriggerPath() string { return filepath.Join(f.dir, TriggerFileName) }

// AckPath returns the file each run's result is written to
func (f *FileSlot) AckPath() string { return filepath.Join(f.dir, AckFileName) }

// Register starts watching the directory and invokes handler per trigger file
func (f *FileSlot) Register(ctx context.Context, handler SlotHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return fmt.Errorf("background slot already registered")
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create slot directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", f.dir, err)
	}

	f.watcher = watcher
	f.done = make(chan struct{})
	f.running = true

	f.wg.Add(1)
	go f.watch(ctx, handler)

	// A trigger left behind while nothing was watching still counts
	if _, err := os.Stat(f.TriggerPath()); err == nil {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.handle(ctx, handler)
		}()
	}

	f.logger.Info("background slot registered", "dir", f.dir)
	return nil
}

func (f *FileSlot) watch(ctx context.Context, handler SlotHandler) {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != TriggerFileName {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				f.handle(ctx, handler)
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("background slot watcher error", "error", err)
		}
	}
}

// handle consumes the trigger file, runs handler and writes the acknowledgement
func (f *FileSlot) handle(ctx context.Context, handler SlotHandler) {
	// Removing first collapses the Create and Write events of one trigger
	if err := os.Remove(f.TriggerPath()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("failed to consume trigger file", "error", err)
		}
		return
	}

	result := handler(ctx)
	result.Acknowledged = true

	if err := f.acknowledge(result); err != nil {
		f.logger.Error("failed to acknowledge background run", "error", err)
	}
}

func (f *FileSlot) acknowledge(result BackgroundResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.AckPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.AckPath())
}

// Close stops watching. In-progress runs finish first.
func (f *FileSlot) Close() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	close(f.done)
	watcher := f.watcher
	f.mu.Unlock()

	f.wg.Wait()
	return watcher.Close()
}
