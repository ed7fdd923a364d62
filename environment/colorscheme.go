package environment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/CreativeUnicorns/suiteprefs"
)

// FileColorScheme follows a file whose content is "dark" or "light" and feeds
// changes into an embedded Static. It stands in for an OS dark-mode setting on
// hosts that have none, e.g. a file toggled by a desktop hook or a ConfigMap.
type FileColorScheme struct {
	*Static

	mu      sync.Mutex
	path    string
	logger  suiteprefs.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewFileColorScheme reads path once and returns a watcher over it. Other signals
// are served by base. A missing file reads as light.
func NewFileColorScheme(path string, base *Static, logger suiteprefs.Logger) (*FileColorScheme, error) {
	if logger == nil {
		logger = suiteprefs.NewDefaultLogger()
	}
	if base == nil {
		base = NewStatic(StaticConfig{Logger: logger})
	}

	f := &FileColorScheme{
		Static: base,
		path:   filepath.Clean(path),
		logger: logger,
	}

	dark, err := readScheme(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read color scheme file: %w", err)
	}
	base.SetPrefersDark(dark)

	return f, nil
}

// Start begins watching. It is non-blocking and a no-op when already running.
// The parent directory is watched so editors that replace the file are followed.
func (f *FileColorScheme) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	f.watcher = watcher
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.running = true

	go f.run(ctx, watcher, f.stopCh, f.doneCh)
	f.logger.Debug("Watching color scheme file", "path", f.path)
	return nil
}

// Close stops the watcher and waits for the event loop to exit.
func (f *FileColorScheme) Close() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	stopCh, doneCh, watcher := f.stopCh, f.doneCh, f.watcher
	f.mu.Unlock()

	close(stopCh)
	<-doneCh
	return watcher.Close()
}

func (f *FileColorScheme) run(ctx context.Context, watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("Color scheme watcher error", "error", err)
		}
	}
}

func (f *FileColorScheme) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != f.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	dark, err := readScheme(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("Failed to read color scheme file", "path", f.path, "error", err)
		return
	}
	f.SetPrefersDark(dark)
}

// readScheme reports whether the file at path says "dark".
func readScheme(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(string(data)), "dark"), nil
}
