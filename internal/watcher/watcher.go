// Package watcher watches a markup template directory and reports change
// batches with debouncing, so a burst of editor writes triggers one reload.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler handles a debounced batch of changed file paths.
type ChangeHandler func(paths []string) error

// TemplateWatcher watches one directory for markup template changes.
type TemplateWatcher struct {
	watcher  *fsnotify.Watcher
	delay    time.Duration
	handlers []ChangeHandler
	mutex    sync.Mutex
}

// New returns a watcher with the given debounce delay.
func New(debounceDelay time.Duration) (*TemplateWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &TemplateWatcher{watcher: watcher, delay: debounceDelay}, nil
}

// AddHandler adds a change handler.
func (tw *TemplateWatcher) AddHandler(handler ChangeHandler) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()
	tw.handlers = append(tw.handlers, handler)
}

// AddPath adds a directory to watch.
func (tw *TemplateWatcher) AddPath(path string) error {
	return tw.watcher.Add(filepath.Clean(path))
}

// Start watches until the context is cancelled, delivering debounced
// batches of changed .html paths to the handlers. Handler errors are
// returned through the errs channel without stopping the watch.
func (tw *TemplateWatcher) Start(ctx context.Context, errs chan<- error) {
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		paths := make([]string, 0, len(pending))
		for path := range pending {
			paths = append(paths, path)
		}
		pending = make(map[string]bool)
		timerC = nil

		tw.mutex.Lock()
		handlers := make([]ChangeHandler, len(tw.handlers))
		copy(handlers, tw.handlers)
		tw.mutex.Unlock()

		for _, handler := range handlers {
			if err := handler(paths); err != nil && errs != nil {
				select {
				case errs <- err:
				default:
				}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if !isTemplateFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(tw.delay)
			} else {
				timer.Reset(tw.delay)
			}
			timerC = timer.C
		case <-timerC:
			flush()
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			if errs != nil {
				select {
				case errs <- err:
				default:
				}
			}
		}
	}
}

// Stop closes the underlying watcher.
func (tw *TemplateWatcher) Stop() error {
	return tw.watcher.Close()
}

func isTemplateFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".html")
}
