// Package watch reports changes to gel definition files.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change observed.
type Op int

const (
	Created Op = iota
	Modified
)

func (o Op) String() string {
	if o == Created {
		return "created"
	}
	return "modified"
}

// Event is one change to a watched file.
type Event struct {
	Path string
	Op   Op
}

// Watcher watches one directory for changes to files with the given
// extensions.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	logger     *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithExtensions replaces the watched extensions (default ".cue").
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = exts
	}
}

// WithLogger sets the logger for watcher errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a watcher. Call Close when done.
func New(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		watcher:    fw,
		extensions: []string{".cue"},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts monitoring dir. The returned channel is closed when ctx is
// done or the watcher is closed. Removals and renames are not reported.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.matches(ev.Name) {
					continue
				}
				var op Op
				switch {
				case ev.Has(fsnotify.Create):
					op = Created
				case ev.Has(fsnotify.Write):
					op = Modified
				default:
					continue
				}
				select {
				case events <- Event{Path: ev.Name, Op: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "dir", dir, "error", err)
			}
		}
	}()
	return events, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) matches(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Debounce collapses bursts of events: pending events are forwarded, one per
// path, once no further event has arrived for quiet. Editors commonly emit
// several writes per save.
func Debounce(ctx context.Context, in <-chan Event, quiet time.Duration) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		var pending []Event
		for {
			var fire <-chan time.Time
			if len(pending) > 0 {
				fire = time.After(quiet)
			}
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					for _, p := range pending {
						select {
						case out <- p:
						case <-ctx.Done():
							return
						}
					}
					return
				}
				pending = merge(pending, ev)
			case <-fire:
				for _, p := range pending {
					select {
					case out <- p:
					case <-ctx.Done():
						return
					}
				}
				pending = nil
			}
		}
	}()
	return out
}

func merge(pending []Event, ev Event) []Event {
	for i, p := range pending {
		if p.Path == ev.Path {
			if p.Op == Created {
				ev.Op = Created
			}
			pending[i] = ev
			return pending
		}
	}
	return append(pending, ev)
}
