// Package teleprompter holds the broadcast script state for the teleprompter
// surface. Playback speed and scrolling stay local to the surface and are
// never synchronized back.
package teleprompter

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"studiorecorder/internal/ports"
)

// Script is the teleprompter text with optional file-backed live reload.
// Every edit is re-broadcast verbatim; there is no debouncing, so a keystroke
// may emit an event.
type Script struct {
	events ports.EventSink
	log    *slog.Logger

	mu   sync.Mutex
	text string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewScript(events ports.EventSink, log *slog.Logger) *Script {
	return &Script{events: events, log: log}
}

// Text returns the current script text.
func (s *Script) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// SetText stores and broadcasts the script text.
func (s *Script) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.events.TeleprompterTextChanged(text)
}

// WatchFile loads the script from path and re-broadcasts it whenever the file
// changes on disk.
func (s *Script) WatchFile(path string) error {
	if err := s.loadFile(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create script watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch script file %q: %w", path, err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.watchLoop(watcher, path)
	return nil
}

func (s *Script) watchLoop(watcher *fsnotify.Watcher, path string) {
	defer close(s.done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.loadFile(path); err != nil {
				s.log.Warn("script reload failed", "path", path, "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("script watcher error", "err", err)
		}
	}
}

func (s *Script) loadFile(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file %q: %w", path, err)
	}
	s.SetText(string(contents))
	return nil
}

// Close stops the file watcher, if any.
func (s *Script) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	done := s.done
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}
