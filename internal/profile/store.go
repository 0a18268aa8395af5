package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Store holds the active profile and keeps it current when a profile file
// is edited on disk. A rewrite that fails validation keeps the last good
// profile in place.
type Store struct {
	mu      sync.RWMutex
	current Profile

	path    string
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	stopOnce sync.Once
	done     chan struct{}
}

// NewStore builds a store from an optional profile file. An empty path
// selects the built-in default. An existing file that fails validation is
// a startup error rather than a silent fallback.
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		current: Default(),
		path:    path,
		logger:  logger.With().Str("component", "profile").Logger(),
		done:    make(chan struct{}),
	}

	if path == "" {
		return s, nil
	}

	p, err := loadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", path, err)
	}
	s.current = merge(Default(), p)
	s.logger.Info().Str("path", path).Str("version", s.current.Version).Msg("Profile loaded")

	return s, nil
}

// Current returns the active profile.
func (s *Store) Current() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Watch starts reloading the profile file on change. No-op when the store
// was built without a file.
func (s *Store) Watch() error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating profile watcher: %w", err)
	}
	s.watcher = watcher

	// Watch the directory rather than the file itself: editors that
	// rename-and-replace would otherwise detach the watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching profile dir: %w", err)
	}

	go s.watchLoop()
	return nil
}

// Close stops the watcher.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}

func (s *Store) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.concernsProfile(event) {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("Profile watcher error")
		}
	}
}

func (s *Store) concernsProfile(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(s.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (s *Store) reload() {
	p, err := loadFile(s.path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Profile reload rejected, keeping previous")
		return
	}

	s.mu.Lock()
	s.current = merge(Default(), p)
	version := s.current.Version
	s.mu.Unlock()

	s.logger.Info().Str("version", version).Msg("Profile reloaded")
}

func loadFile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(Schema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return Profile{}, fmt.Errorf("validating profile: %w", err)
	}
	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return Profile{}, fmt.Errorf("invalid profile: %s", strings.Join(issues, "; "))
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile: %w", err)
	}
	return p, nil
}
