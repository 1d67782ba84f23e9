// Package settingsfile persists live settings as YAML and hot-reloads them
// when the file is edited.
package settingsfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/crowdbox/internal/app/settings"
)

// DefaultDebounce coalesces editor write bursts into one reload.
const DefaultDebounce = 250 * time.Millisecond

// Store reads and writes the settings file.
type Store struct {
	mu       sync.Mutex
	path     string
	debounce time.Duration
	written  []byte            // Last content written by Save; its own events are ignored
	current  settings.Settings // Last settings loaded, saved or reloaded
}

// New creates a store for path.
func New(path string) *Store {
	return &Store{path: path, debounce: DefaultDebounce, current: settings.Default()}
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the settings file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the settings. A missing file yields defaults. Invalid content
// is an error.
func (s *Store) Load() (settings.Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return settings.Default(), nil
	}
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "failed to read settings file")
	}
	st, err := parse(data)
	if err != nil {
		return settings.Settings{}, err
	}
	s.mu.Lock()
	s.current = st.Clone()
	s.mu.Unlock()
	return st, nil
}

func decodeMap(data []byte) (map[string]any, error) {
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "failed to parse settings file")
	}
	return values, nil
}

func parse(data []byte) (settings.Settings, error) {
	values, err := decodeMap(data)
	if err != nil {
		return settings.Settings{}, err
	}
	if values == nil {
		return settings.Default(), nil
	}
	st, err := settings.DecodeSettings(values)
	if err != nil {
		return settings.Settings{}, err
	}
	if err := st.Validate(); err != nil {
		return settings.Settings{}, errors.Wrap(err, "invalid settings file")
	}
	return st, nil
}

// Save writes the settings atomically.
func (s *Store) Save(st settings.Settings) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create settings directory")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write settings file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace settings file")
	}
	s.written = data
	s.current = st.Clone()
	return nil
}

// Watch calls fn with the new settings whenever the file changes on disk.
// An edit is applied field by field over the current settings: invalid
// fields are logged and keep their value, the valid ones apply together.
// It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(settings.Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer watcher.Close()

	// The directory is watched so atomic replaces are seen
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create settings directory")
	}
	if err := watcher.Add(dir); err != nil {
		return errors.Wrap(err, "failed to watch settings directory")
	}
	zlog.Info().Msgf("settings: watching %s", s.path)

	name := filepath.Clean(s.path)
	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(s.debounce)
			reload = timer.C
		case <-reload:
			reload = nil
			s.reload(fn)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Msgf("settings: watcher error: %v", err)
		}
	}
}

func (s *Store) reload(fn func(settings.Settings)) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			zlog.Warn().Msgf("settings: reload failed: %v", err)
		}
		return
	}

	s.mu.Lock()
	own := bytes.Equal(data, s.written)
	s.mu.Unlock()
	if own {
		return
	}

	values, err := decodeMap(data)
	if err != nil {
		zlog.Warn().Msgf("settings: ignoring invalid edit: %v", err)
		return
	}
	u, rejected, err := settings.DecodeUpdate(values)
	if err != nil {
		zlog.Warn().Msgf("settings: ignoring invalid edit: %v", err)
		return
	}

	s.mu.Lock()
	st, invalid := u.Apply(s.current)
	changed := !st.Equal(s.current)
	s.written = data
	s.current = st.Clone()
	s.mu.Unlock()

	for _, fe := range append(rejected, invalid...) {
		zlog.Warn().Msgf("settings: ignoring invalid field in %s: %v", s.path, fe)
	}
	if !changed {
		return
	}

	zlog.Info().Msgf("settings: reloaded from %s", s.path)
	fn(st)
}
