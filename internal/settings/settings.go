// Package settings is the process-wide key/value store the cloud dialog reads
// credentials from. Values persist as a flat JSON object.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"

	"pktcloud/internal/logging"
)

// Keys used by the cloud dialog.
const (
	KeyUsername = "cloudUsername"
	KeyPassword = "cloudPassword"
	KeyRemember = "rememberLoginCheck"
)

// Store holds settings in memory and writes every change through to disk.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
}

// Open loads the store at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]any)}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory values with the file contents.
func (s *Store) Load() error {
	values, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

func readFile(path string) (map[string]any, error) {
	values := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	return values, nil
}

// String returns the text value for key, or def when unset.
func (s *Store) String(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch v := s.values[key].(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the boolean value for key, or def when unset or unparseable.
func (s *Store) Bool(key string, def bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch v := s.values[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Set stores value under key and saves the file.
func (s *Store) Set(key string, value any) error {
	return s.SetMany(map[string]any{key: value})
}

// SetMany stores several values with a single write.
func (s *Store) SetMany(kv map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range kv {
		s.values[k] = v
	}
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	logging.Settings("saved %d settings to %s", len(s.values), s.path)
	return nil
}

// reloadIfChanged re-reads the file and reports whether any value differs.
func (s *Store) reloadIfChanged() (bool, error) {
	values, err := readFile(s.path)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if reflect.DeepEqual(values, s.values) {
		return false, nil
	}
	s.values = values
	return true, nil
}
