package logbuf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileBackend stores slots in a single JSON document keyed by slot name.
type fileBackend struct {
	mu   sync.Mutex
	path string
	slot string
}

var _ Backend = (*fileBackend)(nil)

// NewFileBackend creates a backend writing slot into the JSON file at path.
func NewFileBackend(path, slot string) (Backend, error) {
	if path == "" {
		return nil, errors.New("file path is required")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	return &fileBackend{path: path, slot: slot}, nil
}

func (f *fileBackend) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}

		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	slots := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return slots, nil
	}

	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}

	return slots, nil
}

func (f *fileBackend) writeAll(slots map[string]json.RawMessage) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encoding slots: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}

	return nil
}

// Load implements Backend.
func (f *fileBackend) Load(_ context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.readAll()
	if err != nil {
		return nil, err
	}

	raw, ok := slots[f.slot]
	if !ok {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing slot %s: %w", f.slot, err)
	}

	return entries, nil
}

// Save implements Backend.
func (f *fileBackend) Save(_ context.Context, entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.readAll()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding entries: %w", err)
	}

	slots[f.slot] = raw

	return f.writeAll(slots)
}

// Clear implements Backend.
func (f *fileBackend) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.readAll()
	if err != nil {
		return err
	}

	if _, ok := slots[f.slot]; !ok {
		return nil
	}

	delete(slots, f.slot)

	return f.writeAll(slots)
}

// Close implements Backend.
func (f *fileBackend) Close() error {
	return nil
}
