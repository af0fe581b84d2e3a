// Package logbuf keeps a bounded, queryable history of application log
// entries, optionally mirrored to persistent storage.
package logbuf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Log levels kept in the buffer.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// DefaultCapacity is the default number of retained entries.
const DefaultCapacity = 1000

// Entry is a single log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Backend persists the buffer contents under a single slot.
type Backend interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
	Clear(ctx context.Context) error
	Close() error
}

// Buffer is a bounded in-memory log history. The oldest entries are
// evicted once capacity is reached. While storage is enabled every append
// is mirrored to the backend.
type Buffer struct {
	mu             sync.Mutex
	entries        []Entry
	capacity       int
	storageEnabled bool
	backend        Backend
}

// Options configures a Buffer.
type Options struct {
	Capacity       int
	StorageEnabled bool
	// Backend may be nil, in which case entries are kept in memory only.
	Backend Backend
}

// New creates a buffer.
func New(opts Options) *Buffer {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Buffer{
		capacity:       capacity,
		storageEnabled: opts.StorageEnabled && opts.Backend != nil,
		backend:        opts.Backend,
	}
}

// Load replaces the in-memory entries with the persisted ones.
func (b *Buffer) Load(ctx context.Context) error {
	if b.backend == nil {
		return nil
	}

	entries, err := b.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading log entries: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = entries
	b.trimLocked()

	return nil
}

// Append adds an entry, evicting the oldest ones beyond capacity.
func (b *Buffer) Append(ctx context.Context, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, e)
	b.trimLocked()

	if !b.storageEnabled {
		return nil
	}

	if err := b.backend.Save(ctx, b.entries); err != nil {
		return fmt.Errorf("saving log entries: %w", err)
	}

	return nil
}

func (b *Buffer) trimLocked() {
	if over := len(b.entries) - b.capacity; over > 0 {
		b.entries = append([]Entry(nil), b.entries[over:]...)
	}
}

// Entries returns a copy of the retained entries, oldest first. A
// non-empty level restricts the result to that level.
func (b *Buffer) Entries(level string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, 0, len(b.entries))

	for _, e := range b.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}

	return out
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.entries)
}

// Clear drops all entries, in memory and in storage.
func (b *Buffer) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = nil

	if b.backend == nil {
		return nil
	}

	if err := b.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clearing log storage: %w", err)
	}

	return nil
}

// SetCapacity changes the retention limit. Excess entries are dropped
// immediately.
func (b *Buffer) SetCapacity(n int) {
	if n <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.capacity = n
	b.trimLocked()
}

// EnableStorage toggles mirroring to the backend. It has no effect
// without a backend.
func (b *Buffer) EnableStorage(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.storageEnabled = enabled && b.backend != nil
}

// StorageEnabled reports whether appends are mirrored to the backend.
func (b *Buffer) StorageEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.storageEnabled
}

// Export writes all retained entries to w as indented JSON.
func (b *Buffer) Export(w io.Writer) error {
	entries := b.Entries("")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding log entries: %w", err)
	}

	return nil
}

// ExportFilename returns a timestamped download name for an export.
func ExportFilename(now time.Time) string {
	return "app-logs-" + now.UTC().Format("2006-01-02T15-04-05.000Z") + ".json"
}

// Close releases the backend.
func (b *Buffer) Close() error {
	if b.backend == nil {
		return nil
	}

	return b.backend.Close()
}
