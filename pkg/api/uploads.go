package api

import (
	"errors"
	"sync"
	"time"

	"github.com/ethpandaops/testledger/pkg/submit"
	"github.com/google/uuid"
)

var errUploadNotFound = errors.New("upload not found or expired")

type pendingUpload struct {
	draft     *submit.Draft
	expiresAt time.Time
}

// uploadRegistry keeps pinned-but-unsubmitted drafts by id until they
// expire.
type uploadRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*pendingUpload
}

func newUploadRegistry(ttl time.Duration) *uploadRegistry {
	return &uploadRegistry{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*pendingUpload, 16),
	}
}

func (u *uploadRegistry) put(draft *submit.Draft) string {
	u.mu.Lock()
	defer u.mu.Unlock()

	id := uuid.NewString()
	u.entries[id] = &pendingUpload{draft: draft, expiresAt: u.now().Add(u.ttl)}

	return id
}

func (u *uploadRegistry) get(id string) (*submit.Draft, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	entry, ok := u.entries[id]
	if !ok || u.now().After(entry.expiresAt) {
		return nil, errUploadNotFound
	}

	return entry.draft, nil
}

func (u *uploadRegistry) remove(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	_, ok := u.entries[id]
	delete(u.entries, id)

	return ok
}

// expire drops expired entries and returns how many were removed.
func (u *uploadRegistry) expire() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	removed := 0

	for id, entry := range u.entries {
		if now.After(entry.expiresAt) {
			delete(u.entries, id)
			removed++
		}
	}

	return removed
}

func (u *uploadRegistry) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return len(u.entries)
}
