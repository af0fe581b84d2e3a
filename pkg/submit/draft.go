package submit

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethpandaops/testledger/pkg/ipfs"
)

// Draft holds the file attached to a pending submission and the descriptor
// returned once it is pinned. Attaching a new file discards any previous
// upload.
type Draft struct {
	mu   sync.Mutex
	file *ipfs.File
	desc *ipfs.FileDescriptor
}

// NewDraft returns an empty draft.
func NewDraft() *Draft {
	return &Draft{}
}

// Attach replaces the attached file and clears the upload result.
func (d *Draft) Attach(file ipfs.File) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.file = &file
	d.desc = nil
}

// Upload pins the attached file. The descriptor is kept only if the
// attachment did not change while the upload was in flight.
func (d *Draft) Upload(ctx context.Context, pinner ipfs.Pinner) (ipfs.FileDescriptor, error) {
	d.mu.Lock()
	file := d.file
	d.mu.Unlock()

	if file == nil {
		return ipfs.FileDescriptor{}, ErrNoFile
	}

	desc, err := pinner.Pin(ctx, *file)
	if err != nil {
		return ipfs.FileDescriptor{}, fmt.Errorf("uploading %s: %w", file.Name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != file {
		return ipfs.FileDescriptor{}, ErrDraftChanged
	}

	d.desc = &desc

	return desc, nil
}

// Remove clears the attached file and upload result.
func (d *Draft) Remove() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.file = nil
	d.desc = nil
}

// File returns the attached file.
func (d *Draft) File() (ipfs.File, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return ipfs.File{}, false
	}

	return *d.file, true
}

// Descriptor returns the upload result.
func (d *Draft) Descriptor() (ipfs.FileDescriptor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.desc == nil {
		return ipfs.FileDescriptor{}, false
	}

	return *d.desc, true
}
