// Package ipfs pins files to IPFS and resolves content identifiers to
// public gateway URLs.
package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUploadFailed is returned when a pinning service rejects a file.
	ErrUploadFailed = errors.New("failed to upload file to IPFS")

	// ErrTooLarge is returned for files above the configured size limit.
	ErrTooLarge = errors.New("file exceeds maximum upload size")
)

// FileDescriptor identifies a pinned file.
type FileDescriptor struct {
	CID  string `json:"cid"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// File is a local file to be pinned.
type File struct {
	Name string
	Size int64
	Body io.ReadSeeker
}

// Pinner pins a file and returns its descriptor.
type Pinner interface {
	Name() string
	Pin(ctx context.Context, file File) (FileDescriptor, error)
}

// NewPinner builds the pinner selected by cfg.Pinner. Files above the
// configured maximum size are rejected before any request is made.
func NewPinner(log logrus.FieldLogger, cfg *config.IPFSConfig, gateways *Gateways) (Pinner, error) {
	maxSize, err := units.FromHumanSize(cfg.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("parsing max upload size: %w", err)
	}

	var inner Pinner

	switch cfg.Pinner {
	case config.PinnerPinata:
		inner = NewPinataPinner(log, cfg.Pinata, gateways)
	case config.PinnerKubo:
		inner = NewKuboPinner(log, cfg.Kubo, gateways)
	case config.PinnerFilebase:
		inner, err = NewFilebasePinner(log, cfg.Filebase, gateways)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown pinner %q", cfg.Pinner)
	}

	return &limitedPinner{Pinner: inner, maxSize: maxSize}, nil
}

type limitedPinner struct {
	Pinner
	maxSize int64
}

func (p *limitedPinner) Pin(ctx context.Context, file File) (FileDescriptor, error) {
	if p.maxSize > 0 && file.Size > p.maxSize {
		return FileDescriptor{}, fmt.Errorf("%w: %s is %s, limit is %s", ErrTooLarge,
			file.Name, units.HumanSize(float64(file.Size)), units.HumanSize(float64(p.maxSize)))
	}

	return p.Pinner.Pin(ctx, file)
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}

func uploadError(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUploadFailed, service, err)
}
