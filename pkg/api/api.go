// Package api exposes the dashboard over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/ethpandaops/testledger/pkg/dashboard"
	"github.com/ethpandaops/testledger/pkg/logbuf"
	"github.com/sirupsen/logrus"
)

const (
	shutdownTimeout        = 10 * time.Second
	uploadCleanupInterval  = time.Minute
	multipartMemoryLimit   = 32 << 20
	multipartOverheadBytes = 1 << 20
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

// Options configures the API server.
type Options struct {
	Config  *config.APIConfig
	Service dashboard.Service
	Logs    *logbuf.Buffer

	// MaxUploadBytes bounds the multipart request body.
	MaxUploadBytes int64
}

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	svc        dashboard.Service
	logs       *logbuf.Buffer
	uploads    *uploadRegistry
	metrics    *metrics
	maxUpload  int64
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(log logrus.FieldLogger, opts Options) Server {
	return newServer(log, opts)
}

func newServer(log logrus.FieldLogger, opts Options) *server {
	s := &server{
		log:       log.WithField("component", "api"),
		cfg:       opts.Config,
		svc:       opts.Service,
		logs:      opts.Logs,
		uploads:   newUploadRegistry(opts.Config.Uploads.TTL),
		maxUpload: opts.MaxUploadBytes,
		done:      make(chan struct{}),
	}

	s.metrics = newMetrics(s.uploads)

	return s
}

// Start connects the wallet, if possible, and starts the HTTP server. A
// failed connection is logged and retried through POST /network/connect.
func (s *server) Start(ctx context.Context) error {
	if status, err := s.svc.Connect(ctx); err != nil {
		s.log.WithError(err).Warn("Wallet connection failed, serving without a session")
	} else {
		s.log.WithFields(logrus.Fields{
			"account":  status.Account,
			"deployed": status.Deployed,
		}).Info("Wallet connected")
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Expire uploads that were never submitted.
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(uploadCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.uploads.expire(); n > 0 {
					s.log.WithField("count", n).Debug("Expired pending uploads")
				}
			case <-s.done:
				return
			}
		}
	}()

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	s.svc.Disconnect()

	s.log.Info("API server stopped")

	return nil
}
