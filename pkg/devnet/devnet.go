// Package devnet runs a local anvil development chain in Docker.
package devnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	managedByLabel = "testledger.managed-by"
	managedByValue = "testledger"
	chainIDLabel   = "testledger.chain-id"

	rpcPort = "8545"

	readyTimeout      = 30 * time.Second
	readyPollInterval = 500 * time.Millisecond
)

// ErrNotFound is returned when the devnet container does not exist.
var ErrNotFound = errors.New("devnet container not found")

// Status describes the devnet container.
type Status struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Running bool   `json:"running"`
	RPCURL  string `json:"rpc_url"`
	ChainID uint64 `json:"chain_id"`
}

// Manager controls the devnet container lifecycle.
type Manager interface {
	// Up pulls the image per the pull policy, creates or restarts the
	// container and waits until the RPC endpoint answers.
	Up(ctx context.Context) (*Status, error)

	// Down stops and removes the container.
	Down(ctx context.Context) error

	// Status inspects the container.
	Status(ctx context.Context) (*Status, error)

	// Logs copies container output to w, following it when follow is set.
	Logs(ctx context.Context, w io.Writer, follow bool) error

	Close() error
}

// NewManager creates a manager talking to the Docker daemon from the
// environment.
func NewManager(log logrus.FieldLogger, cfg config.DevnetConfig) (Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	return &manager{
		log:    log.WithField("component", "devnet"),
		cfg:    cfg,
		client: cli,
	}, nil
}

type manager struct {
	log    logrus.FieldLogger
	cfg    config.DevnetConfig
	client *client.Client
}

var _ Manager = (*manager)(nil)

// RPCURL returns the host endpoint of the devnet's RPC port.
func RPCURL(cfg config.DevnetConfig) string {
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.HostPort)
}

// containerConfig builds the anvil container and host configuration.
func containerConfig(cfg config.DevnetConfig) (*container.Config, *container.HostConfig) {
	port := nat.Port(rpcPort + "/tcp")

	containerCfg := &container.Config{
		Image:      cfg.Image,
		Entrypoint: []string{"anvil"},
		Cmd: []string{
			"--host", "0.0.0.0",
			"--port", rpcPort,
			"--chain-id", strconv.FormatUint(cfg.ChainID, 10),
		},
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels: map[string]string{
			managedByLabel: managedByValue,
			chainIDLabel:   strconv.FormatUint(cfg.ChainID, 10),
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{
				HostIP:   "127.0.0.1",
				HostPort: strconv.Itoa(cfg.HostPort),
			}},
		},
	}

	return containerCfg, hostCfg
}

// Up implements Manager.
func (m *manager) Up(ctx context.Context) (*Status, error) {
	if _, err := m.client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connecting to docker daemon: %w", err)
	}

	if err := m.pullImage(ctx); err != nil {
		return nil, err
	}

	status, err := m.Status(ctx)

	switch {
	case err == nil && status.Running:
		m.log.WithField("id", shortID(status.ID)).Info("Devnet already running")

		return status, nil
	case err == nil:
		if err := m.client.ContainerStart(ctx, status.ID, container.StartOptions{}); err != nil {
			return nil, fmt.Errorf("starting container %s: %w", shortID(status.ID), err)
		}
	case errors.Is(err, ErrNotFound):
		containerCfg, hostCfg := containerConfig(m.cfg)

		resp, err := m.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, m.cfg.ContainerName)
		if err != nil {
			return nil, fmt.Errorf("creating container: %w", err)
		}

		if err := m.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			return nil, fmt.Errorf("starting container %s: %w", shortID(resp.ID), err)
		}

		m.log.WithField("id", shortID(resp.ID)).Info("Created devnet container")
	default:
		return nil, err
	}

	if err := m.waitReady(ctx); err != nil {
		return nil, err
	}

	return m.Status(ctx)
}

// waitReady polls the RPC endpoint until it reports the expected chain.
func (m *manager) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	url := RPCURL(m.cfg)

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	var lastErr error

	for {
		if lastErr = probe(ctx, url, m.cfg.ChainID); lastErr == nil {
			m.log.WithField("rpc_url", url).Info("Devnet ready")

			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for devnet rpc at %s: %w", url, lastErr)
		case <-ticker.C:
		}
	}
}

func probe(ctx context.Context, url string, chainID uint64) error {
	w, err := chain.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer w.Close()

	id, err := w.Backend().ChainID(ctx)
	if err != nil {
		return err
	}

	if id.Uint64() != chainID {
		return fmt.Errorf("unexpected chain id %d, want %d", id.Uint64(), chainID)
	}

	return nil
}

// Down implements Manager.
func (m *manager) Down(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	if err := m.client.ContainerRemove(ctx, status.ID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}); err != nil {
		return fmt.Errorf("removing container %s: %w", shortID(status.ID), err)
	}

	m.log.WithField("id", shortID(status.ID)).Info("Removed devnet container")

	return nil
}

// Status implements Manager.
func (m *manager) Status(ctx context.Context) (*Status, error) {
	containers, err := m.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", managedByLabel+"="+managedByValue),
			filters.Arg("name", m.cfg.ContainerName),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		// The name filter matches substrings.
		if name != m.cfg.ContainerName {
			continue
		}

		chainID, _ := strconv.ParseUint(c.Labels[chainIDLabel], 10, 64)

		return &Status{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			State:   string(c.State),
			Running: c.State == "running",
			RPCURL:  RPCURL(m.cfg),
			ChainID: chainID,
		}, nil
	}

	return nil, ErrNotFound
}

// Logs implements Manager.
func (m *manager) Logs(ctx context.Context, w io.Writer, follow bool) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	reader, err := m.client.ContainerLogs(ctx, status.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: true,
	})
	if err != nil {
		return fmt.Errorf("getting container logs: %w", err)
	}
	defer func() { _ = reader.Close() }()

	if _, err := stdcopy.StdCopy(w, w, reader); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("copying logs: %w", err)
	}

	return nil
}

// pullImage pulls the devnet image according to the pull policy.
func (m *manager) pullImage(ctx context.Context) error {
	log := m.log.WithField("image", m.cfg.Image)

	switch m.cfg.PullPolicy {
	case "never":
		log.Debug("Skipping image pull (policy: never)")

		return nil
	case "if-not-present", "":
		images, err := m.client.ImageList(ctx, image.ListOptions{
			Filters: filters.NewArgs(filters.Arg("reference", m.cfg.Image)),
		})
		if err != nil {
			return fmt.Errorf("listing images: %w", err)
		}

		if len(images) > 0 {
			log.Debug("Image already exists (policy: if-not-present)")

			return nil
		}
	}

	log.Info("Pulling image")

	reader, err := m.client.ImagePull(ctx, m.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image %s: %w", m.cfg.Image, err)
	}
	defer func() { _ = reader.Close() }()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("reading pull response: %w", err)
	}

	log.Info("Image pulled successfully")

	return nil
}

// Close implements Manager.
func (m *manager) Close() error {
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("closing docker client: %w", err)
	}

	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}

	return id
}
