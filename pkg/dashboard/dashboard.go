// Package dashboard wires the wallet session, contract binding, record
// readers and submission pipeline into a single service used by the CLI
// and the HTTP API.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/ethpandaops/testledger/pkg/contract"
	"github.com/ethpandaops/testledger/pkg/ipfs"
	"github.com/ethpandaops/testledger/pkg/records"
	"github.com/ethpandaops/testledger/pkg/submit"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by operations that need a wallet session.
var ErrNotConnected = errors.New("wallet not connected")

// Status describes the current session.
type Status struct {
	Connected bool           `json:"connected"`
	Account   string         `json:"account,omitempty"`
	Network   *chain.Network `json:"network,omitempty"`
	Contract  string         `json:"contract,omitempty"`
	// Deployed is false when the connected network has no contract address.
	Deployed bool `json:"deployed"`
}

// RecordDetail is a record with its decoded payload.
type RecordDetail struct {
	records.Record
	Envelope   *submit.ParsedEnvelope `json:"envelope,omitempty"`
	GatewayURL string                 `json:"gateway_url,omitempty"`
}

// Service is the dashboard core.
type Service interface {
	// Connect negotiates a wallet session and resolves the contract for
	// the connected network. A network without a deployment leaves the
	// session connected with no binding.
	Connect(ctx context.Context) (Status, error)
	Disconnect()
	Status() Status

	Records(ctx context.Context, search string) ([]records.Record, error)
	Record(ctx context.Context, id int64, attempt int) (*RecordDetail, error)
	Audit(ctx context.Context) ([]records.AuditEvent, error)

	Upload(ctx context.Context, draft *submit.Draft) (ipfs.FileDescriptor, error)
	Submit(ctx context.Context, meta submit.Metadata, draft *submit.Draft) (*submit.Result, error)

	Check(ctx context.Context) *Health
	Seed(ctx context.Context) ([]SeedResult, error)

	Gateways() *ipfs.Gateways
}

// Options configures a Service.
type Options struct {
	Config *config.Config

	// Wallet is dialled from Config.Wallet.RPCURL when nil.
	Wallet chain.Wallet

	// Pinner is built from Config.IPFS on first upload when nil.
	Pinner ipfs.Pinner

	// Resolver is built from Config.Contract when nil.
	Resolver contract.Resolver
}

// New creates a dashboard service.
func New(log logrus.FieldLogger, opts Options) (Service, error) {
	cfg := opts.Config

	resolver := opts.Resolver
	if resolver == nil {
		var err error

		resolver, err = newResolver(log, cfg)
		if err != nil {
			return nil, err
		}
	}

	gateways, err := ipfs.NewGateways(cfg.IPFS.Gateways)
	if err != nil {
		return nil, err
	}

	return &service{
		log:      log.WithField("component", "dashboard"),
		cfg:      cfg,
		wallet:   opts.Wallet,
		pinner:   opts.Pinner,
		resolver: resolver,
		gateways: gateways,
		now:      time.Now,
		networks: chain.Networks{
			Default:   cfg.Wallet.DefaultNetwork,
			Supported: cfg.Wallet.SupportedNetworks,
		},
	}, nil
}

func newResolver(log logrus.FieldLogger, cfg *config.Config) (contract.Resolver, error) {
	addresses, err := cfg.ContractAddresses()
	if err != nil {
		return nil, err
	}

	var parsed *abi.ABI

	if cfg.Contract.ABIPath != "" {
		a, err := contract.LoadABI(cfg.Contract.ABIPath)
		if err != nil {
			return nil, err
		}

		parsed = &a
	}

	resolver, err := contract.NewResolver(log, contract.ResolverOptions{
		Addresses:    addresses,
		ABI:          parsed,
		PollInterval: cfg.Contract.ReceiptPollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("creating contract resolver: %w", err)
	}

	return resolver, nil
}

type service struct {
	log      logrus.FieldLogger
	cfg      *config.Config
	resolver contract.Resolver
	gateways *ipfs.Gateways
	networks chain.Networks
	now      func() time.Time

	mu        sync.RWMutex
	wallet    chain.Wallet
	pinner    ipfs.Pinner
	connector chain.Connector
	session   *session
}

// session is the state derived from a connection.
type session struct {
	conn     *chain.Connection
	binding  contract.Binding
	reader   records.Reader
	audit    records.AuditLog
	pipeline *submit.Pipeline
}

var _ Service = (*service)(nil)

func (s *service) dial(ctx context.Context) (chain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet != nil {
		return s.wallet, nil
	}

	w, err := chain.Dial(ctx, s.cfg.Wallet.RPCURL)
	if err != nil {
		return nil, err
	}

	s.wallet = w

	return w, nil
}

// Connect implements Service.
func (s *service) Connect(ctx context.Context) (Status, error) {
	wallet, err := s.dial(ctx)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	if s.connector == nil {
		s.connector = chain.NewConnector(s.log, wallet, chain.ConnectorOptions{
			Networks:   s.networks,
			PrivateKey: s.cfg.Wallet.PrivateKey,
		})
	}
	connector := s.connector
	s.mu.Unlock()

	conn, err := connector.Connect(ctx)
	if err != nil {
		return Status{}, err
	}

	sess := &session{conn: conn}

	binding, err := s.resolver.Resolve(conn.Network.ChainID, conn.Backend, conn.Signer)

	switch {
	case err == nil:
		sess.binding = binding
		sess.reader = records.NewReader(s.log, binding)
		sess.audit = records.NewAuditLog(s.log, binding)
		sess.pipeline = submit.NewPipeline(s.log, binding, s.cfg.Contract.ConfirmationTimeout).
			WithClock(s.now)
	case errors.Is(err, contract.ErrUnsupportedNetwork):
		s.log.WithField("chain_id", conn.Network.ChainID).
			Warn("Contract not deployed on this network")

		sess.pipeline = submit.NewPipeline(s.log, nil, s.cfg.Contract.ConfirmationTimeout).
			WithClock(s.now)
	default:
		return Status{}, err
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	return s.Status(), nil
}

// Disconnect implements Service.
func (s *service) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connector != nil {
		s.connector.Disconnect()
	}

	s.session = nil
}

// Status implements Service.
func (s *service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return Status{}
	}

	network := s.session.conn.Network

	st := Status{
		Connected: true,
		Account:   s.session.conn.Account.Hex(),
		Network:   &network,
	}

	if s.session.binding != nil {
		st.Contract = s.session.binding.Address().Hex()
		st.Deployed = true
	}

	return st
}

func (s *service) current() (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, ErrNotConnected
	}

	return s.session, nil
}

// readers returns a session with a contract binding.
func (s *service) readers() (*session, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}

	if sess.binding == nil {
		return nil, &contract.UnsupportedNetworkError{ChainID: sess.conn.Network.ChainID}
	}

	return sess, nil
}

// Records implements Service.
func (s *service) Records(ctx context.Context, search string) ([]records.Record, error) {
	sess, err := s.readers()
	if err != nil {
		return nil, err
	}

	all, err := sess.reader.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return records.Filter(all, search), nil
}

// Record implements Service.
func (s *service) Record(ctx context.Context, id int64, attempt int) (*RecordDetail, error) {
	sess, err := s.readers()
	if err != nil {
		return nil, err
	}

	rec, err := sess.reader.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &RecordDetail{Record: *rec}

	env, err := submit.ParseEnvelope(rec.Data)
	if err != nil {
		s.log.WithError(err).WithField("id", id).Debug("Record payload is not an envelope")

		return detail, nil
	}

	detail.Envelope = env

	if env.IPFSFile != nil {
		detail.GatewayURL = s.gateways.URLFor(env.IPFSFile.CID, attempt)
	}

	return detail, nil
}

// Audit implements Service.
func (s *service) Audit(ctx context.Context) ([]records.AuditEvent, error) {
	sess, err := s.readers()
	if err != nil {
		return nil, err
	}

	return sess.audit.ListAuditEvents(ctx)
}

func (s *service) getPinner() (ipfs.Pinner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pinner != nil {
		return s.pinner, nil
	}

	p, err := ipfs.NewPinner(s.log, &s.cfg.IPFS, s.gateways)
	if err != nil {
		return nil, err
	}

	s.pinner = p

	return p, nil
}

// Upload implements Service.
func (s *service) Upload(ctx context.Context, draft *submit.Draft) (ipfs.FileDescriptor, error) {
	pinner, err := s.getPinner()
	if err != nil {
		return ipfs.FileDescriptor{}, err
	}

	return draft.Upload(ctx, pinner)
}

// Submit implements Service.
func (s *service) Submit(
	ctx context.Context, meta submit.Metadata, draft *submit.Draft,
) (*submit.Result, error) {
	sess, err := s.current()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", submit.ErrNoContract, err)
	}

	if meta.Type != "" && !records.IsKnownCategory(meta.Type) {
		s.log.WithField("test_type", meta.Type).Warn("Storing record with a custom test type")
	}

	return sess.pipeline.Submit(ctx, meta, draft)
}

// Gateways implements Service.
func (s *service) Gateways() *ipfs.Gateways {
	return s.gateways
}
