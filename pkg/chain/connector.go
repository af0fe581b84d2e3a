package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethpandaops/testledger/pkg/jsonrpc"
	"github.com/sirupsen/logrus"
)

// Connection is an established wallet session.
type Connection struct {
	Account common.Address
	Network Network
	Wallet  Wallet
	Backend Backend
	Signer  Signer
}

// Connector negotiates a wallet session: network check, optional switch,
// account authorization and signer construction.
type Connector interface {
	// Connect establishes a session. It may block on user approval until
	// ctx is cancelled or the user dismisses the prompt.
	Connect(ctx context.Context) (*Connection, error)

	// Disconnect drops the current session.
	Disconnect()

	// Current returns the active session, or nil.
	Current() *Connection
}

// ConnectorOptions configures a Connector.
type ConnectorOptions struct {
	Networks Networks

	// PrivateKey, when set, signs transactions locally and determines the
	// account. Otherwise the wallet's accounts and eth_sendTransaction are used.
	PrivateKey string
}

// NewConnector creates a connector for the given wallet. wallet may be nil,
// in which case Connect returns ErrWalletUnavailable.
func NewConnector(log logrus.FieldLogger, wallet Wallet, opts ConnectorOptions) Connector {
	return &connector{
		log:    log.WithField("component", "chain"),
		wallet: wallet,
		opts:   opts,
	}
}

type connector struct {
	log    logrus.FieldLogger
	wallet Wallet
	opts   ConnectorOptions

	mu      sync.RWMutex
	current *Connection
}

var _ Connector = (*connector)(nil)

// Connect implements Connector.
func (c *connector) Connect(ctx context.Context) (*Connection, error) {
	if c.wallet == nil {
		return nil, ErrWalletUnavailable
	}

	chainID, err := c.chainID(ctx)
	if err != nil {
		return nil, classify(err)
	}

	network := c.opts.Networks.Lookup(chainID)
	if !network.Supported {
		c.log.WithFields(logrus.Fields{
			"chain_id": chainID,
			"target":   c.opts.Networks.Default.ChainID,
		}).Info("Connected to unsupported network, requesting switch")

		if err := c.switchNetwork(ctx); err != nil {
			c.log.WithError(err).Warn("Network switch failed, continuing on current network")
		}

		chainID, err = c.chainID(ctx)
		if err != nil {
			return nil, classify(err)
		}

		network = c.opts.Networks.Lookup(chainID)
	}

	signer, err := c.buildSigner(ctx)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		Account: signer.Address(),
		Network: network,
		Wallet:  c.wallet,
		Backend: c.wallet.Backend(),
		Signer:  signer,
	}

	c.mu.Lock()
	c.current = conn
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"account":   conn.Account.Hex(),
		"chain_id":  network.ChainID,
		"network":   network.Name,
		"supported": network.Supported,
	}).Info("Wallet connected")

	return conn, nil
}

// Disconnect implements Connector.
func (c *connector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.log.WithField("account", c.current.Account.Hex()).Info("Wallet disconnected")
	}

	c.current = nil
}

// Current implements Connector.
func (c *connector) Current() *Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

func (c *connector) chainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := c.wallet.Request(ctx, &id, "eth_chainId"); err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}

	return uint64(id), nil
}

// switchNetwork asks the wallet to move to the default network, registering
// it first when the wallet does not know the chain.
func (c *connector) switchNetwork(ctx context.Context) error {
	target := c.opts.Networks.Default

	err := c.wallet.Request(ctx, nil, "wallet_switchEthereumChain", switchParams(target.ChainID))
	if err == nil {
		return nil
	}

	if !jsonrpc.HasCode(err, jsonrpc.CodeUnrecognizedChain) {
		return fmt.Errorf("%w: %w", ErrNetworkSwitchFailed, err)
	}

	c.log.WithField("chain_id", target.ChainID).Info("Network unknown to wallet, adding it")

	if err := c.wallet.Request(ctx, nil, "wallet_addEthereumChain", addParams(target)); err != nil {
		return fmt.Errorf("%w: adding chain: %w", ErrNetworkSwitchFailed, err)
	}

	if err := c.wallet.Request(ctx, nil, "wallet_switchEthereumChain", switchParams(target.ChainID)); err != nil {
		return fmt.Errorf("%w: switching after add: %w", ErrNetworkSwitchFailed, err)
	}

	return nil
}

func (c *connector) buildSigner(ctx context.Context) (Signer, error) {
	if c.opts.PrivateKey != "" {
		signer, err := NewKeySigner(c.wallet.Backend(), c.opts.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}

		return signer, nil
	}

	accounts, err := c.requestAccounts(ctx)
	if err != nil {
		return nil, classify(err)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: wallet returned no accounts", ErrConnectionFailed)
	}

	return NewWalletSigner(c.wallet, accounts[0]), nil
}

// requestAccounts asks the wallet for authorization, falling back to
// eth_accounts for plain nodes that do not implement eth_requestAccounts.
func (c *connector) requestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address

	err := c.wallet.Request(ctx, &accounts, "eth_requestAccounts")
	if err == nil {
		return accounts, nil
	}

	if !jsonrpc.HasCode(err, jsonrpc.CodeMethodNotFound) {
		return nil, fmt.Errorf("eth_requestAccounts: %w", err)
	}

	c.log.Debug("eth_requestAccounts not implemented, falling back to eth_accounts")

	accounts = nil
	if err := c.wallet.Request(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}

	return accounts, nil
}

// IsConnectionError reports whether err belongs to the connector taxonomy.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrWalletUnavailable) ||
		errors.Is(err, ErrUserRejected) ||
		errors.Is(err, ErrWalletBusy) ||
		errors.Is(err, ErrConnectionFailed)
}
