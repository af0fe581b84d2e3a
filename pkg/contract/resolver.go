package contract

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/sirupsen/logrus"
)

// ErrUnsupportedNetwork is matched by UnsupportedNetworkError.
var ErrUnsupportedNetwork = errors.New("contract not deployed on this network")

// UnsupportedNetworkError reports a chain with no contract address.
type UnsupportedNetworkError struct {
	ChainID uint64
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("contract not deployed on chain %d", e.ChainID)
}

// Is makes errors.Is(err, ErrUnsupportedNetwork) match.
func (e *UnsupportedNetworkError) Is(target error) bool {
	return target == ErrUnsupportedNetwork
}

// Resolver maps a chain id to a contract binding.
type Resolver interface {
	// Address returns the configured contract address for chainID.
	Address(chainID uint64) (common.Address, error)

	// Resolve returns a binding for chainID. signer may be nil for
	// read-only use.
	Resolve(chainID uint64, backend chain.Backend, signer chain.Signer) (Binding, error)
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Addresses maps chain id to contract address. Empty means not deployed.
	Addresses map[uint64]string

	// ABI overrides the embedded ABI when non-empty.
	ABI *abi.ABI

	// PollInterval is the receipt polling interval.
	PollInterval time.Duration
}

// NewResolver creates a resolver.
func NewResolver(log logrus.FieldLogger, opts ResolverOptions) (Resolver, error) {
	parsed := opts.ABI
	if parsed == nil {
		def, err := DefaultABI()
		if err != nil {
			return nil, fmt.Errorf("loading embedded abi: %w", err)
		}

		parsed = &def
	}

	addresses := make(map[uint64]common.Address, len(opts.Addresses))

	for chainID, addr := range opts.Addresses {
		if addr == "" {
			continue
		}

		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid contract address %q for chain %d", addr, chainID)
		}

		addresses[chainID] = common.HexToAddress(addr)
	}

	interval := opts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &resolver{
		log:          log.WithField("component", "contract"),
		abi:          *parsed,
		addresses:    addresses,
		pollInterval: interval,
	}, nil
}

type resolver struct {
	log          logrus.FieldLogger
	abi          abi.ABI
	addresses    map[uint64]common.Address
	pollInterval time.Duration
}

var _ Resolver = (*resolver)(nil)

// Address implements Resolver.
func (r *resolver) Address(chainID uint64) (common.Address, error) {
	addr, ok := r.addresses[chainID]
	if !ok {
		return common.Address{}, &UnsupportedNetworkError{ChainID: chainID}
	}

	return addr, nil
}

// Resolve implements Resolver.
func (r *resolver) Resolve(chainID uint64, backend chain.Backend, signer chain.Signer) (Binding, error) {
	addr, err := r.Address(chainID)
	if err != nil {
		return nil, err
	}

	return &binding{
		log: r.log.WithFields(logrus.Fields{
			"chain_id": chainID,
			"address":  addr.Hex(),
		}),
		address:      addr,
		abi:          r.abi,
		backend:      backend,
		signer:       signer,
		pollInterval: r.pollInterval,
	}, nil
}
