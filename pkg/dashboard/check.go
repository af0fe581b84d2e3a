package dashboard

import (
	"context"

	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/ethpandaops/testledger/pkg/numeric"
	"github.com/sirupsen/logrus"
)

// Health is the result of a node and contract check.
type Health struct {
	RPCURL      string         `json:"rpc_url"`
	NodeOK      bool           `json:"node_ok"`
	NodeError   string         `json:"node_error,omitempty"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	Network     *chain.Network `json:"network,omitempty"`

	Contract      string `json:"contract,omitempty"`
	ContractOK    bool   `json:"contract_ok"`
	ContractError string `json:"contract_error,omitempty"`
	RecordCount   int64  `json:"record_count"`
}

// Check probes the node and the configured contract without requesting
// accounts. Failures are reported in the result rather than returned.
func (s *service) Check(ctx context.Context) *Health {
	h := &Health{RPCURL: s.cfg.Wallet.RPCURL}

	wallet, err := s.dial(ctx)
	if err != nil {
		h.NodeError = err.Error()

		return h
	}

	backend := wallet.Backend()

	block, err := backend.BlockNumber(ctx)
	if err != nil {
		h.NodeError = err.Error()

		return h
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		h.NodeError = err.Error()

		return h
	}

	network := s.networks.Lookup(chainID.Uint64())

	h.NodeOK = true
	h.BlockNumber = block
	h.Network = &network

	binding, err := s.resolver.Resolve(network.ChainID, backend, nil)
	if err != nil {
		h.ContractError = err.Error()

		return h
	}

	h.Contract = binding.Address().Hex()

	raw, err := binding.TestDataCount(ctx)
	if err != nil {
		h.ContractError = err.Error()

		return h
	}

	count, err := numeric.Normalize(raw)
	if err != nil {
		h.ContractError = err.Error()

		return h
	}

	h.ContractOK = true
	h.RecordCount = count

	s.log.WithFields(logrus.Fields{
		"block":    block,
		"chain_id": network.ChainID,
		"records":  count,
	}).Debug("Node check complete")

	return h
}
