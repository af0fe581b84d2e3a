package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethpandaops/testledger/pkg/config"
)

// Network describes the chain a connection ended up on.
type Network struct {
	ChainID   uint64 `json:"chain_id"`
	Name      string `json:"name"`
	Supported bool   `json:"supported"`
}

// Networks is the set of chains the application works with.
type Networks struct {
	Default   config.NetworkConfig
	Supported []config.NetworkConfig
}

// Lookup resolves a chain id against the supported list.
func (n Networks) Lookup(chainID uint64) Network {
	for _, s := range n.Supported {
		if s.ChainID == chainID {
			return Network{ChainID: chainID, Name: s.Name, Supported: true}
		}
	}

	if n.Default.ChainID == chainID && n.Default.Name != "" {
		return Network{ChainID: chainID, Name: n.Default.Name}
	}

	return Network{ChainID: chainID, Name: fmt.Sprintf("Chain %d", chainID)}
}

// switchParams builds the wallet_switchEthereumChain parameter object.
func switchParams(chainID uint64) map[string]string {
	return map[string]string{"chainId": hexutil.EncodeUint64(chainID)}
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type addChainParams struct {
	ChainID        string         `json:"chainId"`
	ChainName      string         `json:"chainName"`
	NativeCurrency nativeCurrency `json:"nativeCurrency"`
	RPCURLs        []string       `json:"rpcUrls"`
}

// addParams builds the wallet_addEthereumChain parameter object.
func addParams(network config.NetworkConfig) addChainParams {
	rpcURLs := network.RPCURLs
	if rpcURLs == nil {
		rpcURLs = []string{}
	}

	return addChainParams{
		ChainID:   hexutil.EncodeUint64(network.ChainID),
		ChainName: network.Name,
		NativeCurrency: nativeCurrency{
			Name:     network.Currency.Name,
			Symbol:   network.Currency.Symbol,
			Decimals: network.Currency.Decimals,
		},
		RPCURLs: rpcURLs,
	}
}
