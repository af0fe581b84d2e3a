package chain

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethpandaops/testledger/pkg/config"
	"github.com/ethpandaops/testledger/pkg/jsonrpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func testNetworks() Networks {
	return Networks{
		Default: config.NetworkConfig{
			ChainID: 31337,
			Name:    "Hardhat Local",
			RPCURLs: []string{"http://127.0.0.1:8545"},
			Currency: config.CurrencyConfig{
				Name: "Ethereum", Symbol: "ETH", Decimals: 18,
			},
		},
		Supported: []config.NetworkConfig{
			{ChainID: 31337, Name: "Hardhat Local (31337)"},
			{ChainID: 81337, Name: "Custom Hardhat (81337)"},
		},
	}
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func TestConnect_NilWallet(t *testing.T) {
	c := NewConnector(testLogger(), nil, ConnectorOptions{Networks: testNetworks()})

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrWalletUnavailable)
	assert.Nil(t, c.Current())
}

func TestDial_EmptyURL(t *testing.T) {
	_, err := Dial(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrWalletUnavailable)
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name          string
		wallet        func() *fakeWallet
		wantErr       error
		wantChainID   uint64
		wantSupported bool
		wantMethods   []string
	}{
		{
			name: "supported network",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x7a69", nil).
					on("eth_requestAccounts", []string{account}, nil)
			},
			wantChainID:   31337,
			wantSupported: true,
			wantMethods:   []string{"eth_chainId", "eth_requestAccounts"},
		},
		{
			name: "second supported network",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x13d49", nil).
					on("eth_requestAccounts", []string{account}, nil)
			},
			wantChainID:   81337,
			wantSupported: true,
			wantMethods:   []string{"eth_chainId", "eth_requestAccounts"},
		},
		{
			name: "unsupported network switches",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x1", nil).
					on("eth_chainId", "0x7a69", nil).
					on("wallet_switchEthereumChain", nil, nil).
					on("eth_requestAccounts", []string{account}, nil)
			},
			wantChainID:   31337,
			wantSupported: true,
			wantMethods: []string{
				"eth_chainId", "wallet_switchEthereumChain", "eth_chainId", "eth_requestAccounts",
			},
		},
		{
			name: "unknown chain is added then switched",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x1", nil).
					on("eth_chainId", "0x7a69", nil).
					on("wallet_switchEthereumChain", nil,
						&jsonrpc.Error{Code: jsonrpc.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}).
					on("wallet_switchEthereumChain", nil, nil).
					on("wallet_addEthereumChain", nil, nil).
					on("eth_requestAccounts", []string{account}, nil)
			},
			wantChainID:   31337,
			wantSupported: true,
			wantMethods: []string{
				"eth_chainId",
				"wallet_switchEthereumChain",
				"wallet_addEthereumChain",
				"wallet_switchEthereumChain",
				"eth_chainId",
				"eth_requestAccounts",
			},
		},
		{
			name: "switch failure does not abort",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x1", nil).
					on("wallet_switchEthereumChain", nil, &jsonrpc.Error{Code: jsonrpc.CodeUserRejected, Message: "User rejected"}).
					on("eth_requestAccounts", []string{account}, nil)
			},
			wantChainID:   1,
			wantSupported: false,
			wantMethods: []string{
				"eth_chainId", "wallet_switchEthereumChain", "eth_chainId", "eth_requestAccounts",
			},
		},
		{
			name: "add failure does not abort",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x1", nil).
					on("wallet_switchEthereumChain", nil,
						&jsonrpc.Error{Code: jsonrpc.CodeUnrecognizedChain, Message: "Unrecognized chain ID"}).
					on("wallet_addEthereumChain", nil, errors.New("boom")).
					on("eth_requestAccounts", []string{account}, nil)
			},
			wantChainID:   1,
			wantSupported: false,
			wantMethods: []string{
				"eth_chainId",
				"wallet_switchEthereumChain",
				"wallet_addEthereumChain",
				"eth_chainId",
				"eth_requestAccounts",
			},
		},
		{
			name: "user rejects account request",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x7a69", nil).
					on("eth_requestAccounts", nil, &jsonrpc.Error{Code: jsonrpc.CodeUserRejected, Message: "User rejected the request."})
			},
			wantErr: ErrUserRejected,
		},
		{
			name: "user rejection detected by message",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x7a69", nil).
					on("eth_requestAccounts", nil, errors.New("MetaMask: User rejected the request"))
			},
			wantErr: ErrUserRejected,
		},
		{
			name: "wallet busy",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x7a69", nil).
					on("eth_requestAccounts", nil,
						&jsonrpc.Error{Code: jsonrpc.CodeResourceUnavailable, Message: "Request of type 'wallet_requestPermissions' already pending"})
			},
			wantErr: ErrWalletBusy,
		},
		{
			name: "plain node falls back to eth_accounts",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x7a69", nil).
					on("eth_accounts", []string{account}, nil)
			},
			wantChainID:   31337,
			wantSupported: true,
			wantMethods:   []string{"eth_chainId", "eth_requestAccounts", "eth_accounts"},
		},
		{
			name: "no accounts",
			wallet: func() *fakeWallet {
				return newFakeWallet().
					on("eth_chainId", "0x7a69", nil).
					on("eth_requestAccounts", []string{}, nil)
			},
			wantErr: ErrConnectionFailed,
		},
		{
			name: "chain id failure",
			wallet: func() *fakeWallet {
				return newFakeWallet().on("eth_chainId", nil, errors.New("connection refused"))
			},
			wantErr: ErrConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.wallet()
			c := NewConnector(testLogger(), w, ConnectorOptions{Networks: testNetworks()})

			conn, err := c.Connect(context.Background())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c.Current())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(account), conn.Account)
			assert.Equal(t, tt.wantChainID, conn.Network.ChainID)
			assert.Equal(t, tt.wantSupported, conn.Network.Supported)
			assert.Equal(t, tt.wantMethods, w.methods())
			assert.Same(t, conn, c.Current())
		})
	}
}

func TestConnect_AddChainParams(t *testing.T) {
	w := newFakeWallet().
		on("eth_chainId", "0x5", nil).
		on("wallet_switchEthereumChain", nil, &jsonrpc.Error{Code: jsonrpc.CodeUnrecognizedChain, Message: "unknown"}).
		on("wallet_addEthereumChain", nil, nil).
		on("eth_requestAccounts", []string{account}, nil)

	c := NewConnector(testLogger(), w, ConnectorOptions{Networks: testNetworks()})

	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	var add *call

	for i := range w.calls {
		if w.calls[i].method == "wallet_addEthereumChain" {
			add = &w.calls[i]
		}
	}

	require.NotNil(t, add)
	require.Len(t, add.params, 1)

	params, ok := add.params[0].(addChainParams)
	require.True(t, ok)
	assert.Equal(t, "0x7a69", params.ChainID)
	assert.Equal(t, "Hardhat Local", params.ChainName)
	assert.Equal(t, nativeCurrency{Name: "Ethereum", Symbol: "ETH", Decimals: 18}, params.NativeCurrency)
	assert.Equal(t, []string{"http://127.0.0.1:8545"}, params.RPCURLs)

	switchArgs, ok := w.calls[1].params[0].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "0x7a69", switchArgs["chainId"])
}

func TestConnect_PrivateKeyAccount(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	w := newFakeWallet().on("eth_chainId", "0x7a69", nil)
	c := NewConnector(testLogger(), w, ConnectorOptions{
		Networks:   testNetworks(),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
	})

	conn, err := c.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), conn.Account)
	assert.Equal(t, []string{"eth_chainId"}, w.methods())
}

func TestConnect_InvalidPrivateKey(t *testing.T) {
	w := newFakeWallet().on("eth_chainId", "0x7a69", nil)
	c := NewConnector(testLogger(), w, ConnectorOptions{Networks: testNetworks(), PrivateKey: "nope"})

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestDisconnect(t *testing.T) {
	w := newFakeWallet().
		on("eth_chainId", "0x7a69", nil).
		on("eth_requestAccounts", []string{account}, nil)

	c := NewConnector(testLogger(), w, ConnectorOptions{Networks: testNetworks()})

	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c.Current())

	c.Disconnect()
	assert.Nil(t, c.Current())

	// Disconnecting twice is harmless.
	c.Disconnect()
	assert.Nil(t, c.Current())
}

func TestNetworks_Lookup(t *testing.T) {
	n := testNetworks()

	assert.Equal(t, Network{ChainID: 81337, Name: "Custom Hardhat (81337)", Supported: true}, n.Lookup(81337))
	assert.Equal(t, Network{ChainID: 1, Name: "Chain 1"}, n.Lookup(1))
}
