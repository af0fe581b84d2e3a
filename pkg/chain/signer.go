package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer submits state-changing calls on behalf of the connected account.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// NewKeySigner creates a signer that signs transactions locally with a hex
// encoded secp256k1 private key and broadcasts them through backend.
func NewKeySigner(backend Backend, hexKey string) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	return &keySigner{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

type keySigner struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ Signer = (*keySigner)(nil)

func (s *keySigner) Address() common.Address {
	return s.address
}

func (s *keySigner) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting chain id: %w", err)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting nonce: %w", err)
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting gas price: %w", err)
	}

	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: s.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("sending transaction: %w", err)
	}

	return signed.Hash(), nil
}

// NewWalletSigner creates a signer that delegates signing to the wallet
// via eth_sendTransaction.
func NewWalletSigner(wallet Wallet, from common.Address) Signer {
	return &walletSigner{wallet: wallet, from: from}
}

type walletSigner struct {
	wallet Wallet
	from   common.Address
}

var _ Signer = (*walletSigner)(nil)

func (s *walletSigner) Address() common.Address {
	return s.from
}

type sendTxArgs struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data string `json:"data"`
}

func (s *walletSigner) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	var hash common.Hash

	err := s.wallet.Request(ctx, &hash, "eth_sendTransaction", sendTxArgs{
		From: s.from.Hex(),
		To:   to.Hex(),
		Data: hexutil.Encode(data),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}

	return hash, nil
}
