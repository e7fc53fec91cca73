// Package wallet derives secondary wallets from a root key tree and moves
// funds between them.
//
// A Wallet exposes its address, signing, balance queries and value transfers
// through an injected Network. Private keys live only inside the KeyTreeNode
// for the duration of a signing call.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/beaconctl/internal/derivation"
)

// TransferGasLimit is the gas limit of a plain value transfer.
const TransferGasLimit = 21_000

// Network is the chain client a Wallet talks to. *ethclient.Client satisfies it.
type Network interface {
	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Wallet is a signing key bound to a network.
type Wallet struct {
	node    KeyTreeNode
	address common.Address
	network Network
	logger  *slog.Logger
}

// New binds node to network.
func New(node KeyTreeNode, network Network, logger *slog.Logger) (*Wallet, error) {
	if logger == nil {
		logger = slog.Default()
	}
	addr, err := node.Address()
	if err != nil {
		return nil, err
	}
	return &Wallet{
		node:    node,
		address: addr,
		network: network,
		logger:  logger,
	}, nil
}

// Derive returns the wallet that root controls on behalf of counterparty:
// root walked along RootPath followed by the deriver's path for counterparty.
func Derive(root KeyTreeNode, deriver derivation.Deriver, counterparty string, network Network, logger *slog.Logger) (*Wallet, error) {
	path, err := deriver.PathSegment(counterparty)
	if err != nil {
		return nil, err
	}
	node, err := root.DerivePath(path.Full())
	if err != nil {
		return nil, err
	}
	return New(node, network, logger)
}

// DeriveAddress is Derive without a network: only the address is computed.
func DeriveAddress(root KeyTreeNode, deriver derivation.Deriver, counterparty common.Address) (common.Address, error) {
	path, err := deriver.PathFor(counterparty)
	if err != nil {
		return common.Address{}, err
	}
	node, err := root.DerivePath(path.Full())
	if err != nil {
		return common.Address{}, err
	}
	return node.Address()
}

// Address returns the wallet address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// Network returns the client the wallet submits through.
func (w *Wallet) Network() Network {
	return w.network
}

// Balance returns the wallet balance in wei at the latest block.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := w.network.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance of %s: %w", w.address.Hex(), err)
	}
	return balance, nil
}

// SignTx signs tx for the network's chain ID.
func (w *Wallet) SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	chainID, err := w.network.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain ID: %w", err)
	}
	signed, err := w.node.SignTx(tx, types.LatestSignerForChainID(chainID))
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// Transfer submits a value transfer of amount wei to to. It does not wait for
// confirmation.
func (w *Wallet) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return w.send(ctx, &to, amount, nil, TransferGasLimit)
}

// Send submits a transaction carrying data. A nil to creates a contract. The
// gas limit is estimated with a 20% buffer.
func (w *Wallet) Send(ctx context.Context, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	if value == nil {
		value = new(big.Int)
	}
	gasLimit, err := w.network.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	return w.send(ctx, to, value, data, gasLimit*120/100)
}

func (w *Wallet) send(ctx context.Context, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Transaction, error) {
	nonce, err := w.network.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := w.network.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := w.SignTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := w.network.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	w.logger.Info("transaction submitted",
		slog.String("from", w.address.Hex()),
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
	)
	return signed, nil
}

// WaitConfirmed blocks until tx is included in a block and checks that it
// succeeded. There is no timeout beyond ctx.
func WaitConfirmed(ctx context.Context, network Network, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, network, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTxReverted, tx.Hash().Hex())
	}
	return receipt, nil
}
