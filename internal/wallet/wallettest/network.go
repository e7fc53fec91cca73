// Package wallettest provides an in-memory wallet.Network for tests.
package wallettest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Mnemonic is the well-known development mnemonic used across tests.
const Mnemonic = "test test test test test test test test test test test junk"

// FirstAccount is the address of Mnemonic at m/44'/60'/0'/0/0.
var FirstAccount = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// Network is a single-node chain that mines every transaction on submission.
// Value transfers move balances; contract creations store placeholder code
// at the created address.
type Network struct {
	mu sync.Mutex

	chainID  *big.Int
	gasPrice *big.Int
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	code     map[common.Address][]byte
	receipts map[common.Hash]*types.Receipt
	sent     []*types.Transaction

	// RevertNext makes the next submitted transaction fail on chain.
	RevertNext bool
	// BalanceErr is returned by BalanceAt when set.
	BalanceErr error
	// SendErr is returned by SendTransaction when set.
	SendErr error
}

// New returns an empty network with chain ID 31337.
func New() *Network {
	return &Network{
		chainID:  big.NewInt(31337),
		gasPrice: big.NewInt(1_000_000_000),
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		code:     make(map[common.Address][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// SetBalance sets the balance of addr in wei.
func (n *Network) SetBalance(addr common.Address, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[addr] = new(big.Int).Set(wei)
}

// Sent returns every accepted transaction in submission order.
func (n *Network) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*types.Transaction, len(n.sent))
	copy(out, n.sent)
	return out
}

// Deployments returns the number of accepted contract creations.
func (n *Network) Deployments() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, tx := range n.sent {
		if tx.To() == nil {
			count++
		}
	}
	return count
}

func (n *Network) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(n.chainID), nil
}

func (n *Network) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.BalanceErr != nil {
		return nil, n.BalanceErr
	}
	if b, ok := n.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (n *Network) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nonces[account], nil
}

func (n *Network) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(n.gasPrice), nil
}

func (n *Network) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if msg.To == nil {
		return 1_000_000, nil
	}
	return 21_000, nil
}

func (n *Network) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.code[account], nil
}

func (n *Network) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := n.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

// SendTransaction mines tx immediately. Gas is not charged.
func (n *Network) SendTransaction(_ context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.SendErr != nil {
		return n.SendErr
	}

	from, err := types.Sender(types.LatestSignerForChainID(n.chainID), tx)
	if err != nil {
		return err
	}
	if tx.Nonce() != n.nonces[from] {
		return errors.New("nonce mismatch")
	}
	balance := n.balances[from]
	if balance == nil {
		balance = new(big.Int)
	}
	if balance.Cmp(tx.Value()) < 0 {
		return errors.New("insufficient funds for transfer")
	}

	receipt := &types.Receipt{
		TxHash:      tx.Hash(),
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(int64(len(n.sent) + 1)),
		GasUsed:     tx.Gas(),
	}
	n.nonces[from]++
	n.sent = append(n.sent, tx)

	if n.RevertNext {
		n.RevertNext = false
		receipt.Status = types.ReceiptStatusFailed
		n.receipts[tx.Hash()] = receipt
		return nil
	}

	n.balances[from] = new(big.Int).Sub(balance, tx.Value())
	if tx.To() == nil {
		addr := crypto.CreateAddress(from, tx.Nonce())
		receipt.ContractAddress = addr
		n.code[addr] = []byte{0x60, 0x80}
		n.credit(addr, tx.Value())
	} else {
		n.credit(*tx.To(), tx.Value())
	}
	n.receipts[tx.Hash()] = receipt
	return nil
}

func (n *Network) credit(addr common.Address, wei *big.Int) {
	current := n.balances[addr]
	if current == nil {
		current = new(big.Int)
	}
	n.balances[addr] = new(big.Int).Add(current, wei)
}
