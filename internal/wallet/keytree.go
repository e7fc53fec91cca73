package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultAccountPath is the first account of the root mnemonic, m/44'/60'/0'/0/0.
var DefaultAccountPath = accounts.DefaultBaseDerivationPath

// KeeperSponsorPath is the account that sponsors the airnode's own keeper
// when no other keeper sponsor is given, m/45'/60'/0'/0/0.
var KeeperSponsorPath = accounts.DerivationPath{0x80000000 + 45, 0x80000000 + 60, 0x80000000 + 0, 0, 0}

// KeyTreeNode is a position in a hierarchical deterministic key tree. It can
// walk further down the tree and sign, but never hands out key material.
type KeyTreeNode interface {
	// DerivePath walks path (relative to this node) and returns the child.
	DerivePath(path accounts.DerivationPath) (KeyTreeNode, error)
	// Address is the Ethereum address of the node's key.
	Address() (common.Address, error)
	// SignTx signs tx with the node's key.
	SignTx(tx *types.Transaction, signer types.Signer) (*types.Transaction, error)
}

// HDNode is a BIP-32 node rooted at a BIP-39 seed. Child keys are derived on
// demand and wiped as soon as the address or signature is produced.
type HDNode struct {
	secret    [32]byte
	chainCode [32]byte
	path      accounts.DerivationPath

	addrOnce sync.Once
	addr     common.Address
	addrErr  error
}

var _ KeyTreeNode = (*HDNode)(nil)

// NewHDNodeFromMnemonic builds the root node of mnemonic with an empty
// BIP-39 passphrase. The mnemonic itself is not retained.
func NewHDNodeFromMnemonic(mnemonic string) (*HDNode, error) {
	if mnemonic == "" {
		return nil, &DerivationError{Err: errors.New("mnemonic is empty")}
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, &DerivationError{Err: fmt.Errorf("invalid mnemonic: %w", err)}
	}
	defer clear(seed)
	return NewHDNodeFromSeed(seed)
}

// NewHDNodeFromSeed builds the root node of a raw BIP-39 seed.
func NewHDNodeFromSeed(seed []byte) (*HDNode, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, &DerivationError{Err: fmt.Errorf("seed length %d out of range", len(seed))}
	}
	secret, chainCode := hd.ComputeMastersFromSeed(seed)
	return &HDNode{secret: secret, chainCode: chainCode}, nil
}

// Path returns the absolute path of the node.
func (n *HDNode) Path() accounts.DerivationPath {
	out := make(accounts.DerivationPath, len(n.path))
	copy(out, n.path)
	return out
}

// DerivePath returns the node at n's path followed by path.
func (n *HDNode) DerivePath(path accounts.DerivationPath) (KeyTreeNode, error) {
	child := &HDNode{
		secret:    n.secret,
		chainCode: n.chainCode,
		path:      make(accounts.DerivationPath, 0, len(n.path)+len(path)),
	}
	child.path = append(child.path, n.path...)
	child.path = append(child.path, path...)

	// Walk once up front so malformed material fails here, not at signing time.
	if _, err := child.Address(); err != nil {
		return nil, err
	}
	return child, nil
}

// Address derives the node's public address. The result is cached; the key
// used to compute it is not.
func (n *HDNode) Address() (common.Address, error) {
	n.addrOnce.Do(func() {
		n.addrErr = n.withKey(func(key *ecdsa.PrivateKey) error {
			n.addr = crypto.PubkeyToAddress(key.PublicKey)
			return nil
		})
	})
	return n.addr, n.addrErr
}

// SignTx signs tx with the node's key.
func (n *HDNode) SignTx(tx *types.Transaction, signer types.Signer) (*types.Transaction, error) {
	var signed *types.Transaction
	err := n.withKey(func(key *ecdsa.PrivateKey) error {
		var err error
		signed, err = types.SignTx(tx, signer, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return signed, nil
}

// withKey materializes the private key for the duration of fn.
func (n *HDNode) withKey(fn func(key *ecdsa.PrivateKey) error) error {
	raw, err := n.derive()
	if err != nil {
		return err
	}
	defer clear(raw)

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return &DerivationError{Path: n.path.String(), Err: err}
	}
	defer key.D.SetUint64(0)

	return fn(key)
}

func (n *HDNode) derive() ([]byte, error) {
	if len(n.path) == 0 {
		raw := make([]byte, len(n.secret))
		copy(raw, n.secret[:])
		return raw, nil
	}
	raw, err := hd.DerivePrivateKeyForPath(n.secret, n.chainCode, n.path.String())
	if err != nil {
		return nil, &DerivationError{Path: n.path.String(), Err: err}
	}
	return raw, nil
}
