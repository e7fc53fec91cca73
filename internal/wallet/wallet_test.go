package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/beaconctl/internal/derivation"
	"github.com/Bidon15/beaconctl/internal/wallet/wallettest"
)

const sponsor = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

func rootNode(t *testing.T) *HDNode {
	t.Helper()
	root, err := NewHDNodeFromMnemonic(wallettest.Mnemonic)
	require.NoError(t, err)
	return root
}

func TestHDNode_KnownVector(t *testing.T) {
	root := rootNode(t)

	node, err := root.DerivePath(DefaultAccountPath)
	require.NoError(t, err)

	addr, err := node.Address()
	require.NoError(t, err)
	assert.Equal(t, wallettest.FirstAccount, addr)
	assert.Equal(t, "m/44'/60'/0'/0/0", node.(*HDNode).Path().String())
}

func TestHDNode_InvalidMnemonic(t *testing.T) {
	for _, m := range []string{"", "not a mnemonic", "test test test test test test test test test test test test"} {
		_, err := NewHDNodeFromMnemonic(m)
		require.Error(t, err, m)
		assert.ErrorIs(t, err, ErrDerivation)

		var derr *DerivationError
		assert.True(t, errors.As(err, &derr))
	}
}

func TestHDNode_InvalidSeed(t *testing.T) {
	_, err := NewHDNodeFromSeed(make([]byte, 8))
	assert.ErrorIs(t, err, ErrDerivation)
}

func TestHDNode_DeriveIsRelative(t *testing.T) {
	root := rootNode(t)

	direct, err := root.DerivePath(DefaultAccountPath)
	require.NoError(t, err)

	account, err := root.DerivePath(DefaultAccountPath[:3])
	require.NoError(t, err)
	stepped, err := account.DerivePath(DefaultAccountPath[3:])
	require.NoError(t, err)

	a, err := direct.Address()
	require.NoError(t, err)
	b, err := stepped.Address()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDerive_Deterministic(t *testing.T) {
	root := rootNode(t)
	net := wallettest.New()

	first, err := Derive(root, derivation.Keeper(), sponsor, net, nil)
	require.NoError(t, err)
	second, err := Derive(rootNode(t), derivation.Keeper(), sponsor, net, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Address(), second.Address())

	addr, err := DeriveAddress(root, derivation.Keeper(), common.HexToAddress(sponsor))
	require.NoError(t, err)
	assert.Equal(t, first.Address(), addr)

	assert.NotEqual(t, wallettest.FirstAccount, first.Address())
}

func TestDerive_NamespacesAreDistinct(t *testing.T) {
	root := rootNode(t)

	keeper, err := DeriveAddress(root, derivation.Keeper(), common.HexToAddress(sponsor))
	require.NoError(t, err)
	rrp, err := DeriveAddress(root, derivation.RRP(), common.HexToAddress(sponsor))
	require.NoError(t, err)
	assert.NotEqual(t, keeper, rrp)
}

func TestDeriveAddress_KnownSponsorWallets(t *testing.T) {
	root := rootNode(t)
	counterparty := common.HexToAddress(sponsor)

	keeper, err := DeriveAddress(root, derivation.Keeper(), counterparty)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xe4f050C40Ec058c98A8503AaE4e5C611809AF3E7"), keeper)

	rrp, err := DeriveAddress(root, derivation.RRP(), counterparty)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x61cF9Eb3691A715e7B2697a36e9e60FdA40A8617"), rrp)
}

func TestDerive_InvalidCounterparty(t *testing.T) {
	_, err := Derive(rootNode(t), derivation.Keeper(), "0x1234", wallettest.New(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, derivation.ErrInvalidAddress)
}

func TestWallet_TransferAndWait(t *testing.T) {
	ctx := context.Background()
	net := wallettest.New()
	source := accountWallet(t, net)
	net.SetBalance(source.Address(), MustParseEther("1"))

	to := common.HexToAddress(sponsor)
	tx, err := source.Transfer(ctx, to, MustParseEther("0.25"))
	require.NoError(t, err)
	assert.Equal(t, uint64(TransferGasLimit), tx.Gas())

	receipt, err := WaitConfirmed(ctx, net, tx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	balance, err := net.BalanceAt(ctx, to, nil)
	require.NoError(t, err)
	assert.Equal(t, MustParseEther("0.25").String(), balance.String())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	require.NoError(t, err)
	assert.Equal(t, source.Address(), from)
}

func TestWaitConfirmed_Reverted(t *testing.T) {
	ctx := context.Background()
	net := wallettest.New()
	source := accountWallet(t, net)
	net.SetBalance(source.Address(), MustParseEther("1"))
	net.RevertNext = true

	tx, err := source.Transfer(ctx, common.HexToAddress(sponsor), big.NewInt(1))
	require.NoError(t, err)

	_, err = WaitConfirmed(ctx, net, tx)
	assert.ErrorIs(t, err, ErrTxReverted)
}

func TestWallet_SendEstimatesGasWithBuffer(t *testing.T) {
	net := wallettest.New()
	source := accountWallet(t, net)

	tx, err := source.Send(context.Background(), nil, nil, []byte{0x60, 0x80})
	require.NoError(t, err)
	assert.Nil(t, tx.To())
	assert.Equal(t, uint64(1_200_000), tx.Gas())
	assert.Equal(t, 1, net.Deployments())
}

func accountWallet(t *testing.T, net Network) *Wallet {
	t.Helper()
	node, err := rootNode(t).DerivePath(DefaultAccountPath)
	require.NoError(t, err)
	w, err := New(node, net, nil)
	require.NoError(t, err)
	return w
}
