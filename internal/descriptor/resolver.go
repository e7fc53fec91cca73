package descriptor

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/beaconctl/internal/derivation"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

// WalletResolver maps sponsors to the wallets the airnode controls on their
// behalf. Implementations return addresses only.
type WalletResolver interface {
	// SponsorWallet is the wallet that fulfils requests paid for by sponsor.
	SponsorWallet(sponsor common.Address) (common.Address, error)
	// KeeperSponsorWallet is the wallet the keeper uses for keeperSponsor.
	KeeperSponsorWallet(keeperSponsor common.Address) (common.Address, error)
}

// DerivedWallets resolves sponsor wallets by deriving them from the airnode
// root key tree.
type DerivedWallets struct {
	Root wallet.KeyTreeNode
}

var _ WalletResolver = DerivedWallets{}

func (d DerivedWallets) SponsorWallet(sponsor common.Address) (common.Address, error) {
	return wallet.DeriveAddress(d.Root, derivation.RRP(), sponsor)
}

func (d DerivedWallets) KeeperSponsorWallet(keeperSponsor common.Address) (common.Address, error) {
	return wallet.DeriveAddress(d.Root, derivation.Keeper(), keeperSponsor)
}
