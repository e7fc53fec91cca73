package artifacts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/beaconctl/internal/ledger"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

// Deployer creates contracts from artifacts under Root using one wallet.
type Deployer struct {
	root   string
	wallet *wallet.Wallet
	logger *slog.Logger
}

// NewDeployer returns a Deployer that reads artifacts below root and pays
// for deployments from w.
func NewDeployer(root string, w *wallet.Wallet, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{root: root, wallet: w, logger: logger}
}

// Deploy submits the contract creation for a and waits until code is present
// at the new address.
func (d *Deployer) Deploy(ctx context.Context, a *Artifact, args ...any) (common.Address, error) {
	data, err := a.CreationData(args...)
	if err != nil {
		return common.Address{}, err
	}

	tx, err := d.wallet.Send(ctx, nil, nil, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("submit %s creation: %w", a.ContractName, err)
	}
	d.logger.Info("waiting for deployment",
		slog.String("contract", a.ContractName),
		slog.String("tx_hash", tx.Hash().Hex()),
	)

	addr, err := bind.WaitDeployed(ctx, d.wallet.Network(), tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("wait for %s deployment: %w", a.ContractName, err)
	}
	return addr, nil
}

// GetOrDeploy deploys the artifact at artifactPath unless the ledger already
// holds it for (network, version). Raw constructor arguments are parsed
// against the artifact ABI only when a deployment actually happens.
func (d *Deployer) GetOrDeploy(ctx context.Context, l *ledger.Ledger, network, version, artifactPath string, rawArgs ...string) (common.Address, error) {
	return l.GetOrDeploy(ctx, network, version, artifactPath, func(ctx context.Context) (common.Address, error) {
		a, err := Load(d.root, artifactPath)
		if err != nil {
			return common.Address{}, err
		}
		args, err := ParseConstructorArgs(a, rawArgs)
		if err != nil {
			return common.Address{}, err
		}
		return d.Deploy(ctx, a, args...)
	})
}
