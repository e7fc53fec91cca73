package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Bidon15/beaconctl/internal/descriptor"
	"github.com/Bidon15/beaconctl/internal/template"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

type exportOutput struct {
	Output    string   `json:"output"`
	Beacons   []string `json:"beacons"`
	Documents []string `json:"documents"`
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Build beacon descriptors and write them for distribution",
		Long: `Join every template with the airnode trigger serving its endpoint, the
contracts recorded in the deployment ledger and the derived sponsor wallets,
then write one descriptor per beacon plus the documentation payloads.

Nothing is written unless every template resolves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireVersion(); err != nil {
				return err
			}
			ctx := cmd.Context()
			exp := a.cfg.Export

			templates, err := template.LoadDir(exp.Templates)
			if err != nil {
				return err
			}
			triggers, err := template.LoadTriggers(exp.AirnodeConfig)
			if err != nil {
				return err
			}
			jobs, err := template.LoadKeeperJobs(exp.AirkeeperConfig)
			if errors.Is(err, fs.ErrNotExist) {
				a.logger.Info("no airkeeper config, using default sponsors", slog.String("path", exp.AirkeeperConfig))
				jobs, err = nil, nil
			}
			if err != nil {
				return err
			}

			root, err := a.rootNode()
			if err != nil {
				return err
			}
			airnode, err := a.airnodeAddress(root)
			if err != nil {
				return err
			}
			sponsors, err := a.defaultSponsors(root)
			if err != nil {
				return err
			}

			l, closeLedger, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			agg, err := descriptor.New(descriptor.Config{
				Version:      a.cfg.Version,
				ContractKeys: exp.Contracts,
				Jobs:         jobs,
				Defaults:     sponsors,
				Airnode:      airnode,
				Contact:      a.cfg.Contact,
			}, l, descriptor.DerivedWallets{Root: root}, descriptor.NewDirStore(exp.Output), descriptor.WithLogger(a.logger))
			if err != nil {
				return err
			}

			beacons, err := agg.Build(ctx, templates, triggers)
			if err != nil {
				return fmt.Errorf("%d of %d templates failed, nothing written:\n%w", len(templates)-len(beacons), len(templates), err)
			}

			written, err := agg.Publish(ctx, beacons)
			a.metrics.DocumentsWritten(len(written))
			if err != nil {
				return err
			}

			out := exportOutput{Output: exp.Output, Documents: written}
			for _, b := range beacons {
				out.Beacons = append(out.Beacons, b.BeaconID)
			}
			text := fmt.Sprintf("wrote %d beacons to %s\n%s", len(beacons), exp.Output, strings.Join(written, "\n"))
			return a.output(cmd.OutOrStdout(), out, text)
		},
	}
}

// airnodeAddress is the configured airnode, or the mnemonic's default
// account.
func (a *app) airnodeAddress(root wallet.KeyTreeNode) (common.Address, error) {
	if a.cfg.Export.Airnode != "" {
		return common.HexToAddress(a.cfg.Export.Airnode), nil
	}
	return accountAddress(root, wallet.DefaultAccountPath)
}

// defaultSponsors fills the sponsors the configuration leaves empty from the
// mnemonic: its default account sponsors requests and its m/45'/60'/0'/0/0
// account sponsors the keeper.
func (a *app) defaultSponsors(root wallet.KeyTreeNode) (descriptor.Sponsors, error) {
	sp := a.cfg.DefaultSponsors()
	if sp.RequestSponsor == (common.Address{}) {
		addr, err := accountAddress(root, wallet.DefaultAccountPath)
		if err != nil {
			return sp, fmt.Errorf("derive default request sponsor: %w", err)
		}
		sp.RequestSponsor = addr
		a.logger.Debug("request sponsor defaults to the mnemonic account", slog.String("address", addr.Hex()))
	}
	if sp.KeeperSponsor == (common.Address{}) {
		addr, err := accountAddress(root, wallet.KeeperSponsorPath)
		if err != nil {
			return sp, fmt.Errorf("derive default keeper sponsor: %w", err)
		}
		sp.KeeperSponsor = addr
		a.logger.Debug("keeper sponsor defaults to the mnemonic keeper account", slog.String("address", addr.Hex()))
	}
	return sp, nil
}

func accountAddress(root wallet.KeyTreeNode, path accounts.DerivationPath) (common.Address, error) {
	node, err := root.DerivePath(path)
	if err != nil {
		return common.Address{}, err
	}
	return node.Address()
}
