package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bidon15/beaconctl/internal/artifacts"
	"github.com/Bidon15/beaconctl/internal/ledger"
)

type deployment struct {
	Network  string `json:"network"`
	Version  string `json:"version"`
	Contract string `json:"contract"`
	Address  string `json:"address"`
}

func newDeployCmd(a *app) *cobra.Command {
	var rawArgs []string
	cmd := &cobra.Command{
		Use:   "deploy <artifact>",
		Short: "Deploy a contract unless the ledger already records it",
		Long: `Deploy the contract described by a compiled artifact, e.g.
@api3/airnode-protocol/contracts/rrp/requesters/RrpBeaconServer.sol, from the
mnemonic's default account. Nothing is sent when the ledger for the network
and contracts version already has an address for it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireVersion(); err != nil {
				return err
			}
			ctx := cmd.Context()

			w, release, err := a.accountWallet(ctx)
			if err != nil {
				return err
			}
			defer release()

			l, closeLedger, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			d := artifacts.NewDeployer(a.cfg.Artifacts, w, a.logger)
			addr, err := d.GetOrDeploy(ctx, l, a.cfg.Network, a.cfg.Version, args[0], rawArgs...)
			if err != nil {
				return err
			}

			out := deployment{
				Network:  a.cfg.Network,
				Version:  a.cfg.Version,
				Contract: ledger.ContractKey(args[0]),
				Address:  addr.Hex(),
			}
			return a.output(cmd.OutOrStdout(), out, out.Address)
		},
	}
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "constructor argument, repeated in order")
	return cmd
}

func newLookupCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "lookup [artifact]",
		Short: "Print the recorded address of a deployed contract",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireVersion(); err != nil {
				return err
			}
			if a.cfg.Network == "" {
				return fmt.Errorf("network is required (--network or BEACONCTL_NETWORK)")
			}
			if !all && len(args) == 0 {
				return fmt.Errorf("an artifact is required unless --all is given")
			}
			ctx := cmd.Context()

			l, closeLedger, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			defer closeLedger()

			if all {
				records, err := l.Records(ctx, a.cfg.Network, a.cfg.Version)
				if err != nil {
					return err
				}
				if a.jsonOut {
					out := make([]deployment, 0, len(records))
					for _, rec := range records {
						out = append(out, deployment{Network: rec.Network, Version: rec.Version, Contract: rec.ContractKey, Address: rec.Address.Hex()})
					}
					return a.output(cmd.OutOrStdout(), out, "")
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				for _, rec := range records {
					_, _ = fmt.Fprintf(tw, "%s\t%s\n", rec.ContractKey, rec.Address.Hex())
				}
				return tw.Flush()
			}

			addr, err := l.Lookup(ctx, a.cfg.Network, a.cfg.Version, args[0])
			if err != nil {
				return err
			}
			out := deployment{
				Network:  a.cfg.Network,
				Version:  a.cfg.Version,
				Contract: ledger.ContractKey(args[0]),
				Address:  addr.Hex(),
			}
			return a.output(cmd.OutOrStdout(), out, out.Address)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every contract recorded for the network")
	return cmd
}
