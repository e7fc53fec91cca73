package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Bidon15/beaconctl/internal/derivation"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

type fundOutput struct {
	Network     string `json:"network"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Transferred bool   `json:"transferred"`
	Tx          string `json:"tx,omitempty"`
	Balance     string `json:"balance"`
}

func newFundCmd(a *app) *cobra.Command {
	var sponsorNamespace string
	cmd := &cobra.Command{
		Use:   "fund <address>",
		Short: "Top up an address from the mnemonic's default account",
		Long: `Send the configured top-up to an address whose balance is below the
configured threshold, and wait for the transfer to be confirmed.

With --sponsor the address is a sponsor, and the wallet derived for it in that
namespace is funded instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := a.cfg.FundingPolicy()
			if err != nil {
				return err
			}
			target, err := derivation.ParseAddress(args[0])
			if err != nil {
				return err
			}
			destination, err := a.fundingDestination(target, sponsorNamespace)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			source, release, err := a.accountWallet(ctx)
			if err != nil {
				return err
			}
			defer release()

			res, err := wallet.Fund(ctx, source, destination, policy)
			if err != nil {
				return err
			}
			a.metrics.Funded(a.cfg.Network, res)

			out := fundOutput{
				Network:     a.cfg.Network,
				Source:      source.Address().Hex(),
				Destination: res.Destination.Hex(),
				Transferred: res.Transferred,
				Balance:     wallet.FormatEther(res.Balance),
			}
			if res.Tx != nil {
				out.Tx = res.Tx.Hash().Hex()
			}
			text := fmt.Sprintf("%s balance %s ether", out.Destination, out.Balance)
			if !out.Transferred {
				text += " (no transfer needed)"
			}
			return a.output(cmd.OutOrStdout(), out, text)
		},
	}
	cmd.Flags().StringVar(&sponsorNamespace, "sponsor", "", "treat the address as a sponsor in this namespace (rrp or keeper)")
	return cmd
}

func (a *app) fundingDestination(target common.Address, sponsorNamespace string) (common.Address, error) {
	if sponsorNamespace == "" {
		return target, nil
	}
	d, err := deriver(sponsorNamespace)
	if err != nil {
		return common.Address{}, err
	}
	root, err := a.rootNode()
	if err != nil {
		return common.Address{}, err
	}
	return wallet.DeriveAddress(root, d, target)
}
