package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/beaconctl/internal/derivation"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

type derivedPath struct {
	Address   string `json:"address"`
	Namespace string `json:"namespace"`
	Path      string `json:"path"`
	FullPath  string `json:"fullPath"`
	Wallet    string `json:"wallet,omitempty"`
}

func newDeriveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive wallet paths and addresses from a counterparty address",
	}

	var namespace string
	pathCmd := &cobra.Command{
		Use:   "path <address>",
		Short: "Print the derivation path for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deriver(namespace)
			if err != nil {
				return err
			}
			p, err := d.PathSegment(args[0])
			if err != nil {
				return err
			}
			out := derivedPath{
				Address:   args[0],
				Namespace: d.Namespace.String(),
				Path:      p.String(),
				FullPath:  p.Full().String(),
			}
			return a.output(cmd.OutOrStdout(), out, out.FullPath)
		},
	}

	walletCmd := &cobra.Command{
		Use:   "wallet <address>",
		Short: "Print the wallet the mnemonic controls for an address",
		Long: `Print the address of the wallet derived from the configured mnemonic for a
sponsor or keeper sponsor address. The private key is never printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deriver(namespace)
			if err != nil {
				return err
			}
			counterparty, err := derivation.ParseAddress(args[0])
			if err != nil {
				return err
			}
			root, err := a.rootNode()
			if err != nil {
				return err
			}
			p, err := d.PathFor(counterparty)
			if err != nil {
				return err
			}
			addr, err := wallet.DeriveAddress(root, d, counterparty)
			if err != nil {
				return err
			}
			out := derivedPath{
				Address:   counterparty.Hex(),
				Namespace: d.Namespace.String(),
				Path:      p.String(),
				FullPath:  p.Full().String(),
				Wallet:    addr.Hex(),
			}
			return a.output(cmd.OutOrStdout(), out, fmt.Sprintf("%s\t%s", out.Wallet, out.FullPath))
		},
	}

	for _, c := range []*cobra.Command{pathCmd, walletCmd} {
		c.Flags().StringVar(&namespace, "namespace", "rrp", "derivation scheme: rrp, keeper or a raw index")
		cmd.AddCommand(c)
	}
	return cmd
}

func deriver(namespace string) (derivation.Deriver, error) {
	n, err := derivation.ParseNamespace(namespace)
	if err != nil {
		return derivation.Deriver{}, err
	}
	return derivation.Deriver{Namespace: n}, nil
}
