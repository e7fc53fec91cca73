package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bidon15/beaconctl/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage beaconctl configuration",
	}

	var (
		path  string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a file",
		Long: `Write the configuration in effect (defaults, environment and flags merged)
as YAML. The file is readable by its owner only since it may hold the mnemonic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteFile(path, a.cfg, force); err != nil {
				return err
			}
			return a.output(cmd.OutOrStdout(), map[string]string{"path": path}, "wrote "+path)
		},
	}
	initCmd.Flags().StringVar(&path, "path", config.DefaultConfigName+".yaml", "file to write")
	initCmd.Flags().BoolVar(&force, "force", false, "replace an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			redacted := a.cfg.Redacted()
			data, err := redacted.YAML()
			if err != nil {
				return err
			}
			text := strings.TrimRight(string(data), "\n")
			if used := a.v.ConfigFileUsed(); used != "" {
				text += fmt.Sprintf("\n# from %s", used)
			}
			return a.output(cmd.OutOrStdout(), redacted, text)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
