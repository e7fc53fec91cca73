package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bidon15/beaconctl/internal/config"
	"github.com/Bidon15/beaconctl/internal/ledger"
	"github.com/Bidon15/beaconctl/internal/metrics"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// pushTimeout bounds the Pushgateway push after a command.
const pushTimeout = 10 * time.Second

// DialFunc connects to an Ethereum JSON-RPC endpoint.
type DialFunc func(ctx context.Context, url string) (wallet.Network, error)

func dialEthereum(ctx context.Context, url string) (wallet.Network, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return client, nil
}

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	timeout time.Duration
	jsonOut bool
	verbose bool

	dial DialFunc

	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	runID   string
	started time.Time
	cancel  context.CancelFunc
}

func newApp() *app {
	return &app{
		v:       config.NewViper(),
		dial:    dialEthereum,
		metrics: metrics.New(),
		logger:  slog.Default(),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "beaconctl",
		Short: "beaconctl - deploy, fund and describe Airnode beacons",
		Long: `beaconctl deploys the beacon server contracts once per network and version,
derives the sponsor wallets an airnode controls, keeps them funded and exports
beacon descriptors for distribution.

Configuration (in order of priority):
  1. Command-line flags
  2. Environment variables (BEACONCTL_NETWORK, BEACONCTL_MNEMONIC, BEACONCTL_LEDGER_DIR, ...)
  3. Config file (beaconctl.yaml, or integration-info.json in the working directory)`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./beaconctl.yaml)")
	flags.DurationVar(&a.timeout, "timeout", 0, "abort the command after this long (0 waits indefinitely)")
	flags.BoolVar(&a.jsonOut, "json", false, "output in JSON format")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.String("network", "", "network name (or BEACONCTL_NETWORK)")
	flags.String("provider-url", "", "JSON-RPC endpoint (or BEACONCTL_PROVIDERURL)")
	flags.String("contracts-version", "", "contracts package version the ledger is kept for (or BEACONCTL_VERSION)")
	flags.String("ledger-dir", "", "deployment ledger directory (or BEACONCTL_LEDGER_DIR)")
	flags.String("database-url", "", "Postgres deployment ledger, overrides --ledger-dir (or BEACONCTL_LEDGER_DATABASEURL)")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")

	for key, flag := range map[string]string{
		"network":            "network",
		"providerUrl":        "provider-url",
		"version":            "contracts-version",
		"ledger.dir":         "ledger-dir",
		"ledger.databaseUrl": "database-url",
		"log.level":          "log-level",
		"log.format":         "log-format",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newVersionCmd(a),
		newDeriveCmd(a),
		newDeployCmd(a),
		newLookupCmd(a),
		newFundCmd(a),
		newExportCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads configuration and prepares logging before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.runID = uuid.NewString()
	a.started = time.Now()
	a.logger = logger.With(
		slog.String("run", a.runID),
		slog.String("command", cmd.CommandPath()),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout > 0 {
		ctx, a.cancel = context.WithTimeout(ctx, a.timeout)
	}
	cmd.SetContext(ctx)
	return nil
}

// execute runs args and records the outcome.
func (a *app) execute(ctx context.Context, root *cobra.Command, args []string) error {
	root.SetArgs(args)
	cmd, err := root.ExecuteContextC(ctx)
	a.finish(cmd, err)
	return err
}

func (a *app) finish(cmd *cobra.Command, err error) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.cfg == nil || cmd == nil {
		return
	}

	a.metrics.ObserveCommand(cmd.CommandPath(), time.Since(a.started), err)
	if err != nil {
		a.logger.Error("command failed", slog.String("error", err.Error()))
	}

	url := a.cfg.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if perr := a.metrics.Push(ctx, url, a.cfg.Metrics.Job, a.runID); perr != nil {
		a.logger.Warn("metrics push failed", slog.String("error", perr.Error()))
	}
}

// openLedger opens the configured ledger store. The returned function
// releases it.
func (a *app) openLedger(ctx context.Context) (*ledger.Ledger, func(), error) {
	opts := []ledger.Option{ledger.WithLogger(a.logger), ledger.WithObserver(a.metrics)}

	if url := a.cfg.Ledger.DatabaseURL; url != "" {
		store, err := ledger.OpenPostgresStore(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return ledger.New(store, opts...), store.Close, nil
	}
	if a.cfg.Ledger.Dir == "" {
		return nil, nil, errors.New("ledger directory is required (--ledger-dir or BEACONCTL_LEDGER_DIR)")
	}
	return ledger.New(ledger.NewFileStore(a.cfg.Ledger.Dir), opts...), func() {}, nil
}

// rootNode returns the airnode key tree root from the configured mnemonic.
func (a *app) rootNode() (*wallet.HDNode, error) {
	if a.cfg.Mnemonic == "" {
		return nil, errors.New("mnemonic is required (BEACONCTL_MNEMONIC or config file)")
	}
	return wallet.NewHDNodeFromMnemonic(a.cfg.Mnemonic)
}

// accountWallet returns the mnemonic's default account bound to the
// configured network.
func (a *app) accountWallet(ctx context.Context) (*wallet.Wallet, func(), error) {
	if a.cfg.Network == "" {
		return nil, nil, errors.New("network is required (--network or BEACONCTL_NETWORK)")
	}
	root, err := a.rootNode()
	if err != nil {
		return nil, nil, err
	}
	node, err := root.DerivePath(wallet.DefaultAccountPath)
	if err != nil {
		return nil, nil, err
	}

	network, err := a.dial(ctx, a.cfg.ProviderURL)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := network.(interface{ Close() }); ok {
			c.Close()
		}
	}

	w, err := wallet.New(node, network, a.logger.With(slog.String("network", a.cfg.Network)))
	if err != nil {
		release()
		return nil, nil, err
	}
	return w, release, nil
}

// output prints v as JSON with --json, and text otherwise.
func (a *app) output(w io.Writer, v any, text string) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version, commit hash, and build date of beaconctl",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := "beaconctl " + Version
			if a.verbose {
				text += fmt.Sprintf("\n  commit:  %s\n  built:   %s", Commit, BuildDate)
			}
			return a.output(cmd.OutOrStdout(), map[string]string{
				"version": Version,
				"commit":  Commit,
				"built":   BuildDate,
			}, text)
		},
	}
}
