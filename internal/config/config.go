// Package config loads beaconctl configuration from flags, environment,
// config files and defaults, in that order of priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Bidon15/beaconctl/internal/descriptor"
	"github.com/Bidon15/beaconctl/internal/fsutil"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

// EnvPrefix prefixes every environment variable, e.g. BEACONCTL_MNEMONIC or
// BEACONCTL_LEDGER_DIR.
const EnvPrefix = "BEACONCTL"

// Config file names searched for when no file is given.
const (
	DefaultConfigName = "beaconctl"
	// IntegrationInfoFile is the per-integration file written by the
	// operator tooling. It is read as a config file when present.
	IntegrationInfoFile = "integration-info.json"
)

// Config is the resolved configuration.
type Config struct {
	Network     string `mapstructure:"network" yaml:"network" json:"network"`
	ProviderURL string `mapstructure:"providerUrl" yaml:"providerUrl" json:"providerUrl"`
	Mnemonic    string `mapstructure:"mnemonic" yaml:"mnemonic" json:"mnemonic"`
	Contact     string `mapstructure:"contact" yaml:"contact" json:"contact"`
	// Version of the contracts package; ledgers are kept per version.
	Version string `mapstructure:"version" yaml:"version" json:"version"`

	Artifacts string        `mapstructure:"artifacts" yaml:"artifacts" json:"artifacts"`
	Ledger    LedgerConfig  `mapstructure:"ledger" yaml:"ledger" json:"ledger"`
	Export    ExportConfig  `mapstructure:"export" yaml:"export" json:"export"`
	Funding   FundConfig    `mapstructure:"funding" yaml:"funding" json:"funding"`
	Log       LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
	Metrics   MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// LedgerConfig selects the deployment ledger store. DatabaseURL wins over Dir.
type LedgerConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir" json:"dir"`
	DatabaseURL string `mapstructure:"databaseUrl" yaml:"databaseUrl,omitempty" json:"databaseUrl,omitempty"`
}

// ExportConfig drives descriptor export.
type ExportConfig struct {
	Templates       string   `mapstructure:"templates" yaml:"templates" json:"templates"`
	AirnodeConfig   string   `mapstructure:"airnodeConfig" yaml:"airnodeConfig" json:"airnodeConfig"`
	AirkeeperConfig string   `mapstructure:"airkeeperConfig" yaml:"airkeeperConfig" json:"airkeeperConfig"`
	Output          string   `mapstructure:"output" yaml:"output" json:"output"`
	Contracts       []string `mapstructure:"contracts" yaml:"contracts" json:"contracts"`
	// Airnode is the address published in apiMetadata.json. Empty means the
	// address of the mnemonic's default account.
	Airnode string `mapstructure:"airnode" yaml:"airnode,omitempty" json:"airnode,omitempty"`

	// Sponsors used for templates without a keeper job.
	RequestSponsor      string  `mapstructure:"requestSponsor" yaml:"requestSponsor,omitempty" json:"requestSponsor,omitempty"`
	KeeperSponsor       string  `mapstructure:"keeperSponsor" yaml:"keeperSponsor,omitempty" json:"keeperSponsor,omitempty"`
	DeviationPercentage float64 `mapstructure:"deviationPercentage" yaml:"deviationPercentage" json:"deviationPercentage"`
}

// FundConfig holds the funding thresholds in ether.
type FundConfig struct {
	LowThreshold string `mapstructure:"lowThreshold" yaml:"lowThreshold" json:"lowThreshold"`
	TopUp        string `mapstructure:"topUp" yaml:"topUp" json:"topUp"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// MetricsConfig configures the optional Pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgatewayUrl" yaml:"pushgatewayUrl,omitempty" json:"pushgatewayUrl,omitempty"`
	Job            string `mapstructure:"job" yaml:"job" json:"job"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ProviderURL: "http://127.0.0.1:8545",
		Artifacts:   "artifacts",
		Ledger:      LedgerConfig{Dir: "deployments"},
		Export: ExportConfig{
			Templates:           "templates",
			AirnodeConfig:       filepath.Join("config", "config.json"),
			AirkeeperConfig:     filepath.Join("config", "airkeeper.json"),
			Output:              "export",
			Contracts:           []string{descriptor.DefaultContractKey},
			DeviationPercentage: 1,
		},
		Funding: FundConfig{LowThreshold: wallet.DefaultLowThreshold, TopUp: wallet.DefaultTopUp},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Job: "beaconctl"},
	}
}

// NewViper returns a viper instance with defaults and environment binding.
// Callers bind their flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("network", d.Network)
	v.SetDefault("providerUrl", d.ProviderURL)
	v.SetDefault("mnemonic", d.Mnemonic)
	v.SetDefault("contact", d.Contact)
	v.SetDefault("version", d.Version)
	v.SetDefault("artifacts", d.Artifacts)
	v.SetDefault("ledger.dir", d.Ledger.Dir)
	v.SetDefault("ledger.databaseUrl", d.Ledger.DatabaseURL)
	v.SetDefault("export.templates", d.Export.Templates)
	v.SetDefault("export.airnodeConfig", d.Export.AirnodeConfig)
	v.SetDefault("export.airkeeperConfig", d.Export.AirkeeperConfig)
	v.SetDefault("export.output", d.Export.Output)
	v.SetDefault("export.contracts", d.Export.Contracts)
	v.SetDefault("export.airnode", d.Export.Airnode)
	v.SetDefault("export.requestSponsor", d.Export.RequestSponsor)
	v.SetDefault("export.keeperSponsor", d.Export.KeeperSponsor)
	v.SetDefault("export.deviationPercentage", d.Export.DeviationPercentage)
	v.SetDefault("funding.lowThreshold", d.Funding.LowThreshold)
	v.SetDefault("funding.topUp", d.Funding.TopUp)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.pushgatewayUrl", d.Metrics.PushgatewayURL)
	v.SetDefault("metrics.job", d.Metrics.Job)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile, or searches the working directory for beaconctl.yaml
// and then integration-info.json, and unmarshals the merged result.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case fileExists(IntegrationInfoFile) && !hasNamedConfig("."):
		v.SetConfigFile(IntegrationInfoFile)
	default:
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".beaconctl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that do not depend on the command being run.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := c.FundingPolicy(); err != nil {
		return err
	}
	if d := c.Export.DeviationPercentage; d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("config: export.deviationPercentage must be a non-negative number")
	}
	for _, key := range []struct{ name, value string }{
		{"export.airnode", c.Export.Airnode},
		{"export.requestSponsor", c.Export.RequestSponsor},
		{"export.keeperSponsor", c.Export.KeeperSponsor},
	} {
		if key.value != "" && !common.IsHexAddress(key.value) {
			return fmt.Errorf("config: %s is not an address: %q", key.name, key.value)
		}
	}
	return nil
}

// RequireVersion returns an error when no contracts version is configured.
func (c *Config) RequireVersion() error {
	if c.Version == "" {
		return errors.New("config: version is required (--version or BEACONCTL_VERSION)")
	}
	return nil
}

// SlogLevel parses log.level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the slog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// FundingPolicy parses the funding thresholds.
func (c *Config) FundingPolicy() (wallet.FundingPolicy, error) {
	low, err := wallet.ParseEther(c.Funding.LowThreshold)
	if err != nil {
		return wallet.FundingPolicy{}, fmt.Errorf("config: funding.lowThreshold: %w", err)
	}
	topUp, err := wallet.ParseEther(c.Funding.TopUp)
	if err != nil {
		return wallet.FundingPolicy{}, fmt.Errorf("config: funding.topUp: %w", err)
	}
	p := wallet.FundingPolicy{LowThreshold: low, TopUp: topUp}
	if err := p.Validate(); err != nil {
		return wallet.FundingPolicy{}, err
	}
	return p, nil
}

// DefaultSponsors returns the sponsors for templates without a keeper job.
// Unset sponsors stay zero; the aggregator rejects them when needed.
func (c *Config) DefaultSponsors() descriptor.Sponsors {
	var s descriptor.Sponsors
	if c.Export.RequestSponsor != "" {
		s.RequestSponsor = common.HexToAddress(c.Export.RequestSponsor)
	}
	if c.Export.KeeperSponsor != "" {
		s.KeeperSponsor = common.HexToAddress(c.Export.KeeperSponsor)
	}
	s.DeviationPercentage = c.Export.DeviationPercentage
	return s
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Export.Contracts = append([]string(nil), c.Export.Contracts...)
	if out.Mnemonic != "" {
		out.Mnemonic = "********"
	}
	if out.Ledger.DatabaseURL != "" {
		out.Ledger.DatabaseURL = "********"
	}
	return &out
}

// YAML renders c as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// WriteFile writes c as YAML to path with owner-only permissions. An
// existing file is replaced only when force is set.
func WriteFile(path string, c *Config, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("config: %s already exists", path)
	}
	data, err := c.YAML()
	if err != nil {
		return err
	}
	header := []byte("# beaconctl configuration\n")
	return fsutil.WriteFileAtomic(path, append(header, data...), 0o600)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasNamedConfig(dir string) bool {
	for _, ext := range viper.SupportedExts {
		if fileExists(filepath.Join(dir, DefaultConfigName+"."+ext)) {
			return true
		}
	}
	return false
}
