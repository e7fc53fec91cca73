package descriptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/Bidon15/beaconctl/internal/ledger"
	"github.com/Bidon15/beaconctl/internal/template"
)

// DefaultContractKey is the ledger key of the beacon server contract.
const DefaultContractKey = "@api3/airnode-protocol/contracts/rrp/requesters/RrpBeaconServer"

// Sponsors are the sponsor addresses and deviation threshold of a beacon.
type Sponsors struct {
	RequestSponsor      common.Address
	KeeperSponsor       common.Address
	DeviationPercentage float64
}

// Config controls what the Aggregator resolves and publishes.
type Config struct {
	// Version selects the ledger the contract addresses come from.
	Version string
	// ContractKeys are looked up on every chain of a template. Empty means
	// DefaultContractKey.
	ContractKeys []string
	// Jobs assign sponsors per templateId. Templates without a job fall back
	// to Defaults.
	Jobs     []template.KeeperJob
	Defaults Sponsors

	// Airnode and Contact are published in apiMetadata.json.
	Airnode common.Address
	Contact string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Aggregator builds beacon descriptors and publishes them to a DocumentStore.
type Aggregator struct {
	cfg     Config
	jobs    map[common.Hash]template.KeeperJob
	ledger  *ledger.Ledger
	wallets WalletResolver
	store   DocumentStore
	logger  *slog.Logger
}

// New creates an Aggregator. Every collaborator is required.
func New(cfg Config, l *ledger.Ledger, wallets WalletResolver, store DocumentStore, opts ...Option) (*Aggregator, error) {
	if cfg.Version == "" {
		return nil, errors.New("descriptor: version is required")
	}
	if l == nil || wallets == nil || store == nil {
		return nil, errors.New("descriptor: ledger, wallet resolver and document store are required")
	}
	if len(cfg.ContractKeys) == 0 {
		cfg.ContractKeys = []string{DefaultContractKey}
	}

	jobs := make(map[common.Hash]template.KeeperJob, len(cfg.Jobs))
	for _, job := range cfg.Jobs {
		if _, dup := jobs[job.TemplateID]; dup {
			return nil, fmt.Errorf("descriptor: duplicate keeper job for template %s", job.TemplateID.Hex())
		}
		jobs[job.TemplateID] = job
	}

	a := &Aggregator{
		cfg:     cfg,
		jobs:    jobs,
		ledger:  l,
		wallets: wallets,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Build produces one descriptor per template. A template that does not join
// to exactly one trigger, or whose chains cannot be fully resolved, yields no
// descriptor; the errors of all such templates are joined and returned next
// to the descriptors that did succeed.
func (a *Aggregator) Build(ctx context.Context, templates []template.Record, triggers []template.Trigger) ([]Beacon, error) {
	var (
		beacons []Beacon
		errs    []error
	)
	for i := range templates {
		tpl := templates[i]

		m := template.FindTrigger(triggers, tpl.EndpointID)
		if m.Status != template.Found {
			errs = append(errs, &AmbiguousOrMissingTriggerError{
				TemplateID:   tpl.TemplateID,
				TemplateName: tpl.Name,
				EndpointID:   tpl.EndpointID,
				Status:       m.Status,
				Matches:      m.Count,
			})
			continue
		}

		b, err := a.build(ctx, tpl, m.Trigger)
		if err != nil {
			errs = append(errs, fmt.Errorf("template %s: %w", tpl.Name, err))
			continue
		}
		beacons = append(beacons, b)
	}

	a.logger.Info("descriptors built",
		slog.Int("templates", len(templates)),
		slog.Int("beacons", len(beacons)),
		slog.Int("failed", len(errs)),
	)
	return beacons, errors.Join(errs...)
}

func (a *Aggregator) build(ctx context.Context, tpl template.Record, trigger template.Trigger) (Beacon, error) {
	sp, err := a.sponsors(tpl)
	if err != nil {
		return Beacon{}, err
	}

	var sponsorWallet, keeperWallet common.Address
	chains := make([]Chain, len(tpl.Chains))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sponsorWallet, err = a.wallets.SponsorWallet(sp.RequestSponsor)
		if err != nil {
			return fmt.Errorf("derive sponsor wallet: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		keeperWallet, err = a.wallets.KeeperSponsorWallet(sp.KeeperSponsor)
		if err != nil {
			return fmt.Errorf("derive keeper sponsor wallet: %w", err)
		}
		return nil
	})
	for i, name := range tpl.Chains {
		g.Go(func() error {
			contracts, err := a.contracts(gctx, name)
			if err != nil {
				return err
			}
			chains[i] = Chain{Name: name, Contracts: contracts}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Beacon{}, err
	}

	for i := range chains {
		chains[i].Sponsor = AddressRef{Address: sp.RequestSponsor.Hex()}
		chains[i].SponsorWallet = AddressRef{Address: sponsorWallet.Hex()}
		chains[i].APIProviderAirkeeperSponsor = AddressRef{Address: sp.KeeperSponsor.Hex()}
		chains[i].APIProviderAirkeeperSponsorWallet = AddressRef{Address: keeperWallet.Hex()}
		chains[i].APIProviderAirkeeperDeviationPercentage = sp.DeviationPercentage
		chains[i].API3AirkeeperDeviationPercentage = sp.DeviationPercentage * 2
	}

	return Beacon{
		TemplateID:        tpl.TemplateID.Hex(),
		TemplateName:      tpl.Name,
		Parameters:        hexutil.Encode(tpl.EncodedParameters),
		DecodedParameters: tpl.DecodedParameters,
		BeaconID:          tpl.BeaconID().Hex(),
		Chains:            chains,
		Template:          tpl,
		Trigger:           trigger,
	}, nil
}

// sponsors picks the keeper job for tpl, or the defaults. Sponsor addresses
// are never invented: a missing one is an error.
func (a *Aggregator) sponsors(tpl template.Record) (Sponsors, error) {
	sp := a.cfg.Defaults
	if job, ok := a.jobs[tpl.TemplateID]; ok {
		dev, err := job.Deviation()
		if err != nil {
			return Sponsors{}, err
		}
		sp = Sponsors{
			RequestSponsor:      job.RequestSponsor,
			KeeperSponsor:       job.KeeperSponsor,
			DeviationPercentage: dev,
		}
	}
	if sp.RequestSponsor == (common.Address{}) {
		return Sponsors{}, errors.New("no request sponsor configured")
	}
	if sp.KeeperSponsor == (common.Address{}) {
		return Sponsors{}, errors.New("no keeper sponsor configured")
	}
	return sp, nil
}

func (a *Aggregator) contracts(ctx context.Context, network string) (map[string]string, error) {
	contracts := make(map[string]string, len(a.cfg.ContractKeys))
	for _, key := range a.cfg.ContractKeys {
		addr, err := a.ledger.Lookup(ctx, network, a.cfg.Version, key)
		if err != nil {
			return nil, err
		}
		contracts[contractName(key)] = addr.Hex()
	}
	return contracts, nil
}

// contractName is the bare contract name of a ledger key or artifact path.
func contractName(key string) string {
	return path.Base(ledger.ContractKey(key))
}
