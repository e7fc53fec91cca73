// Package ledger records which contracts have been deployed where, so that
// deployment can be repeated without producing duplicate contracts.
//
// Entries are keyed by (network, version, contract key) and are written once.
// A key that is present is reused; removing one is a manual operation on the
// underlying store.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// DeployFunc submits a contract creation, waits for it to be confirmed and
// returns the new contract's address.
type DeployFunc func(ctx context.Context) (common.Address, error)

// Record is one ledger entry.
type Record struct {
	Network     string         `json:"network"`
	Version     string         `json:"version"`
	ContractKey string         `json:"contractKey"`
	Address     common.Address `json:"address"`
}

// Observer is notified about the outcome of GetOrDeploy.
type Observer interface {
	Deployed(rec Record)
	Reused(rec Record)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver registers obs for deploy and reuse events.
func WithObserver(obs Observer) Option {
	return func(l *Ledger) {
		l.observer = obs
	}
}

// Ledger provides get-or-deploy semantics over a Store.
//
// Within one process GetOrDeploy is serialized per (network, version) for the
// whole read-deploy-write cycle. Across processes the Store's compare-and-swap
// commit detects a racing deployment but cannot undo it.
type Ledger struct {
	store    Store
	logger   *slog.Logger
	observer Observer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Ledger backed by store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ContractKey normalizes an artifact identifier into a ledger key by dropping
// everything from the first '.' of its final path element. Directory
// components are kept, so "RrpBeaconServer.sol" and "RrpBeaconServer.json"
// share the key "RrpBeaconServer".
func ContractKey(artifactID string) string {
	id := strings.ReplaceAll(strings.TrimSpace(artifactID), `\`, "/")
	dir, base := path.Split(id)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		return ""
	}
	dir = strings.TrimPrefix(dir, "./")
	return dir + base
}

// GetOrDeploy returns the address recorded for contractID, invoking deploy
// and recording its result only if there is none.
func (l *Ledger) GetOrDeploy(ctx context.Context, network, version, contractID string, deploy DeployFunc) (common.Address, error) {
	key, err := checkKey(network, version, contractID)
	if err != nil {
		return common.Address{}, err
	}

	unlock := l.lock(network, version)
	defer unlock()

	entries, err := l.store.Load(ctx, network, version)
	if err != nil {
		return common.Address{}, fmt.Errorf("load ledger %s/%s: %w", version, network, err)
	}

	rec := Record{Network: network, Version: version, ContractKey: key}
	logger := l.logger.With(
		slog.String("network", network),
		slog.String("version", version),
		slog.String("contract", key),
	)

	if addr, ok := entries[key]; ok {
		rec.Address = addr
		logger.Info("reusing deployed contract", slog.String("address", addr.Hex()))
		if l.observer != nil {
			l.observer.Reused(rec)
		}
		return addr, nil
	}

	logger.Info("deploying contract")
	addr, err := deploy(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy %s: %w", key, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("deploy %s: deployer returned the zero address", key)
	}

	if err := l.store.Commit(ctx, network, version, key, addr); err != nil {
		return common.Address{}, fmt.Errorf("record %s: %w", key, err)
	}

	rec.Address = addr
	logger.Info("contract deployed", slog.String("address", addr.Hex()))
	if l.observer != nil {
		l.observer.Deployed(rec)
	}
	return addr, nil
}

// Lookup returns the address recorded for contractID. A missing ledger or a
// missing key is a *ContractNotDeployedError.
func (l *Ledger) Lookup(ctx context.Context, network, version, contractID string) (common.Address, error) {
	key, err := checkKey(network, version, contractID)
	if err != nil {
		return common.Address{}, err
	}

	entries, err := l.store.Load(ctx, network, version)
	if err != nil {
		return common.Address{}, fmt.Errorf("load ledger %s/%s: %w", version, network, err)
	}
	addr, ok := entries[key]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, &ContractNotDeployedError{Network: network, Version: version, ContractKey: key}
	}
	return addr, nil
}

// Records returns every entry for (network, version), sorted by key.
func (l *Ledger) Records(ctx context.Context, network, version string) ([]Record, error) {
	if err := validateName("network", network); err != nil {
		return nil, err
	}
	if err := validateName("version", version); err != nil {
		return nil, err
	}

	entries, err := l.store.Load(ctx, network, version)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s/%s: %w", version, network, err)
	}
	records := make([]Record, 0, len(entries))
	for key, addr := range entries {
		records = append(records, Record{Network: network, Version: version, ContractKey: key, Address: addr})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ContractKey < records[j].ContractKey })
	return records, nil
}

// Networks lists the networks with a ledger for version, sorted.
func (l *Ledger) Networks(ctx context.Context, version string) ([]string, error) {
	if err := validateName("version", version); err != nil {
		return nil, err
	}
	networks, err := l.store.Networks(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("list networks for %s: %w", version, err)
	}
	sort.Strings(networks)
	return networks, nil
}

func (l *Ledger) lock(network, version string) func() {
	id := version + "/" + network

	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func checkKey(network, version, contractID string) (string, error) {
	if err := validateName("network", network); err != nil {
		return "", err
	}
	if err := validateName("version", version); err != nil {
		return "", err
	}
	key := ContractKey(contractID)
	if key == "" {
		return "", fmt.Errorf("ledger: contract identifier %q has no name", contractID)
	}
	return key, nil
}
