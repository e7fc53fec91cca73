package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/beaconctl/internal/fsutil"
)

// FileStore keeps one JSON document per (network, version) at
// <root>/<version>/<network>.json. Each document maps contract keys to
// checksummed addresses and is replaced as a whole on every commit.
type FileStore struct {
	root string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at root, typically "deployments".
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Path returns the ledger file for (network, version).
func (s *FileStore) Path(network, version string) string {
	return filepath.Join(s.root, version, network+".json")
}

func (s *FileStore) Load(_ context.Context, network, version string) (map[string]common.Address, error) {
	if err := validateName("network", network); err != nil {
		return nil, err
	}
	if err := validateName("version", version); err != nil {
		return nil, err
	}
	return s.read(s.Path(network, version))
}

func (s *FileStore) Commit(_ context.Context, network, version, key string, addr common.Address) error {
	if err := validateName("network", network); err != nil {
		return err
	}
	if err := validateName("version", version); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(network, version)
	entries, err := s.read(path)
	if err != nil {
		return err
	}
	if existing, ok := entries[key]; ok {
		if existing == addr {
			return nil
		}
		return &LedgerWriteConflictError{
			Network:     network,
			Version:     version,
			ContractKey: key,
			Existing:    existing,
			Proposed:    addr,
		}
	}
	entries[key] = addr

	doc := make(map[string]string, len(entries))
	for k, v := range entries {
		doc[k] = v.Hex()
	}
	if err := fsutil.WriteJSON(path, doc); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func (s *FileStore) Networks(_ context.Context, version string) ([]string, error) {
	if err := validateName("version", version); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger dir: %w", err)
	}

	var networks []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		networks = append(networks, strings.TrimSuffix(name, ".json"))
	}
	return networks, nil
}

func (s *FileStore) read(path string) (map[string]common.Address, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]common.Address), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	entries := make(map[string]common.Address, len(doc))
	for key, value := range doc {
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("parse ledger %s: %s is not an address: %q", path, key, value)
		}
		entries[key] = common.HexToAddress(value)
	}
	return entries, nil
}
