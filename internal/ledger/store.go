package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists one contract-key to address mapping per (network, version).
type Store interface {
	// Load returns the full mapping for (network, version). A ledger that was
	// never written yields an empty mapping and no error.
	Load(ctx context.Context, network, version string) (map[string]common.Address, error)
	// Commit binds key to addr. It is a no-op if key already holds addr and
	// fails with *LedgerWriteConflictError if key holds another address.
	Commit(ctx context.Context, network, version, key string, addr common.Address) error
	// Networks lists the networks that have a ledger for version.
	Networks(ctx context.Context, version string) ([]string, error)
}

// validateName rejects network and version names that cannot be used as a
// single path element.
func validateName(kind, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("ledger: %s is empty", kind)
	case name == "." || name == "..":
		return fmt.Errorf("ledger: invalid %s %q", kind, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("ledger: %s %q contains a path separator", kind, name)
	}
	return nil
}
