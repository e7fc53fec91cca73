package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors
var (
	ErrContractNotDeployed = errors.New("ledger: contract not deployed")
	ErrWriteConflict       = errors.New("ledger: write conflict")
)

// ContractNotDeployedError reports a lookup for a key the ledger does not hold.
type ContractNotDeployedError struct {
	Network     string
	Version     string
	ContractKey string
}

func (e *ContractNotDeployedError) Error() string {
	return fmt.Sprintf("ledger: %s is not deployed on %s (version %s)", e.ContractKey, e.Network, e.Version)
}

func (e *ContractNotDeployedError) Is(target error) bool { return target == ErrContractNotDeployed }

// LedgerWriteConflictError reports a commit for a key that was bound to a
// different address after the caller last read the ledger.
type LedgerWriteConflictError struct {
	Network     string
	Version     string
	ContractKey string
	Existing    common.Address
	Proposed    common.Address
}

func (e *LedgerWriteConflictError) Error() string {
	return fmt.Sprintf("ledger: %s on %s (version %s) is already %s, refusing %s",
		e.ContractKey, e.Network, e.Version, e.Existing.Hex(), e.Proposed.Hex())
}

func (e *LedgerWriteConflictError) Is(target error) bool { return target == ErrWriteConflict }
