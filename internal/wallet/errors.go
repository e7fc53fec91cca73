package wallet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors
var (
	ErrDerivation        = errors.New("wallet: derivation failed")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrTxReverted        = errors.New("wallet: transaction reverted")
)

// DerivationError reports root key material that cannot be walked.
type DerivationError struct {
	Path string
	Err  error
}

func (e *DerivationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("wallet: derivation failed: %v", e.Err)
	}
	return fmt.Sprintf("wallet: derive %s: %v", e.Path, e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }

func (e *DerivationError) Is(target error) bool { return target == ErrDerivation }

// InsufficientFundsError reports a funding source holding less than the
// amount it was asked to send.
type InsufficientFundsError struct {
	Source   common.Address
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("wallet: source %s has %s wei, needs %s wei",
		e.Source.Hex(), e.Balance.String(), e.Required.String())
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }
