package derivation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is matched by every *InvalidAddressError.
var ErrInvalidAddress = errors.New("derivation: invalid address")

// InvalidAddressError reports input that is not a well-formed 160-bit address.
type InvalidAddressError struct {
	Input  string
	Reason string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("derivation: invalid address %q: %s", e.Input, e.Reason)
}

func (e *InvalidAddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}

// ParseAddress accepts 40 hex characters with an optional 0x prefix. All-lower
// and all-upper inputs are taken as is; mixed case must carry a valid EIP-55
// checksum.
func ParseAddress(s string) (common.Address, error) {
	raw := strings.TrimSpace(s)
	if !common.IsHexAddress(raw) {
		return common.Address{}, &InvalidAddressError{Input: s, Reason: "expected 40 hex characters"}
	}

	body := raw
	if has0xPrefix(body) {
		body = body[2:]
	}
	addr := common.HexToAddress(body)
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return common.Address{}, &InvalidAddressError{Input: s, Reason: "bad EIP-55 checksum"}
		}
	}
	return addr, nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
