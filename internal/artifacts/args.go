package artifacts

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseConstructorArgs converts command-line strings into the Go values the
// constructor's ABI expects. Arrays, tuples and functions are not supported.
func ParseConstructorArgs(a *Artifact, raw []string) ([]any, error) {
	parsed, err := a.ParsedABI()
	if err != nil {
		return nil, err
	}
	inputs := parsed.Constructor.Inputs
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("%s: constructor takes %d arguments, got %d", a.ContractName, len(inputs), len(raw))
	}

	args := make([]any, len(raw))
	for i, in := range inputs {
		v, err := parseArg(in.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d (%s %s): %w", a.ContractName, i, in.Type.String(), in.Name, err)
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.StringTy:
		return s, nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %q for unsigned type", s)
		}
		if !inRange(t, n) {
			return nil, fmt.Errorf("%q overflows %s", s, t.String())
		}
		switch t.Size {
		case 8, 16, 32, 64:
		default:
			// other widths are *big.Int in the abi package
			return n, nil
		}
		if t.T == abi.UintTy {
			return reflect.ValueOf(n.Uint64()).Convert(t.GetType()).Interface(), nil
		}
		return reflect.ValueOf(n.Int64()).Convert(t.GetType()).Interface(), nil
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t.String())
	}
}

// inRange reports whether n fits an integer type of t's width.
func inRange(t abi.Type, n *big.Int) bool {
	if t.T == abi.UintTy {
		return n.BitLen() <= t.Size
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Sign() < 0 {
		return n.CmpAbs(limit) <= 0
	}
	return n.Cmp(limit) < 0
}
