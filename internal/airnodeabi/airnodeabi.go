// Package airnodeabi encodes and decodes Airnode request parameters.
//
// An encoded parameter list is an ABI-encoded tuple. Its first word is a
// header: the ASCII version "1" followed by one letter per parameter naming
// its type, packed left-aligned into bytes32. Each parameter then contributes
// its name as bytes32 and its value in the named type.
package airnodeabi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Version is the only encoding version understood.
const Version = '1'

// MaxParameters is the number of type letters that fit in the header.
const MaxParameters = 30

// ErrInvalidEncoding is returned for data that is not a version 1 parameter list.
var ErrInvalidEncoding = errors.New("airnodeabi: invalid encoding")

// Parameter is one named, typed request parameter. Values are carried as
// text: decimal for integers, 0x-hex for addresses and bytes.
type Parameter struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts numeric values as well as strings.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type  string          `json:"type"`
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Type, p.Name = raw.Type, raw.Name

	var s string
	if err := json.Unmarshal(raw.Value, &s); err == nil {
		p.Value = s
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("parameter %s: value must be a string or a number", raw.Name)
	}
	p.Value = n.String()
	return nil
}

type typeInfo struct {
	letter byte
	abi    abi.Type
}

var (
	bytes32Type = mustType("bytes32")

	typesByName = map[string]typeInfo{
		"address":  {'a', mustType("address")},
		"bytes":    {'B', mustType("bytes")},
		"bytes32":  {'b', bytes32Type},
		"int256":   {'i', mustType("int256")},
		"string":   {'S', mustType("string")},
		"string32": {'s', bytes32Type},
		"uint256":  {'u', mustType("uint256")},
	}
	namesByLetter = func() map[byte]string {
		m := make(map[byte]string, len(typesByName))
		for name, info := range typesByName {
			m[info.letter] = name
		}
		return m
	}()
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Encode produces the encoded form of params.
func Encode(params []Parameter) ([]byte, error) {
	if len(params) > MaxParameters {
		return nil, fmt.Errorf("airnodeabi: %d parameters exceed the limit of %d", len(params), MaxParameters)
	}

	header := []byte{Version}
	args := abi.Arguments{{Type: bytes32Type}}
	values := make([]any, 0, 1+2*len(params))
	values = append(values, nil) // header, filled below

	for _, p := range params {
		info, ok := typesByName[p.Type]
		if !ok {
			return nil, fmt.Errorf("airnodeabi: parameter %q has unknown type %q", p.Name, p.Type)
		}
		name, err := ShortString(p.Name)
		if err != nil {
			return nil, fmt.Errorf("airnodeabi: parameter name: %w", err)
		}
		value, err := encodeValue(p)
		if err != nil {
			return nil, fmt.Errorf("airnodeabi: parameter %q: %w", p.Name, err)
		}
		header = append(header, info.letter)
		args = append(args, abi.Argument{Type: bytes32Type}, abi.Argument{Type: info.abi})
		values = append(values, name, value)
	}

	h, err := ShortString(string(header))
	if err != nil {
		return nil, err
	}
	values[0] = h
	return args.Pack(values...)
}

// EncodeHex is Encode rendered as 0x-prefixed hex.
func EncodeHex(params []Parameter) (string, error) {
	b, err := Encode(params)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

// Decode reverses Encode.
func Decode(data []byte) ([]Parameter, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidEncoding, len(data))
	}
	var headerWord [32]byte
	copy(headerWord[:], data[:32])
	header, ok := parseShortString(headerWord)
	if !ok || len(header) == 0 || header[0] != Version {
		return nil, fmt.Errorf("%w: bad header", ErrInvalidEncoding)
	}

	letters := header[1:]
	args := abi.Arguments{{Type: bytes32Type}}
	typeNames := make([]string, len(letters))
	for i := 0; i < len(letters); i++ {
		name, ok := namesByLetter[letters[i]]
		if !ok {
			return nil, fmt.Errorf("%w: unknown type letter %q", ErrInvalidEncoding, letters[i])
		}
		typeNames[i] = name
		args = append(args, abi.Argument{Type: bytes32Type}, abi.Argument{Type: typesByName[name].abi})
	}

	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	params := make([]Parameter, len(typeNames))
	for i, typ := range typeNames {
		nameWord, ok := values[1+2*i].([32]byte)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %d name", ErrInvalidEncoding, i)
		}
		name, ok := parseShortString(nameWord)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %d name is not text", ErrInvalidEncoding, i)
		}
		value, err := decodeValue(typ, values[2+2*i])
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %v", ErrInvalidEncoding, name, err)
		}
		params[i] = Parameter{Type: typ, Name: name, Value: value}
	}
	return params, nil
}

// DecodeHex is Decode for 0x-prefixed hex input.
func DecodeHex(s string) ([]Parameter, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return Decode(b)
}

// ShortString packs s into bytes32, left-aligned and zero padded. At most 31
// bytes fit so the result always ends in a zero byte.
func ShortString(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) > 31 {
		return out, fmt.Errorf("%q is longer than 31 bytes", s)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return out, fmt.Errorf("%q contains a zero byte", s)
	}
	copy(out[:], s)
	return out, nil
}

// parseShortString reverses ShortString. It reports false for words that
// could not have come from it.
func parseShortString(word [32]byte) (string, bool) {
	if word[31] != 0 {
		return "", false
	}
	n := bytes.IndexByte(word[:], 0)
	for _, b := range word[n:] {
		if b != 0 {
			return "", false
		}
	}
	s := string(word[:n])
	if !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}

func encodeValue(p Parameter) (any, error) {
	switch p.Type {
	case "address":
		if !common.IsHexAddress(p.Value) {
			return nil, fmt.Errorf("invalid address %q", p.Value)
		}
		return common.HexToAddress(p.Value), nil
	case "bytes":
		return hexutil.Decode(p.Value)
	case "bytes32":
		// Full-width hex is taken as raw bytes, anything else as short text.
		if len(p.Value) == 66 && strings.HasPrefix(p.Value, "0x") {
			if b, err := hexutil.Decode(p.Value); err == nil {
				var out [32]byte
				copy(out[:], b)
				return out, nil
			}
		}
		return ShortString(p.Value)
	case "string32":
		return ShortString(p.Value)
	case "string":
		return p.Value, nil
	case "int256", "uint256":
		n, ok := new(big.Int).SetString(strings.TrimSpace(p.Value), 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", p.Value)
		}
		if p.Type == "uint256" && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %q for uint256", p.Value)
		}
		return n, nil
	}
	return nil, fmt.Errorf("unknown type %q", p.Type)
}

func decodeValue(typ string, v any) (string, error) {
	switch typ {
	case "address":
		addr, ok := v.(common.Address)
		if !ok {
			return "", fmt.Errorf("want address, got %T", v)
		}
		return addr.Hex(), nil
	case "bytes":
		b, ok := v.([]byte)
		if !ok {
			return "", fmt.Errorf("want bytes, got %T", v)
		}
		return hexutil.Encode(b), nil
	case "bytes32", "string32":
		word, ok := v.([32]byte)
		if !ok {
			return "", fmt.Errorf("want bytes32, got %T", v)
		}
		if s, ok := parseShortString(word); ok {
			return s, nil
		}
		if typ == "string32" {
			return "", errors.New("string32 value is not text")
		}
		return hexutil.Encode(word[:]), nil
	case "string":
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("want string, got %T", v)
		}
		return s, nil
	case "int256", "uint256":
		n, ok := v.(*big.Int)
		if !ok {
			return "", fmt.Errorf("want integer, got %T", v)
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("unknown type %q", typ)
}
