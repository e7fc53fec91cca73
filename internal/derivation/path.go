// Package derivation maps on-chain counterparty addresses to hierarchical
// derivation path segments.
//
// An address is read as an unsigned 160-bit integer and sliced into six 31-bit
// windows, low-order first, so every segment is a valid non-hardened BIP-32
// index. The windows hold 186 bits; only the low 5 bits of the last one are
// ever set. This is a bit-slice, not a hash: distinct addresses give distinct
// paths, but nothing stronger is promised.
package derivation

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// SegmentCount is the number of address windows in a path.
	SegmentCount = 6

	segmentBits = 31

	// MaxSegment is the largest non-hardened child index.
	MaxSegment = 1<<segmentBits - 1
)

// Namespace is the reserved path segment that separates derivation schemes
// sharing one root key.
type Namespace uint32

const (
	// NamespaceRRP derives request-response sponsor (fulfiller) wallets.
	NamespaceRRP Namespace = 1
	// NamespaceKeeper derives keeper sponsor wallets.
	NamespaceKeeper Namespace = 12345
)

// RootPath is the account prefix every derived path hangs off: m/44'/60'/0'.
var RootPath = accounts.DerivationPath{
	accounts.DefaultRootDerivationPath[0],
	accounts.DefaultRootDerivationPath[1],
	accounts.DefaultRootDerivationPath[2],
}

// ParseNamespace accepts the scheme names used on the command line or a raw
// decimal index.
func ParseNamespace(s string) (Namespace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keeper", "airkeeper":
		return NamespaceKeeper, nil
	case "rrp", "sponsor":
		return NamespaceRRP, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("derivation: unknown namespace %q", s)
	}
	if n > MaxSegment {
		return 0, fmt.Errorf("derivation: namespace %d is not a non-hardened index", n)
	}
	return Namespace(n), nil
}

func (n Namespace) String() string {
	switch n {
	case NamespaceKeeper:
		return "keeper"
	case NamespaceRRP:
		return "rrp"
	}
	return strconv.FormatUint(uint64(n), 10)
}

// Path is a namespace followed by the six address segments.
type Path []uint32

// Namespace returns the leading namespace segment.
func (p Path) Namespace() Namespace {
	if len(p) == 0 {
		return 0
	}
	return Namespace(p[0])
}

// Segments returns the address windows without the namespace.
func (p Path) Segments() []uint32 {
	if len(p) == 0 {
		return nil
	}
	return p[1:]
}

// String renders the path as "/"-separated decimals, e.g. "12345/1/0/0/0/0/0".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = strconv.FormatUint(uint64(seg), 10)
	}
	return strings.Join(parts, "/")
}

// Full prefixes the path with RootPath.
func (p Path) Full() accounts.DerivationPath {
	full := make(accounts.DerivationPath, 0, len(RootPath)+len(p))
	full = append(full, RootPath...)
	return append(full, p...)
}

// Deriver computes paths for a single coordinator namespace.
type Deriver struct {
	Namespace Namespace
}

// Keeper returns the deriver for keeper sponsor wallets.
func Keeper() Deriver { return Deriver{Namespace: NamespaceKeeper} }

// RRP returns the deriver for request-response sponsor wallets.
func RRP() Deriver { return Deriver{Namespace: NamespaceRRP} }

// PathSegment parses address and returns namespace/s0/.../s5.
func (d Deriver) PathSegment(address string) (Path, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return d.PathFor(addr)
}

// PathFor is PathSegment for an already parsed address.
func (d Deriver) PathFor(addr common.Address) (Path, error) {
	if d.Namespace > MaxSegment {
		return nil, fmt.Errorf("derivation: namespace %d is not a non-hardened index", d.Namespace)
	}
	segs := Segments(addr)
	path := make(Path, 0, 1+SegmentCount)
	path = append(path, uint32(d.Namespace))
	return append(path, segs[:]...), nil
}

// Segments slices the address into six 31-bit windows, low-order first.
func Segments(addr common.Address) [SegmentCount]uint32 {
	value := new(big.Int).SetBytes(addr.Bytes())
	mask := big.NewInt(MaxSegment)

	var segs [SegmentCount]uint32
	window := new(big.Int)
	for i := range segs {
		window.Rsh(value, uint(segmentBits*i))
		window.And(window, mask)
		segs[i] = uint32(window.Uint64())
	}
	return segs
}

// ParsePath reads a "/"-separated path such as "12345/1/0/0/0/0/0".
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return nil, fmt.Errorf("derivation: empty path")
	}
	parts := strings.Split(s, "/")
	path := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("derivation: segment %d %q: %w", i, part, err)
		}
		if n > MaxSegment {
			return nil, fmt.Errorf("derivation: segment %d (%d) exceeds %d", i, n, MaxSegment)
		}
		path[i] = uint32(n)
	}
	return path, nil
}
