// Package artifacts loads compiled contract artifacts and deploys them
// through the deployment ledger.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled Solidity contract with ABI and creation bytecode.
type Artifact struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`

	parsed *abi.ABI
}

// Bytecode accepts both the hardhat form (a hex string) and the foundry form
// ({"object": "0x..."}).
type Bytecode struct {
	Object string `json:"object"`
}

func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Object = s
		return nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bytecode must be a string or an object: %w", err)
	}
	b.Object = obj.Object
	return nil
}

// Bytes decodes the creation bytecode.
func (a *Artifact) Bytes() ([]byte, error) {
	code := strings.TrimSpace(a.Bytecode.Object)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("%s: empty bytecode", a.ContractName)
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	if strings.Contains(code, "__") {
		return nil, fmt.Errorf("%s: bytecode has unlinked libraries", a.ContractName)
	}
	b, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("%s: decode bytecode: %w", a.ContractName, err)
	}
	return b, nil
}

// ParsedABI returns the contract ABI.
func (a *Artifact) ParsedABI() (*abi.ABI, error) {
	if a.parsed != nil {
		return a.parsed, nil
	}
	parsed, err := abi.JSON(strings.NewReader(string(a.ABI)))
	if err != nil {
		return nil, fmt.Errorf("%s: parse ABI: %w", a.ContractName, err)
	}
	a.parsed = &parsed
	return a.parsed, nil
}

// CreationData returns the bytecode followed by the ABI-encoded constructor
// arguments.
func (a *Artifact) CreationData(args ...any) ([]byte, error) {
	code, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	parsed, err := a.ParsedABI()
	if err != nil {
		return nil, err
	}
	packed, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("%s: pack constructor arguments: %w", a.ContractName, err)
	}
	return append(code, packed...), nil
}

// Load reads the artifact for a source identifier such as
// "@api3/airnode-protocol/contracts/rrp/AirnodeRrp.sol". Compilers write one
// directory per source file under root; the artifact is the JSON document in
// it that is not a debug file.
func Load(root, artifactPath string) (*Artifact, error) {
	dir := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(artifactPath, "/")))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || strings.HasSuffix(name, ".dbg.json") {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no artifact in %s", dir)
	}
	sort.Strings(names)

	// Prefer the artifact named after the source file.
	pick := names[0]
	want := strings.SplitN(filepath.Base(dir), ".", 2)[0] + ".json"
	for _, name := range names {
		if name == want {
			pick = name
			break
		}
	}
	return LoadFile(filepath.Join(dir, pick))
}

// LoadFile parses a single artifact document.
func LoadFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(a.ABI) == 0 {
		return nil, errors.New("artifact " + path + " has no ABI")
	}
	if a.ContractName == "" {
		a.ContractName = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return &a, nil
}
