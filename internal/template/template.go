// Package template loads Airnode request templates and the trigger and keeper
// job configuration that refers to them.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Bidon15/beaconctl/internal/airnodeabi"
)

// ErrTemplateIDMismatch is returned when a stored templateId does not hash
// from the template's own fields.
var ErrTemplateIDMismatch = errors.New("template: templateId does not match contents")

// Record is a request template. Name is taken from the file it was loaded
// from and is not part of the document.
type Record struct {
	Name              string                 `json:"-"`
	TemplateID        common.Hash            `json:"templateId"`
	Airnode           common.Address         `json:"airnode"`
	EndpointID        common.Hash            `json:"endpointId"`
	EncodedParameters hexutil.Bytes          `json:"parameters"`
	DecodedParameters []airnodeabi.Parameter `json:"decodedParameters"`
	Chains            []string               `json:"chains"`
}

// TemplateID hashes the tightly packed (airnode, endpointId, parameters).
func TemplateID(airnode common.Address, endpointID common.Hash, parameters []byte) common.Hash {
	return crypto.Keccak256Hash(airnode.Bytes(), endpointID.Bytes(), parameters)
}

// BeaconID hashes the tightly packed (templateId, parameters), the same
// scheme TemplateID uses.
func BeaconID(templateID common.Hash, parameters []byte) common.Hash {
	return crypto.Keccak256Hash(templateID.Bytes(), parameters)
}

// ComputeID returns the templateId r's fields hash to.
func (r *Record) ComputeID() common.Hash {
	return TemplateID(r.Airnode, r.EndpointID, r.EncodedParameters)
}

// BeaconID returns the beacon served by this template.
func (r *Record) BeaconID() common.Hash {
	return BeaconID(r.TemplateID, r.EncodedParameters)
}

// normalize fills whichever parameter form is missing and checks the
// templateId. A template without a templateId gets the computed one.
func (r *Record) normalize() error {
	switch {
	case len(r.EncodedParameters) == 0 && len(r.DecodedParameters) > 0:
		enc, err := airnodeabi.Encode(r.DecodedParameters)
		if err != nil {
			return err
		}
		r.EncodedParameters = enc
	case len(r.EncodedParameters) > 0 && len(r.DecodedParameters) == 0:
		dec, err := airnodeabi.Decode(r.EncodedParameters)
		if err != nil {
			return err
		}
		r.DecodedParameters = dec
	case len(r.EncodedParameters) == 0:
		enc, err := airnodeabi.Encode(nil)
		if err != nil {
			return err
		}
		r.EncodedParameters = enc
	}

	want := r.ComputeID()
	if r.TemplateID == (common.Hash{}) {
		r.TemplateID = want
		return nil
	}
	if r.TemplateID != want {
		return fmt.Errorf("%w: stored %s, computed %s", ErrTemplateIDMismatch, r.TemplateID.Hex(), want.Hex())
	}
	return nil
}

// LoadFile reads one template document.
func LoadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := r.normalize(); err != nil {
		return nil, fmt.Errorf("template %s: %w", r.Name, err)
	}
	return &r, nil
}

// LoadDir reads every *.json template in dir, sorted by file name. Two files
// describing the same templateId are an error.
func LoadDir(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	records := make([]Record, 0, len(names))
	seen := make(map[common.Hash]string, len(names))
	for _, name := range names {
		r, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[r.TemplateID]; ok {
			return nil, fmt.Errorf("template %s duplicates %s (%s)", r.Name, prev, r.TemplateID.Hex())
		}
		seen[r.TemplateID] = r.Name
		records = append(records, *r)
	}
	return records, nil
}
