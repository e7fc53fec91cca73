package descriptor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Bidon15/beaconctl/internal/airnodeabi"
	"github.com/Bidon15/beaconctl/internal/template"
)

// Document names written by Publish.
const (
	BeaconsDir            = "beacons"
	DocumentationFullName = "documentation_full.json"
	DocumentationLiteName = "documentation_beacons_lite.json"
	ChainsName            = "chains.json"
	APIMetadataName       = "apiMetadata.json"
)

// BeaconDocumentName is the name of the descriptor document for beaconID.
func BeaconDocumentName(beaconID string) string {
	return BeaconsDir + "/" + beaconID + ".json"
}

type templateDoc struct {
	Name              string                 `json:"name"`
	TemplateID        string                 `json:"templateId"`
	Airnode           string                 `json:"airnode"`
	EndpointID        string                 `json:"endpointId"`
	Parameters        string                 `json:"parameters"`
	DecodedParameters []airnodeabi.Parameter `json:"decodedParameters"`
	Chains            []string               `json:"chains"`
}

type fullDoc struct {
	Beacon
	TemplateDoc       templateDoc      `json:"template"`
	ExtraTemplateData template.Trigger `json:"extraTemplateData"`
}

type nameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type liteDoc struct {
	TemplateParameters []nameValue `json:"templateParameters"`
	TemplateID         string      `json:"templateId"`
	OISTitle           string      `json:"oisTitle"`
	EndpointName       string      `json:"endpointName"`
	BeaconID           string      `json:"beaconId"`
	TemplateName       string      `json:"templateName"`
}

type apiMetadata struct {
	Active  bool   `json:"active"`
	Airnode string `json:"airnode"`
	Contact string `json:"contact"`
}

// Publish writes one document per beacon, the documentation payloads, the
// chains overview of the ledger and the API metadata. It returns the names
// written, in order. Existing documents are replaced.
func (a *Aggregator) Publish(ctx context.Context, beacons []Beacon) ([]string, error) {
	var written []string
	put := func(name string, doc any) error {
		if err := a.store.Put(ctx, name, doc); err != nil {
			return err
		}
		written = append(written, name)
		return nil
	}

	full := make([]fullDoc, 0, len(beacons))
	lite := make([]liteDoc, 0, len(beacons))
	for _, b := range beacons {
		if err := put(BeaconDocumentName(b.BeaconID), b); err != nil {
			return written, err
		}
		full = append(full, fullDocument(b))
		lite = append(lite, liteDocument(b))
	}

	if err := put(DocumentationFullName, full); err != nil {
		return written, err
	}
	if err := put(DocumentationLiteName, lite); err != nil {
		return written, err
	}

	chains, err := a.Chains(ctx)
	if err != nil {
		return written, err
	}
	if err := put(ChainsName, chains); err != nil {
		return written, err
	}

	meta := apiMetadata{Active: true, Airnode: a.cfg.Airnode.Hex(), Contact: a.cfg.Contact}
	if err := put(APIMetadataName, meta); err != nil {
		return written, err
	}

	a.logger.Info("descriptors published",
		slog.Int("beacons", len(beacons)),
		slog.Int("documents", len(written)),
	)
	return written, nil
}

// Chains returns every contract recorded for the configured version, keyed
// by network and then by contract name.
func (a *Aggregator) Chains(ctx context.Context) (map[string]map[string]string, error) {
	networks, err := a.ledger.Networks(ctx, a.cfg.Version)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(networks))
	for _, network := range networks {
		records, err := a.ledger.Records(ctx, network, a.cfg.Version)
		if err != nil {
			return nil, err
		}
		contracts := make(map[string]string, len(records))
		for _, rec := range records {
			name := contractName(rec.ContractKey)
			if prev, ok := contracts[name]; ok && prev != rec.Address.Hex() {
				return nil, fmt.Errorf("network %s: contract name %s is ambiguous", network, name)
			}
			contracts[name] = rec.Address.Hex()
		}
		out[network] = contracts
	}
	return out, nil
}

func fullDocument(b Beacon) fullDoc {
	t := b.Template
	return fullDoc{
		Beacon: b,
		TemplateDoc: templateDoc{
			Name:              t.Name,
			TemplateID:        t.TemplateID.Hex(),
			Airnode:           t.Airnode.Hex(),
			EndpointID:        t.EndpointID.Hex(),
			Parameters:        b.Parameters,
			DecodedParameters: t.DecodedParameters,
			Chains:            t.Chains,
		},
		ExtraTemplateData: b.Trigger,
	}
}

func liteDocument(b Beacon) liteDoc {
	params := make([]nameValue, 0, len(b.DecodedParameters))
	for _, p := range b.DecodedParameters {
		if publicParameter(p.Name) {
			params = append(params, nameValue{Name: p.Name, Value: p.Value})
		}
	}
	return liteDoc{
		TemplateParameters: params,
		TemplateID:         b.TemplateID,
		OISTitle:           b.Trigger.OISTitle,
		EndpointName:       b.Trigger.EndpointName,
		BeaconID:           b.BeaconID,
		TemplateName:       b.TemplateName,
	}
}

// publicParameter reports whether a parameter is listed in the lite
// documentation. Reserved parameters start with '_'; only _path is shown.
func publicParameter(name string) bool {
	return !strings.Contains(name, "_") || strings.Contains(name, "_path")
}
