package template

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// KeeperJob is a keeper assignment for one template: who sponsors the
// requests, who sponsors the keeper, and the deviation that triggers an
// update.
type KeeperJob struct {
	TemplateID          common.Hash    `json:"templateId"`
	OISTitle            string         `json:"oisTitle,omitempty"`
	EndpointName        string         `json:"endpointName,omitempty"`
	DeviationPercentage string         `json:"deviationPercentage"`
	KeeperSponsor       common.Address `json:"keeperSponsor"`
	RequestSponsor      common.Address `json:"requestSponsor"`
}

// Deviation parses DeviationPercentage.
func (j KeeperJob) Deviation() (float64, error) {
	v, err := strconv.ParseFloat(j.DeviationPercentage, 64)
	if err != nil {
		return 0, fmt.Errorf("job %s: deviation %q: %w", j.TemplateID.Hex(), j.DeviationPercentage, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("job %s: deviation %q is not a finite number", j.TemplateID.Hex(), j.DeviationPercentage)
	}
	if v < 0 {
		return 0, fmt.Errorf("job %s: negative deviation %q", j.TemplateID.Hex(), j.DeviationPercentage)
	}
	return v, nil
}

// LoadKeeperJobs reads triggers.rrpBeaconServerKeeperJobs from an airkeeper
// config.
func LoadKeeperJobs(path string) ([]KeeperJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read airkeeper config: %w", err)
	}
	var doc struct {
		Triggers struct {
			Jobs []KeeperJob `json:"rrpBeaconServerKeeperJobs"`
		} `json:"triggers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse airkeeper config %s: %w", path, err)
	}
	return doc.Triggers.Jobs, nil
}
