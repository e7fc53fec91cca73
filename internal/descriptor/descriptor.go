// Package descriptor joins templates, triggers, deployed contracts and
// derived sponsor wallets into beacon descriptor documents.
package descriptor

import (
	"github.com/Bidon15/beaconctl/internal/airnodeabi"
	"github.com/Bidon15/beaconctl/internal/template"
)

// AddressRef wraps an address the way descriptor consumers expect it.
type AddressRef struct {
	Address string `json:"address"`
}

// Chain is the per-chain part of a beacon descriptor.
type Chain struct {
	Name      string            `json:"name"`
	Contracts map[string]string `json:"contracts"`

	// Sponsor of the requests and the wallet the airnode derives for it.
	Sponsor       AddressRef `json:"sponsor"`
	SponsorWallet AddressRef `json:"sponsorWallet"`

	// Sponsor of the API provider's keeper and its derived wallet.
	APIProviderAirkeeperSponsor       AddressRef `json:"apiProviderAirkeeperSponsor"`
	APIProviderAirkeeperSponsorWallet AddressRef `json:"apiProviderAirkeeperSponsorWallet"`

	APIProviderAirkeeperDeviationPercentage float64 `json:"apiProviderAirkeeperDeviationPercentage"`
	API3AirkeeperDeviationPercentage        float64 `json:"api3AirkeeperDeviationPercentage"`
}

// Beacon is the descriptor of one beacon.
type Beacon struct {
	TemplateID        string                 `json:"templateId"`
	TemplateName      string                 `json:"templateName"`
	Parameters        string                 `json:"parameters"`
	DecodedParameters []airnodeabi.Parameter `json:"decodedParameters"`
	BeaconID          string                 `json:"beaconId"`
	Chains            []Chain                `json:"chains"`

	// Inputs the descriptor was built from, kept for the documentation
	// payloads.
	Template template.Record  `json:"-"`
	Trigger  template.Trigger `json:"-"`
}
