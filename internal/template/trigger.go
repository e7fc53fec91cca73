package template

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// Trigger ties an endpoint to the OIS that serves it.
type Trigger struct {
	EndpointID   common.Hash `json:"endpointId"`
	OISTitle     string      `json:"oisTitle"`
	EndpointName string      `json:"endpointName"`
}

// MatchStatus is the outcome of FindTrigger.
type MatchStatus int

const (
	NotFound MatchStatus = iota
	Found
	Ambiguous
)

func (s MatchStatus) String() string {
	switch s {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not found"
	}
}

// Match is the result of looking up the trigger for an endpoint. Trigger is
// set only when Status is Found.
type Match struct {
	Status  MatchStatus
	Trigger Trigger
	Count   int
}

// FindTrigger returns the unique trigger for endpointID.
func FindTrigger(triggers []Trigger, endpointID common.Hash) Match {
	var m Match
	for _, t := range triggers {
		if t.EndpointID != endpointID {
			continue
		}
		m.Count++
		if m.Count == 1 {
			m.Trigger = t
		}
	}
	switch m.Count {
	case 0:
		m.Status = NotFound
	case 1:
		m.Status = Found
	default:
		m.Status = Ambiguous
		m.Trigger = Trigger{}
	}
	return m
}

// LoadTriggers reads triggers.rrp from an Airnode config.json.
func LoadTriggers(path string) ([]Trigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read airnode config: %w", err)
	}
	var doc struct {
		Triggers struct {
			RRP []Trigger `json:"rrp"`
		} `json:"triggers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse airnode config %s: %w", path, err)
	}
	return doc.Triggers.RRP, nil
}
