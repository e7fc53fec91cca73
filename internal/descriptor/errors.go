package descriptor

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/beaconctl/internal/template"
)

// ErrTriggerJoin is matched by every *AmbiguousOrMissingTriggerError.
var ErrTriggerJoin = errors.New("descriptor: template does not join to exactly one trigger")

// AmbiguousOrMissingTriggerError reports a template whose endpoint is served
// by no trigger or by more than one.
type AmbiguousOrMissingTriggerError struct {
	TemplateID   common.Hash
	TemplateName string
	EndpointID   common.Hash
	Status       template.MatchStatus
	Matches      int
}

func (e *AmbiguousOrMissingTriggerError) Error() string {
	return fmt.Sprintf("descriptor: template %s (%s): trigger for endpoint %s %s (%d matches)",
		e.TemplateName, e.TemplateID.Hex(), e.EndpointID.Hex(), e.Status, e.Matches)
}

func (e *AmbiguousOrMissingTriggerError) Is(target error) bool { return target == ErrTriggerJoin }
