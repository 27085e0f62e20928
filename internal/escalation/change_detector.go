package escalation

import (
	"github.com/yegors/skywatch/pkg/logger"
)

// CandidateChange represents one change in the emergency-candidate set
// between evaluation cycles.
type CandidateChange struct {
	Type     string // "added" or "removed"
	Callsign string
}

// changeDetector tracks the candidate set across evaluation cycles so
// the controller only publishes deltas, not the full set every tick.
type changeDetector struct {
	previous map[string]struct{}
	logger   *logger.Logger
}

func newChangeDetector(logger *logger.Logger) *changeDetector {
	return &changeDetector{
		previous: make(map[string]struct{}),
		logger:   logger.Named("change-detector"),
	}
}

// Detect compares the current candidate set with the previous cycle's
// and returns the changes, updating the stored state.
func (cd *changeDetector) Detect(current []string) []CandidateChange {
	currentSet := make(map[string]struct{}, len(current))
	for _, cs := range current {
		currentSet[cs] = struct{}{}
	}

	var changes []CandidateChange
	for cs := range currentSet {
		if _, exists := cd.previous[cs]; !exists {
			changes = append(changes, CandidateChange{Type: "added", Callsign: cs})
		}
	}
	for cs := range cd.previous {
		if _, exists := currentSet[cs]; !exists {
			changes = append(changes, CandidateChange{Type: "removed", Callsign: cs})
		}
	}

	cd.previous = currentSet
	return changes
}
