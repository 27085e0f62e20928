package assessment

import (
	"context"
	"fmt"
	"strings"

	"github.com/yegors/skywatch/internal/collector"
)

// KeywordAssessor classifies purely from the deterministic indicator
// table. It is the assessor of last resort when no model collaborator
// is configured, and the fallback when one misbehaves.
type KeywordAssessor struct{}

// NewKeywordAssessor creates a keyword-only assessor.
func NewKeywordAssessor() *KeywordAssessor {
	return &KeywordAssessor{}
}

// Assess implements Assessor.
func (a *KeywordAssessor) Assess(_ context.Context, consolidated *collector.ConsolidatedContext) (*Result, error) {
	text := consolidated.RawTranscript + " " + strings.Join(consolidated.Instructions, " ")
	ind := DetectIndicators(text)

	if !ind.SuggestsAction() {
		return &Result{
			UrgencyLevel:  UrgencyLow,
			EmergencyType: ind.EmergencyType(),
			Confidence:    consolidated.Confidence * 0.5,
			CallRequired:  false,
			Summary:       "no emergency indicators detected",
		}, nil
	}

	// Bump the transcription confidence slightly: a keyword hit is
	// corroborating evidence, capped at 1.0.
	confidence := consolidated.Confidence + 0.1
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &Result{
		UrgencyLevel:          ind.Urgency(),
		EmergencyType:         ind.EmergencyType(),
		Confidence:            confidence,
		CallRequired:          true,
		RecommendedRecipients: []string{"emergency_services"},
		Summary: fmt.Sprintf("%d emergency indicators in recent traffic for %s",
			ind.Count(), consolidated.Callsign),
	}, nil
}

var _ Assessor = (*KeywordAssessor)(nil)
