package assessment

import (
	"context"

	"github.com/yegors/skywatch/internal/collector"
)

// Urgency levels, lowest to highest.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// Result is the structured outcome of one emergency assessment.
type Result struct {
	UrgencyLevel          string   `json:"urgency_level"`
	EmergencyType         string   `json:"emergency_type"`
	Confidence            float64  `json:"confidence"`
	CallRequired          bool     `json:"call_required"`
	RecommendedRecipients []string `json:"recommended_recipients"`
	Summary               string   `json:"summary"`
}

// Assessor evaluates a consolidated context for emergency conditions.
// A nil result with nil error means the collaborator produced nothing
// usable; the caller treats that as "no assessment yet".
type Assessor interface {
	Assess(ctx context.Context, consolidated *collector.ConsolidatedContext) (*Result, error)
}
