package assessment

import "testing"

func TestDetectIndicators(t *testing.T) {
	ind := DetectIndicators("MAYDAY MAYDAY MAYDAY engine fire, requesting priority vectors")
	if !ind.MaydayDeclared {
		t.Error("Expected mayday detected")
	}
	if !ind.FireSmoke {
		t.Error("Expected fire detected")
	}
	if !ind.MechanicalIssue {
		t.Error("Expected mechanical detected (engine)")
	}
	if !ind.PriorityLanding {
		t.Error("Expected priority detected")
	}
	if ind.MedicalEmergency {
		t.Error("Did not expect medical")
	}
	if ind.Count() != 4 {
		t.Errorf("Expected 4 indicators, got %d", ind.Count())
	}
}

func TestDetectIndicatorsCaseInsensitive(t *testing.T) {
	if !DetectIndicators("Pan Pan Pan Pan").PanPanDeclared {
		t.Error("Expected pan-pan detected in mixed case")
	}
	if !DetectIndicators("declaring LOW FUEL").FuelEmergency {
		t.Error("Expected fuel emergency detected")
	}
}

func TestIndicatorsUrgencyTiers(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"mayday mayday", UrgencyCritical},
		{"smoke in the cockpit", UrgencyCritical},
		{"pan pan, unwell passenger", UrgencyHigh},
		{"medical assistance on arrival", UrgencyHigh},
		{"minimum fuel", UrgencyMedium},
		{"gear indication problem", UrgencyMedium},
		{"cleared for the visual", UrgencyLow},
	}
	for _, tt := range tests {
		if got := DetectIndicators(tt.text).Urgency(); got != tt.want {
			t.Errorf("Urgency(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestIndicatorsEmergencyTypeSeverityOrder(t *testing.T) {
	// Mayday outranks the co-occurring fire indicator.
	ind := DetectIndicators("mayday, smoke in the cabin")
	if got := ind.EmergencyType(); got != "mayday" {
		t.Errorf("Expected mayday type, got %s", got)
	}

	if got := DetectIndicators("hydraulic failure").EmergencyType(); got != "mechanical" {
		t.Errorf("Expected mechanical type, got %s", got)
	}
	if got := DetectIndicators("all normal").EmergencyType(); got != "unknown" {
		t.Errorf("Expected unknown type, got %s", got)
	}
}

func TestSuggestsAction(t *testing.T) {
	if !DetectIndicators("mayday").SuggestsAction() {
		t.Error("Expected mayday alone to suggest action")
	}
	if DetectIndicators("gear check complete").SuggestsAction() {
		t.Error("Expected single mechanical indicator not to suggest action")
	}
	// Two non-declaration indicators together do suggest action.
	if !DetectIndicators("low fuel and hydraulic problems").SuggestsAction() {
		t.Error("Expected two indicators to suggest action")
	}
}
