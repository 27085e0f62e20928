package assessment

import "strings"

// Indicators are the deterministic emergency signals detectable in a
// transcript without any model call. They drive the keyword assessor
// and double as a sanity layer over model output.
type Indicators struct {
	MaydayDeclared   bool
	PanPanDeclared   bool
	FuelEmergency    bool
	MedicalEmergency bool
	MechanicalIssue  bool
	WeatherEmergency bool
	FireSmoke        bool
	PriorityLanding  bool
}

var indicatorTokens = map[string][]string{
	"mayday":     {"mayday", "emergency"},
	"pan_pan":    {"pan pan", "pan-pan"},
	"fuel":       {"low fuel", "minimum fuel", "fuel emergency"},
	"medical":    {"medical", "sick", "heart attack"},
	"mechanical": {"engine", "hydraulic", "gear", "flaps"},
	"weather":    {"icing", "turbulence", "storm", "wind shear"},
	"fire":       {"fire", "smoke", "burning"},
	"priority":   {"priority", "straight in", "vectors"},
}

// DetectIndicators scans the text for emergency signals.
func DetectIndicators(text string) Indicators {
	lower := strings.ToLower(text)
	contains := func(key string) bool {
		for _, token := range indicatorTokens[key] {
			if strings.Contains(lower, token) {
				return true
			}
		}
		return false
	}

	return Indicators{
		MaydayDeclared:   contains("mayday"),
		PanPanDeclared:   contains("pan_pan"),
		FuelEmergency:    contains("fuel"),
		MedicalEmergency: contains("medical"),
		MechanicalIssue:  contains("mechanical"),
		WeatherEmergency: contains("weather"),
		FireSmoke:        contains("fire"),
		PriorityLanding:  contains("priority"),
	}
}

// Count returns how many distinct indicators fired.
func (ind Indicators) Count() int {
	n := 0
	for _, v := range []bool{
		ind.MaydayDeclared, ind.PanPanDeclared, ind.FuelEmergency,
		ind.MedicalEmergency, ind.MechanicalIssue, ind.WeatherEmergency,
		ind.FireSmoke, ind.PriorityLanding,
	} {
		if v {
			n++
		}
	}
	return n
}

// Urgency maps the indicator set onto an urgency level.
func (ind Indicators) Urgency() string {
	switch {
	case ind.MaydayDeclared || ind.FireSmoke:
		return UrgencyCritical
	case ind.PanPanDeclared || ind.MedicalEmergency:
		return UrgencyHigh
	case ind.FuelEmergency || ind.MechanicalIssue:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// EmergencyType maps the indicator set onto an emergency type, most
// severe first.
func (ind Indicators) EmergencyType() string {
	switch {
	case ind.MaydayDeclared:
		return "mayday"
	case ind.FireSmoke:
		return "fire"
	case ind.PanPanDeclared:
		return "pan_pan"
	case ind.MedicalEmergency:
		return "medical"
	case ind.MechanicalIssue:
		return "mechanical"
	case ind.WeatherEmergency:
		return "weather"
	case ind.FuelEmergency:
		return "fuel"
	default:
		return "unknown"
	}
}

// SuggestsAction reports whether the indicators alone warrant
// escalation.
func (ind Indicators) SuggestsAction() bool {
	return ind.MaydayDeclared || ind.PanPanDeclared || ind.FireSmoke || ind.Count() >= 2
}
