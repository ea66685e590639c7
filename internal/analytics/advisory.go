package analytics

import (
	"fmt"
	"strings"
)

// Advice is the farmer-facing guidance for an alert tier
type Advice struct {
	Summary  string   `json:"summary"`
	Actions  []string `json:"actions,omitempty"`
	NextScan string   `json:"next_scan"`
}

// Advise builds the guidance for a field at the given tier and stress level
func Advise(level Level, pct float64) Advice {
	switch level {
	case Safe:
		return Advice{
			Summary:  fmt.Sprintf("Your field is in good health (%.1f%% stress detected). Continue current irrigation and nutrient management practices.", pct),
			NextScan: "7 days",
		}
	case Monitor:
		return Advice{
			Summary: fmt.Sprintf("Moderate stress detected (%.1f%%).", pct),
			Actions: []string{
				"Check soil moisture levels",
				"Inspect affected zones for pest/disease signs",
				"Consider supplemental irrigation",
			},
			NextScan: "3 days",
		}
	default:
		return Advice{
			Summary: fmt.Sprintf("CRITICAL stress detected (%.1f%%). Immediate action required.", pct),
			Actions: []string{
				"Emergency irrigation for water-stressed zones",
				"Soil nutrient testing",
				"On-ground inspection within 24 hours",
				"Consult agronomist for treatment plan",
			},
			NextScan: "Daily monitoring",
		}
	}
}

// Message renders the advice as a single line of text
func (a Advice) Message() string {
	var b strings.Builder
	b.WriteString(a.Summary)
	if len(a.Actions) > 0 {
		b.WriteString(" Recommended actions: ")
		for i, act := range a.Actions {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "(%d) %s", i+1, act)
		}
		b.WriteString(".")
	}
	b.WriteString(" Next recommended scan: ")
	b.WriteString(a.NextScan)
	b.WriteString(".")
	return b.String()
}

// Advisory returns the advice message for a stress percentage
func Advisory(level Level, pct float64) string {
	return Advise(level, pct).Message()
}
