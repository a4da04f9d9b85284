package models

import (
	"fmt"
	"strings"
)

// DiagnosisReport is the structured output of a diagnosis generation.
// All fields are required; a report missing any of them must not be trusted.
type DiagnosisReport struct {
	Dosha      string   `json:"dosha"`
	Mechanism  string   `json:"mechanism"`
	Symptoms   []string `json:"symptoms"`
	Management []string `json:"management"`
	Citations  []string `json:"citations"`
}

// Validate checks that every required field is present and non-empty.
func (r *DiagnosisReport) Validate() error {
	if strings.TrimSpace(r.Dosha) == "" {
		return fmt.Errorf("diagnosis report missing dosha")
	}
	if strings.TrimSpace(r.Mechanism) == "" {
		return fmt.Errorf("diagnosis report missing mechanism")
	}
	if len(r.Symptoms) == 0 {
		return fmt.Errorf("diagnosis report missing symptoms")
	}
	if len(r.Management) == 0 {
		return fmt.Errorf("diagnosis report missing management")
	}
	if len(r.Citations) == 0 {
		return fmt.Errorf("diagnosis report missing citations")
	}
	return nil
}

// Render formats the report as plain text for conversation history and
// verification prompts.
func (r *DiagnosisReport) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DIAGNOSIS: %s\n", r.Dosha)
	fmt.Fprintf(&b, "MECHANISM: %s\n", r.Mechanism)
	fmt.Fprintf(&b, "SYMPTOMS: %s\n", strings.Join(r.Symptoms, "; "))
	fmt.Fprintf(&b, "MANAGEMENT: %s\n", strings.Join(r.Management, "; "))
	fmt.Fprintf(&b, "CITATIONS: %s", strings.Join(r.Citations, ", "))
	return b.String()
}
