// Package dialogue owns per-session conversation state and the diagnostic
// state machine that drives each turn.
package dialogue

// Phase is the state of the diagnostic conversation.
type Phase string

const (
	// PhaseGathering collects symptoms and background one question at a
	// time. Sessions start here.
	PhaseGathering Phase = "gathering"
	// PhaseDiagnosing is the transient state while a structured diagnosis
	// is being generated.
	PhaseDiagnosing Phase = "diagnosing"
	// PhaseVerifying is the transient state while the diagnosis is checked
	// against the gathered facts.
	PhaseVerifying Phase = "verifying"
	// PhaseExtraGathering asks a bounded number of further questions after
	// a failed verification.
	PhaseExtraGathering Phase = "extra_gathering"
	// PhaseEscalation signals that the diagnosis budget is exhausted and a
	// professional referral is warranted.
	PhaseEscalation Phase = "escalation"
	// PhaseRemediesConsent waits for the user to accept or decline remedy
	// suggestions.
	PhaseRemediesConsent Phase = "remedies_consent"
	// PhaseRemedies delivers remedy content and stays open for follow-ups.
	PhaseRemedies Phase = "remedies"
	// PhaseClosed accepts no further phase-changing input.
	PhaseClosed Phase = "closed"
)
