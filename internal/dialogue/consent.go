package dialogue

import "strings"

// consentWords are the affirmative tokens accepted when the session waits
// for remedies consent. Matching is token-based, not exact-string, so
// "yes please" and "sure, go ahead" both count.
var consentWords = map[string]struct{}{
	"yes":      {},
	"yeah":     {},
	"yep":      {},
	"ok":       {},
	"okay":     {},
	"sure":     {},
	"please":   {},
	"remedies": {},
}

// ParseConsent reports whether the utterance is an affirmative reply.
// Anything without an affirmative token is treated as a decline; the cost
// of a wrong "no" is only a polite farewell.
func ParseConsent(utterance string) bool {
	for _, tok := range strings.Fields(strings.ToLower(utterance)) {
		tok = strings.Trim(tok, ".,;:!?")
		if _, ok := consentWords[tok]; ok {
			return true
		}
	}
	return false
}
