package generate

import (
	"context"
	"encoding/json"
)

// SystemOther is the catch-all classification; downstream treats it as no
// restriction.
const SystemOther = "other"

// BodySystems lists the classifications the system classifier may return.
var BodySystems = []string{
	"circulatory",
	"digestive",
	"respiratory",
	"musculoskeletal",
	"nervous",
	"urinary",
	"reproductive",
	"systemic",
	SystemOther,
}

// ClassifySystem asks the generator which body system the utterance
// concerns. Every failure path degrades to SystemOther: a misclassified
// query must widen retrieval, never narrow it wrongly or fail the turn.
func ClassifySystem(ctx context.Context, g Generator, utterance string) string {
	raw, err := g.GenerateText(ctx, SystemClassifierPrompt(utterance))
	if err != nil {
		return SystemOther
	}

	var parsed struct {
		PrimarySystem string `json:"primary_system"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return SystemOther
	}
	for _, s := range BodySystems {
		if parsed.PrimarySystem == s {
			return s
		}
	}
	return SystemOther
}
