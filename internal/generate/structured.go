package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vedanta-labs/vaidya/internal/models"
)

var requiredReportKeys = []string{"dosha", "mechanism", "symptoms", "management", "citations"}

// Structured invokes the generator with prompt and parses the output as a
// DiagnosisReport, retrying up to maxRetries times with the identical
// prompt. The generator's own variance is the retry mechanism; the prompt
// is never modified between attempts.
//
// Returns the report, the number of attempts consumed, and an error.
// Exhausting retries yields ErrValidation. Transport-level generator errors
// abort immediately since retrying a dead endpoint with the same budget
// would mask a retryable condition as a validation failure.
func Structured(ctx context.Context, g Generator, prompt string, maxRetries int) (*models.DiagnosisReport, int, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		raw, err := g.GenerateText(ctx, prompt)
		if err != nil {
			if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) {
				return nil, attempt, err
			}
			lastErr = err
			continue
		}

		report, err := parseReport(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return report, attempt, nil
	}
	return nil, maxRetries, fmt.Errorf("%w after %d attempts: %v", ErrValidation, maxRetries, lastErr)
}

// parseReport decodes model output into a DiagnosisReport. Key presence is
// checked on the raw object first so a structurally valid JSON with a
// missing key fails the same way as malformed JSON.
func parseReport(raw string) (*models.DiagnosisReport, error) {
	cleaned := stripFences(raw)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &keys); err != nil {
		return nil, fmt.Errorf("output is not a JSON object: %w", err)
	}
	for _, key := range requiredReportKeys {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("output missing required key %q", key)
		}
	}

	var report models.DiagnosisReport
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return nil, fmt.Errorf("output does not match report schema: %w", err)
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return &report, nil
}

// stripFences removes a surrounding markdown code fence if the model added
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
