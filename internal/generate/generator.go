// Package generate wraps the LLM behind a small interface, owns the phase
// prompt templates, and layers structured-output validation and query
// rewriting on top of raw generation.
package generate

import (
	"context"
	"errors"
	"strings"
)

// Generation error taxonomy. Timeout and Unavailable are retryable by the
// caller; the turn that hit them must leave session state untouched.
var (
	ErrTimeout     = errors.New("generate: model call timed out")
	ErrUnavailable = errors.New("generate: model endpoint unavailable")
	ErrValidation  = errors.New("generate: structured output never conformed")
)

// Fragment is one piece of a streamed response. The sequence is finite and
// ordered; Done is true on the final fragment, which may also carry Err.
type Fragment struct {
	Content string
	Done    bool
	Err     error
}

// Generator produces text from a prompt. Implementations classify failures
// into ErrTimeout and ErrUnavailable so callers can retry safely.
type Generator interface {
	// GenerateText returns the complete response for prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateStream returns an ordered, finite fragment sequence. The
	// channel is always closed; the stream is not restartable.
	GenerateStream(ctx context.Context, prompt string) (<-chan Fragment, error)
}

// Collect drains a fragment stream into the full response text. Validation
// of structured output needs the whole payload; partial JSON cannot be
// checked incrementally.
func Collect(stream <-chan Fragment) (string, error) {
	var b strings.Builder
	for frag := range stream {
		b.WriteString(frag.Content)
		if frag.Err != nil {
			return b.String(), frag.Err
		}
	}
	return b.String(), nil
}
