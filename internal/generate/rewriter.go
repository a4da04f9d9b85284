package generate

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// selfContainedLength is the utterance length above which no rewrite is
// attempted; longer messages carry enough context to search on directly.
const selfContainedLength = 40

// ellipticalFragments are follow-up shapes that always need expansion from
// history before they are useful as search queries.
var ellipticalFragments = []string{
	"what about",
	"tell me more",
	"what else",
	"how about",
	"and then",
	"more",
	"why",
	"go on",
}

// Rewriter turns short, elliptical follow-ups into standalone search
// queries using the conversation history. Self-contained utterances pass
// through unchanged, and any rewrite failure degrades to identity so a slow
// or dead model never blocks retrieval.
//
// The rewritten query feeds retrieval only. Safety assessment always sees
// the raw utterance; a rewrite can smooth away the symptom specificity the
// gate keys on.
type Rewriter struct {
	generator Generator
	logger    *zap.Logger
}

// NewRewriter creates a query rewriter.
func NewRewriter(g Generator, logger *zap.Logger) *Rewriter {
	return &Rewriter{generator: g, logger: logger}
}

// Rewrite returns a standalone search query for the current utterance.
func (r *Rewriter) Rewrite(ctx context.Context, history, utterance string) string {
	if !needsRewrite(utterance) {
		return utterance
	}
	if strings.TrimSpace(history) == "" {
		return utterance
	}

	rewritten, err := r.generator.GenerateText(ctx, RewritePrompt(history, utterance))
	if err != nil {
		r.logger.Debug("query rewrite failed, using raw utterance", zap.Error(err))
		return utterance
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return utterance
	}
	r.logger.Debug("query rewritten",
		zap.String("from", utterance),
		zap.String("to", rewritten),
	)
	return rewritten
}

// needsRewrite reports whether the utterance is too elliptical to search
// on directly.
func needsRewrite(utterance string) bool {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return false
	}
	if isBarePunctuation(trimmed) {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, frag := range ellipticalFragments {
		if lower == frag || lower == frag+"?" {
			return true
		}
		if strings.HasPrefix(lower, frag+" ") && len(trimmed) < selfContainedLength {
			return true
		}
	}
	return len(trimmed) < selfContainedLength/2
}

func isBarePunctuation(s string) bool {
	for _, r := range s {
		switch r {
		case '?', '!', '.', ',', ' ':
		default:
			return false
		}
	}
	return true
}
