package generate

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestNeedsRewrite(t *testing.T) {
	tests := []struct {
		utterance string
		want      bool
	}{
		{"?", true},
		{"!?", true},
		{"...", true},
		{"why", true},
		{"why?", true},
		{"tell me more", true},
		{"what about diet", true},
		{"more", true},
		{"go on", true},
		{"ok", true}, // short enough to be elliptical
		{"", false},  // empty never goes to the model
		{"what should I eat to reduce pitta aggravation this summer?", false},
		{"I have been having trouble sleeping for the last three weeks", false},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			if got := needsRewrite(tt.utterance); got != tt.want {
				t.Errorf("needsRewrite(%q) = %v, want %v", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestRewriter_SelfContainedPassesThrough(t *testing.T) {
	gen := &seqGen{}
	r := NewRewriter(gen, zap.NewNop())

	utterance := "what should I eat to reduce pitta aggravation this summer?"
	got := r.Rewrite(context.Background(), "USER: hi", utterance)
	if got != utterance {
		t.Errorf("got %q, want pass-through", got)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestRewriter_NoHistoryPassesThrough(t *testing.T) {
	gen := &seqGen{}
	r := NewRewriter(gen, zap.NewNop())

	got := r.Rewrite(context.Background(), "   ", "more")
	if got != "more" {
		t.Errorf("got %q, want pass-through without history", got)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestRewriter_ExpandsElliptical(t *testing.T) {
	gen := &seqGen{texts: []string{"Ayurvedic dietary recommendations for vata imbalance"}}
	r := NewRewriter(gen, zap.NewNop())

	got := r.Rewrite(context.Background(), "USER: I have a vata imbalance\nASSISTANT: ...", "what about diet")
	if got != "Ayurvedic dietary recommendations for vata imbalance" {
		t.Errorf("got %q, want the model's rewrite", got)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestRewriter_FailureDegradesToIdentity(t *testing.T) {
	gen := &seqGen{errs: []error{errors.New("model down")}}
	r := NewRewriter(gen, zap.NewNop())

	got := r.Rewrite(context.Background(), "USER: hi", "more")
	if got != "more" {
		t.Errorf("got %q, want raw utterance on rewrite failure", got)
	}
}

func TestRewriter_EmptyRewriteDegradesToIdentity(t *testing.T) {
	gen := &seqGen{texts: []string{"   \n"}}
	r := NewRewriter(gen, zap.NewNop())

	got := r.Rewrite(context.Background(), "USER: hi", "more")
	if got != "more" {
		t.Errorf("got %q, want raw utterance when the model returns nothing", got)
	}
}
