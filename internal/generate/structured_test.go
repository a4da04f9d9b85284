package generate

import (
	"context"
	"errors"
	"testing"
)

// seqGen returns scripted (text, err) pairs in order and fails the test's
// expectations if called more times than scripted.
type seqGen struct {
	texts []string
	errs  []error
	calls int
}

func (g *seqGen) GenerateText(_ context.Context, _ string) (string, error) {
	i := g.calls
	g.calls++
	var text string
	var err error
	if i < len(g.texts) {
		text = g.texts[i]
	}
	if i < len(g.errs) {
		err = g.errs[i]
	}
	return text, err
}

func (g *seqGen) GenerateStream(ctx context.Context, prompt string) (<-chan Fragment, error) {
	text, err := g.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan Fragment, 1)
	ch <- Fragment{Content: text, Done: true}
	close(ch)
	return ch, nil
}

const goodReport = `{
  "dosha": "Pitta aggravation",
  "mechanism": "Excess heat impairs digestion.",
  "symptoms": ["heartburn"],
  "management": ["cooling diet"],
  "citations": ["3"]
}`

func TestStructured_FirstAttemptSucceeds(t *testing.T) {
	gen := &seqGen{texts: []string{goodReport}}
	report, attempts, err := Structured(context.Background(), gen, "p", 3)
	if err != nil {
		t.Fatalf("Structured: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if report.Dosha != "Pitta aggravation" {
		t.Errorf("dosha = %q", report.Dosha)
	}
}

func TestStructured_RetriesOnInvalidOutput(t *testing.T) {
	gen := &seqGen{texts: []string{"not json", `{"dosha": "x"}`, goodReport}}
	report, attempts, err := Structured(context.Background(), gen, "p", 3)
	if err != nil {
		t.Fatalf("Structured: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if report == nil {
		t.Fatal("expected a report on the final attempt")
	}
}

func TestStructured_ExhaustionYieldsErrValidation(t *testing.T) {
	gen := &seqGen{texts: []string{"bad", "bad", "bad", goodReport}}
	report, attempts, err := Structured(context.Background(), gen, "p", 3)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", attempts)
	}
	if gen.calls != 3 {
		t.Errorf("generator calls = %d, want exactly 3", gen.calls)
	}
}

func TestStructured_TransportErrorAbortsImmediately(t *testing.T) {
	for _, transport := range []error{ErrTimeout, ErrUnavailable, context.Canceled} {
		gen := &seqGen{errs: []error{transport}}
		_, attempts, err := Structured(context.Background(), gen, "p", 3)
		if !errors.Is(err, transport) {
			t.Errorf("got %v, want %v passed through", err, transport)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1; transport errors must not burn retries", attempts)
		}
		if gen.calls != 1 {
			t.Errorf("generator calls = %d, want 1", gen.calls)
		}
	}
}

func TestStructured_NonTransportErrorConsumesAttempt(t *testing.T) {
	gen := &seqGen{
		texts: []string{"", goodReport},
		errs:  []error{errors.New("odd model hiccup"), nil},
	}
	report, attempts, err := Structured(context.Background(), gen, "p", 3)
	if err != nil {
		t.Fatalf("Structured: %v", err)
	}
	if attempts != 2 || report == nil {
		t.Errorf("attempts = %d report = %v, want recovery on attempt 2", attempts, report)
	}
}

func TestStructured_MissingKeyRejected(t *testing.T) {
	// Valid JSON, valid struct shape, but a required key absent entirely.
	noCitations := `{"dosha": "Vata", "mechanism": "m", "symptoms": ["s"], "management": ["m"]}`
	gen := &seqGen{texts: []string{noCitations}}
	_, _, err := Structured(context.Background(), gen, "p", 1)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("got %v, want ErrValidation for missing key", err)
	}
}

func TestStructured_ZeroRetriesMeansOne(t *testing.T) {
	gen := &seqGen{texts: []string{goodReport}}
	_, attempts, err := Structured(context.Background(), gen, "p", 0)
	if err != nil || attempts != 1 {
		t.Errorf("attempts = %d err = %v, want one attempt", attempts, err)
	}
}

func TestParseReport_StripsFences(t *testing.T) {
	fenced := "```json\n" + goodReport + "\n```"
	report, err := parseReport(fenced)
	if err != nil {
		t.Fatalf("parseReport: %v", err)
	}
	if report.Dosha != "Pitta aggravation" {
		t.Errorf("dosha = %q", report.Dosha)
	}

	bare := "```\n" + goodReport + "\n```"
	if _, err := parseReport(bare); err != nil {
		t.Errorf("parseReport with bare fence: %v", err)
	}
}

func TestParseReport_EmptyFieldValuesRejected(t *testing.T) {
	blank := `{"dosha": "  ", "mechanism": "m", "symptoms": ["s"], "management": ["m"], "citations": ["1"]}`
	if _, err := parseReport(blank); err == nil {
		t.Error("blank dosha should fail validation")
	}
	emptyList := `{"dosha": "Vata", "mechanism": "m", "symptoms": [], "management": ["m"], "citations": ["1"]}`
	if _, err := parseReport(emptyList); err == nil {
		t.Error("empty symptoms should fail validation")
	}
}

func TestCollect(t *testing.T) {
	ch := make(chan Fragment, 3)
	ch <- Fragment{Content: "hello "}
	ch <- Fragment{Content: "world"}
	ch <- Fragment{Done: true}
	close(ch)

	text, err := Collect(ch)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q", text)
	}
}

func TestCollect_ErrorFragment(t *testing.T) {
	wantErr := errors.New("stream broke")
	ch := make(chan Fragment, 2)
	ch <- Fragment{Content: "partial"}
	ch <- Fragment{Done: true, Err: wantErr}
	close(ch)

	text, err := Collect(ch)
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want stream error", err)
	}
	if text != "partial" {
		t.Errorf("partial text = %q, want what arrived before the error", text)
	}
}
