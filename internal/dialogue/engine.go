package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/config"
	"github.com/vedanta-labs/vaidya/internal/generate"
	"github.com/vedanta-labs/vaidya/internal/models"
	"github.com/vedanta-labs/vaidya/internal/safety"
)

// ExitCommand ends the session immediately, regardless of phase.
const ExitCommand = "exit"

const (
	exitMessage     = "Goodbye! Take care."
	closedMessage   = "This session has ended. Please start a new session to continue."
	farewellMessage = "I understand. Please let me know if you need anything else. Goodbye!"
	notFoundMessage = "I could find no relevant information in the provided texts. Could you describe your symptoms in a bit more detail?"

	escalationMessage = "Based on everything you have shared, I cannot reach a confident assessment. " +
		"I recommend consulting a qualified practitioner in person for a proper evaluation. " +
		"In the meantime, would you like to hear some general supportive remedies from the texts?"
)

// Retriever is the retrieval surface the engine depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, sourceFilter string) ([]*models.RetrievalHit, error)
}

// Reranker reorders retrieval hits by pair relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []*models.RetrievalHit) ([]*models.RetrievalHit, error)
}

// SafetyGate screens raw utterances for emergency patterns.
type SafetyGate interface {
	Assess(ctx context.Context, utterance string) (*safety.Assessment, error)
}

// QueryRewriter expands elliptical follow-ups for retrieval.
type QueryRewriter interface {
	Rewrite(ctx context.Context, history, utterance string) string
}

// TurnResult is what one processed user turn produces.
type TurnResult struct {
	Response    string
	Phase       Phase
	SafetyAlert *safety.Assessment
	Report      *models.DiagnosisReport
	Closed      bool
}

// Engine drives the diagnostic state machine. One engine serves many
// sessions; all per-session state lives in Memory, and callers serialize
// turns per session.
//
// A turn mutates a clone of the session memory and commits it back only
// after every generator round-trip succeeds. A turn that returns an error
// leaves the session exactly as it was, so retryable generator failures
// can never half-apply a phase transition.
type Engine struct {
	retriever Retriever
	reranker  Reranker
	gate      SafetyGate
	generator generate.Generator
	rewriter  QueryRewriter
	dialogue  config.DialogueConfig
	retrieval config.RetrievalConfig
	logger    *zap.Logger
}

// NewEngine wires the turn pipeline together.
func NewEngine(
	retriever Retriever,
	reranker Reranker,
	gate SafetyGate,
	generator generate.Generator,
	rewriter QueryRewriter,
	dialogueCfg config.DialogueConfig,
	retrievalCfg config.RetrievalConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		retriever: retriever,
		reranker:  reranker,
		gate:      gate,
		generator: generator,
		rewriter:  rewriter,
		dialogue:  dialogueCfg,
		retrieval: retrievalCfg,
		logger:    logger,
	}
}

// NewSession creates memory for a fresh session.
func (e *Engine) NewSession() *Memory {
	return NewMemory(e.dialogue.MaxTurns)
}

// ProcessTurn resolves one user turn: safety screening, phase transition,
// retrieval, and generation. On a nil error the memory has been updated
// with both the user and assistant turns; on error it is untouched.
func (e *Engine) ProcessTurn(ctx context.Context, mem *Memory, utterance string) (*TurnResult, error) {
	trimmed := strings.TrimSpace(utterance)

	if strings.EqualFold(trimmed, ExitCommand) {
		work := mem.Clone()
		work.AddTurn(models.RoleUser, utterance)
		e.transition(work, PhaseClosed)
		work.AddTurn(models.RoleAssistant, exitMessage)
		*mem = *work
		return &TurnResult{Response: exitMessage, Phase: PhaseClosed, Closed: true}, nil
	}
	if mem.Phase == PhaseClosed {
		return &TurnResult{Response: closedMessage, Phase: PhaseClosed, Closed: true}, nil
	}

	work := mem.Clone()
	work.AddTurn(models.RoleUser, utterance)

	// The gate sees the raw utterance, never the rewritten query. A gate
	// failure counts as risk: the safe direction is always more questions.
	assessment, err := e.gate.Assess(ctx, trimmed)
	if err != nil {
		e.logger.Warn("safety assessment unavailable, treating turn as risk", zap.Error(err))
		assessment = &safety.Assessment{Risk: true, MatchedCondition: "assessment_unavailable"}
	}
	if assessment.Risk {
		e.transition(work, PhaseGathering)
		response := safetyAlertMessage(assessment)
		work.AddTurn(models.RoleAssistant, response)
		*mem = *work
		return &TurnResult{
			Response:    response,
			Phase:       work.Phase,
			SafetyAlert: assessment,
		}, nil
	}

	result, err := e.advance(ctx, work, trimmed)
	if err != nil {
		return nil, err
	}
	work.AddTurn(models.RoleAssistant, result.Response)
	*mem = *work
	result.Phase = work.Phase
	result.Closed = work.Phase == PhaseClosed
	return result, nil
}

func (e *Engine) advance(ctx context.Context, work *Memory, utterance string) (*TurnResult, error) {
	switch work.Phase {
	case PhaseRemediesConsent:
		return e.handleConsent(ctx, work, utterance)
	case PhaseRemedies:
		return e.handleFollowUp(ctx, work, utterance)
	default:
		return e.handleGathering(ctx, work, utterance)
	}
}

// handleConsent interprets the utterance as a yes/no reply to the remedies
// offer. A decline closes the session without any retrieval call.
func (e *Engine) handleConsent(ctx context.Context, work *Memory, utterance string) (*TurnResult, error) {
	if !ParseConsent(utterance) {
		e.transition(work, PhaseClosed)
		return &TurnResult{Response: farewellMessage}, nil
	}

	query := generate.RemedyQuery(work.diagnosisName())
	hits, err := e.retrieveAndRerank(ctx, query)
	if err != nil {
		return nil, err
	}
	e.transition(work, PhaseRemedies)
	if len(hits) == 0 {
		return &TurnResult{Response: notFoundMessage, Report: work.LastDiagnosis}, nil
	}

	text, err := e.generator.GenerateText(ctx, generate.RemediesPrompt(
		work.FormattedHistory(), generate.FormatEvidence(hits), utterance))
	if err != nil {
		return nil, err
	}
	return &TurnResult{Response: text, Report: work.LastDiagnosis}, nil
}

// handleFollowUp serves post-remedies questions; the session stays open
// until an explicit exit.
func (e *Engine) handleFollowUp(ctx context.Context, work *Memory, utterance string) (*TurnResult, error) {
	history := work.FormattedHistory()
	query := e.rewriter.Rewrite(ctx, history, utterance)
	hits, err := e.retrieveAndRerank(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &TurnResult{Response: notFoundMessage}, nil
	}
	text, err := e.generator.GenerateText(ctx, generate.ClosingPrompt(
		history, generate.FormatEvidence(hits), utterance))
	if err != nil {
		return nil, err
	}
	return &TurnResult{Response: text}, nil
}

// handleGathering covers Gathering and ExtraGathering turns, attempting a
// diagnosis once the phase's question budget is met.
func (e *Engine) handleGathering(ctx context.Context, work *Memory, utterance string) (*TurnResult, error) {
	work.GatheringProgress++
	if work.Phase == PhaseExtraGathering {
		work.ExtraTurnsLeft--
	}

	history := work.FormattedHistory()
	query := e.rewriter.Rewrite(ctx, history, utterance)
	hits, err := e.retrieveAndRerank(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &TurnResult{Response: notFoundMessage}, nil
	}
	evidence := generate.FormatEvidence(hits)

	ready := false
	switch work.Phase {
	case PhaseGathering:
		ready = work.GatheringProgress >= e.dialogue.MinGatheringQuestions
	case PhaseExtraGathering:
		ready = work.ExtraTurnsLeft <= 0
	}
	if ready {
		return e.attemptDiagnosis(ctx, work, history, evidence)
	}

	text, err := e.generator.GenerateText(ctx, generate.GatheringPrompt(history, evidence, utterance))
	if err != nil {
		return nil, err
	}
	return &TurnResult{Response: text}, nil
}

// attemptDiagnosis runs the Diagnosing and Verifying phases in one turn.
// Verification failure either buys extra gathering questions or, once the
// attempt budget is spent, escalates while still offering remedies.
func (e *Engine) attemptDiagnosis(ctx context.Context, work *Memory, history, evidence string) (*TurnResult, error) {
	e.transition(work, PhaseDiagnosing)

	var reportText string
	report, attempts, err := generate.Structured(ctx, e.generator,
		generate.StructuredDiagnosisPrompt(history, evidence), e.dialogue.MaxValidationRetries)
	switch {
	case err == nil:
		reportText = report.Render()
	case errors.Is(err, generate.ErrValidation):
		e.logger.Warn("structured diagnosis never validated, using plain-text fallback",
			zap.Int("attempts", attempts))
		report = nil
		reportText, err = e.generator.GenerateText(ctx, generate.PlainDiagnosisPrompt(history, evidence))
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	e.transition(work, PhaseVerifying)
	answer, err := e.generator.GenerateText(ctx, generate.VerificationPrompt(history, reportText))
	if err != nil {
		return nil, err
	}
	verified := strings.Contains(strings.ToUpper(answer), "YES")

	if verified {
		work.LastDiagnosis = report
		work.LastDiagnosisText = reportText
		e.transition(work, PhaseRemediesConsent)
		summary, err := e.generator.GenerateText(ctx, generate.DiagnosisSummaryPrompt(history, evidence, reportText))
		if err != nil {
			return nil, err
		}
		return &TurnResult{Response: summary, Report: report}, nil
	}

	work.DiagnosisAttempts++
	if work.DiagnosisAttempts < e.dialogue.MaxDiagnosisAttempts {
		e.transition(work, PhaseExtraGathering)
		work.ExtraTurnsLeft = e.dialogue.ExtraGatheringQuestions
		text, err := e.generator.GenerateText(ctx, generate.GatheringPrompt(history, evidence, ""))
		if err != nil {
			return nil, err
		}
		return &TurnResult{Response: text}, nil
	}

	work.Escalated = true
	work.LastDiagnosisText = reportText
	e.transition(work, PhaseEscalation)
	e.transition(work, PhaseRemediesConsent)
	return &TurnResult{Response: escalationMessage}, nil
}

func (e *Engine) retrieveAndRerank(ctx context.Context, query string) ([]*models.RetrievalHit, error) {
	hits, err := e.retriever.Retrieve(ctx, query, e.retrieval.RetrievalCount, "")
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return e.reranker.Rerank(ctx, query, hits)
}

// transition moves the session to a new phase, logging before/after.
func (e *Engine) transition(m *Memory, to Phase) {
	if m.Phase == to {
		return
	}
	e.logger.Info("phase transition",
		zap.String("session", m.ID),
		zap.String("from", string(m.Phase)),
		zap.String("to", string(to)),
	)
	m.Phase = to
}

// diagnosisName extracts the condition name for the remedy retrieval query.
func (m *Memory) diagnosisName() string {
	if m.LastDiagnosis != nil {
		return m.LastDiagnosis.Dosha
	}
	if idx := strings.Index(m.LastDiagnosisText, "DIAGNOSIS:"); idx >= 0 {
		rest := m.LastDiagnosisText[idx+len("DIAGNOSIS:"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		return strings.TrimSpace(rest)
	}
	return ""
}

func safetyAlertMessage(a *safety.Assessment) string {
	condition := strings.ReplaceAll(a.MatchedCondition, "_", " ")
	return fmt.Sprintf("The symptoms you described may indicate a serious condition (%s). "+
		"Please seek immediate medical attention; this assistant is not a substitute for professional care. "+
		"If you would like to continue here as well, could you tell me more about when these symptoms started and how severe they are?",
		condition)
}
