package dialogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// DefaultMaxTurns bounds how many turns are kept verbatim for prompting.
const DefaultMaxTurns = 50

// Memory is the per-session conversation state. One Memory belongs to
// exactly one session; callers serialize access per session.
//
// Turns may be truncated oldest-first to bound prompt size, but the
// counters are never derived from len(Turns) and truncation never touches
// them.
type Memory struct {
	ID       string
	Turns    []models.Turn
	MaxTurns int

	// UserTurnCount counts every user turn, including risk-flagged ones.
	UserTurnCount int
	// GatheringProgress counts only the user turns that advance toward a
	// diagnosis. Risk-flagged turns increment UserTurnCount but not this.
	GatheringProgress int

	Phase             Phase
	DiagnosisAttempts int
	ExtraTurnsLeft    int
	// LastDiagnosis is the validated structured report, nil when the
	// accepted diagnosis came from the plain-text fallback.
	LastDiagnosis *models.DiagnosisReport
	// LastDiagnosisText is the rendered text of the accepted diagnosis,
	// whichever path produced it.
	LastDiagnosisText string
	Escalated         bool
}

// NewMemory creates session state in the initial gathering phase.
func NewMemory(maxTurns int) *Memory {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Memory{
		ID:       uuid.New().String(),
		MaxTurns: maxTurns,
		Phase:    PhaseGathering,
	}
}

// AddTurn appends a turn, evicting the oldest turns beyond MaxTurns.
// User turns increment UserTurnCount; no other counter is touched here.
func (m *Memory) AddTurn(role models.Role, content string) {
	m.Turns = append(m.Turns, models.Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if role == models.RoleUser {
		m.UserTurnCount++
	}
	if len(m.Turns) > m.MaxTurns {
		m.Turns = m.Turns[len(m.Turns)-m.MaxTurns:]
	}
}

// FormattedHistory renders the retained turns for prompting.
func (m *Memory) FormattedHistory() string {
	var b strings.Builder
	for i, turn := range m.Turns {
		if i > 0 {
			b.WriteString("\n")
		}
		switch turn.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "USER: %s", turn.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&b, "ASSISTANT: %s", turn.Content)
		}
	}
	return b.String()
}

// Clone returns a deep copy. The engine mutates a clone during a turn and
// commits it back only after the whole turn succeeds, so a failed turn
// leaves the original untouched.
func (m *Memory) Clone() *Memory {
	clone := *m
	clone.Turns = make([]models.Turn, len(m.Turns))
	copy(clone.Turns, m.Turns)
	if m.LastDiagnosis != nil {
		report := *m.LastDiagnosis
		clone.LastDiagnosis = &report
	}
	return &clone
}

// Reset returns the session to its initial state under a new id.
func (m *Memory) Reset() {
	*m = *NewMemory(m.MaxTurns)
}
