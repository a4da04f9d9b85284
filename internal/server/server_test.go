package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/config"
	"github.com/vedanta-labs/vaidya/internal/dialogue"
	"github.com/vedanta-labs/vaidya/internal/generate"
	"github.com/vedanta-labs/vaidya/internal/models"
	"github.com/vedanta-labs/vaidya/internal/safety"
)

type stubRetriever struct{}

func (stubRetriever) Retrieve(_ context.Context, _ string, _ int, _ string) ([]*models.RetrievalHit, error) {
	return []*models.RetrievalHit{
		{Chunk: &models.ChunkRecord{ID: 1, Text: "Vata governs movement."}},
	}, nil
}

type stubReranker struct{}

func (stubReranker) Rerank(_ context.Context, _ string, hits []*models.RetrievalHit) ([]*models.RetrievalHit, error) {
	return hits, nil
}

type stubGate struct{}

func (stubGate) Assess(_ context.Context, _ string) (*safety.Assessment, error) {
	return &safety.Assessment{}, nil
}

type stubRewriter struct{}

func (stubRewriter) Rewrite(_ context.Context, _, utterance string) string { return utterance }

type stubGenerator struct {
	err error
}

func (g stubGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "Could you tell me your age and gender?", nil
}

func (g stubGenerator) GenerateStream(ctx context.Context, prompt string) (<-chan generate.Fragment, error) {
	text, err := g.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan generate.Fragment, 1)
	ch <- generate.Fragment{Content: text, Done: true}
	close(ch)
	return ch, nil
}

func newTestServer(genErr error) *Server {
	engine := dialogue.NewEngine(
		stubRetriever{}, stubReranker{}, stubGate{}, stubGenerator{err: genErr}, stubRewriter{},
		config.DialogueConfig{
			MinGatheringQuestions:   15,
			ExtraGatheringQuestions: 5,
			MaxDiagnosisAttempts:    2,
			MaxValidationRetries:    3,
			MaxTurns:                50,
		},
		config.RetrievalConfig{RetrievalCount: 20},
		zap.NewNop(),
	)
	return NewServer(engine, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d", rec.Code)
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("session id missing")
	}
	if resp.Phase != string(dialogue.PhaseGathering) {
		t.Fatalf("new session phase = %q", resp.Phase)
	}
	return resp.ID
}

func TestServer_SessionLifecycle(t *testing.T) {
	router := newTestServer(nil).Router()
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete session: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", rec.Code)
	}
}

func TestServer_UnknownSession(t *testing.T) {
	router := newTestServer(nil).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get: status %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	body := bytes.NewBufferString(`{"message": "hello"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/nope/messages", body))
	if rec.Code != http.StatusNotFound {
		t.Errorf("message: status %d, want 404", rec.Code)
	}
}

func TestServer_Message(t *testing.T) {
	router := newTestServer(nil).Router()
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"message": "I feel anxious lately"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response == "" {
		t.Error("response text missing")
	}
	if resp.Phase != string(dialogue.PhaseGathering) || resp.Closed {
		t.Errorf("resp = %+v", resp)
	}

	// The turn is reflected in session state.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, nil))
	var sess sessionResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &sess)
	if sess.UserTurnCount != 1 {
		t.Errorf("user_turn_count = %d, want 1", sess.UserTurnCount)
	}
}

func TestServer_MessageValidation(t *testing.T) {
	router := newTestServer(nil).Router()
	id := createSession(t, router)

	for _, body := range []string{`{}`, `{"message": ""}`, `not json`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
			"/api/v1/sessions/"+id+"/messages", bytes.NewBufferString(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, rec.Code)
		}
	}
}

func TestServer_RetryableErrorReturns503(t *testing.T) {
	router := newTestServer(fmt.Errorf("wrapped: %w", generate.ErrUnavailable)).Router()
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"message": "hello"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", body))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Retryable {
		t.Error("503 should be marked retryable")
	}
}

func TestServer_ExitClosesSession(t *testing.T) {
	router := newTestServer(nil).Router()
	id := createSession(t, router)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"message": "exit"}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/messages", body))
	var resp messageResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Closed || resp.Phase != string(dialogue.PhaseClosed) {
		t.Errorf("resp = %+v, want closed", resp)
	}
}

func TestServer_Health(t *testing.T) {
	router := newTestServer(nil).Router()
	createSession(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Sessions != 1 {
		t.Errorf("health = %+v", health)
	}
}
