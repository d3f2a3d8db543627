package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tradescholar/supportkb/internal/corpus"
	"github.com/tradescholar/supportkb/internal/retrieval"
)

type mockRetriever struct {
	result    retrieval.Result
	callCount int
	lastQuery string
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string) retrieval.Result {
	m.callCount++
	m.lastQuery = query
	return m.result
}

type mockGenerator struct {
	text       string
	err        error
	callCount  int
	lastPrompt string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func confidentResult() retrieval.Result {
	return retrieval.Result{
		Context:    "Q: What is the max daily loss?\nA: 6% of the starting balance.",
		Confidence: 0.82,
		Matches:    []corpus.Match{{Record: corpus.Record{ID: "manual:7"}, Score: 0.82}},
	}
}

func TestRouter_AnswersFromKnowledgeBase(t *testing.T) {
	retriever := &mockRetriever{result: confidentResult()}
	generator := &mockGenerator{text: "The maximum daily loss is 6% of your starting balance."}

	router := NewRouter(retriever, generator, 0.55, nil)

	ans := router.Answer(context.Background(), "what's the max daily loss?")

	if ans.Source != SourceKnowledgeBase {
		t.Errorf("source = %q, want %q", ans.Source, SourceKnowledgeBase)
	}

	if ans.Confidence != 0.82 {
		t.Errorf("confidence = %v, want 0.82", ans.Confidence)
	}

	if ans.Text != "The maximum daily loss is 6% of your starting balance." {
		t.Errorf("unexpected answer text: %q", ans.Text)
	}

	if !strings.Contains(generator.lastPrompt, "6% of the starting balance") {
		t.Error("grounded prompt should carry the retrieved context")
	}

	if !strings.Contains(generator.lastPrompt, "what's the max daily loss?") {
		t.Error("grounded prompt should carry the question")
	}
}

func TestRouter_EscalatesBelowThreshold(t *testing.T) {
	retriever := &mockRetriever{
		result: retrieval.Result{Context: "weak match", Confidence: 0.4},
	}
	generator := &mockGenerator{text: "General guidance here."}

	router := NewRouter(retriever, generator, 0.55, nil)

	ans := router.Answer(context.Background(), "something obscure")

	if ans.Source != SourceModel {
		t.Errorf("source = %q, want %q", ans.Source, SourceModel)
	}

	if ans.Confidence != 0.4 {
		t.Errorf("confidence should report the weak score, got %v", ans.Confidence)
	}

	if strings.Contains(generator.lastPrompt, "weak match") {
		t.Error("escalation prompt must not carry below-threshold context")
	}
}

func TestRouter_EscalatesOnZeroResult(t *testing.T) {
	generator := &mockGenerator{text: "Model answer."}
	router := NewRouter(&mockRetriever{}, generator, 0.55, nil)

	ans := router.Answer(context.Background(), "unknown topic")

	if ans.Source != SourceModel || ans.Confidence != 0 {
		t.Errorf("zero retrieval should escalate with confidence 0, got %+v", ans)
	}
}

func TestRouter_ThresholdBoundaryEscalates(t *testing.T) {
	// The knowledge base answers only when confidence strictly exceeds
	// the threshold, so an exact tie escalates.
	retriever := &mockRetriever{
		result: retrieval.Result{Context: "boundary context", Confidence: 0.55},
	}
	generator := &mockGenerator{text: "Answer."}

	router := NewRouter(retriever, generator, 0.55, nil)

	ans := router.Answer(context.Background(), "boundary question")

	if ans.Source != SourceModel {
		t.Errorf("confidence equal to threshold should escalate, got %q", ans.Source)
	}
}

func TestRouter_GroundedGenerationFailureReturnsContext(t *testing.T) {
	retriever := &mockRetriever{result: confidentResult()}
	generator := &mockGenerator{err: errors.New("model down")}

	router := NewRouter(retriever, generator, 0.55, nil)

	ans := router.Answer(context.Background(), "max daily loss?")

	if ans.Source != SourceKnowledgeBase {
		t.Errorf("source = %q, want %q", ans.Source, SourceKnowledgeBase)
	}

	if ans.Text != confidentResult().Context {
		t.Errorf("failed grounded generation should fall back to raw context, got %q", ans.Text)
	}
}

func TestRouter_EscalationFailureReturnsFallback(t *testing.T) {
	generator := &mockGenerator{err: errors.New("model down")}
	router := NewRouter(&mockRetriever{}, generator, 0.55, nil)

	ans := router.Answer(context.Background(), "anything")

	if ans.Text != fallbackText {
		t.Errorf("expected canned fallback, got %q", ans.Text)
	}

	if ans.Source != SourceModel {
		t.Errorf("source = %q, want %q", ans.Source, SourceModel)
	}
}

func TestRouter_BlankQuestion(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{text: "should not be called"}

	router := NewRouter(retriever, generator, 0.55, nil)

	ans := router.Answer(context.Background(), "   ")

	if ans.Text != fallbackText {
		t.Errorf("blank question should get the fallback, got %q", ans.Text)
	}

	if retriever.callCount > 0 || generator.callCount > 0 {
		t.Error("blank question should not reach retrieval or generation")
	}
}

func TestNewRouter_ThresholdDefault(t *testing.T) {
	retriever := &mockRetriever{
		result: retrieval.Result{Context: "ctx", Confidence: 0.6},
	}
	router := NewRouter(retriever, &mockGenerator{text: "ok"}, 1.5, nil)

	ans := router.Answer(context.Background(), "q")

	// Invalid threshold falls back to 0.55, so 0.6 clears it.
	if ans.Source != SourceKnowledgeBase {
		t.Errorf("default threshold not applied, source = %q", ans.Source)
	}
}
