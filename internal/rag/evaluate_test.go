package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mjerling/dowser/internal/ai"
)

func TestEvaluateConjunctiveGate(t *testing.T) {
	testCases := []struct {
		name         string
		completeness float64
		relevance    float64
		confidence   float64
		want         Verdict
	}{
		{
			name:         "All scores above thresholds",
			completeness: 0.9,
			relevance:    0.9,
			confidence:   0.85,
			want:         VerdictSufficient,
		},
		{
			name:         "Scores exactly at thresholds",
			completeness: 0.7,
			relevance:    0.7,
			confidence:   0.7,
			want:         VerdictSufficient,
		},
		{
			name:         "Low completeness alone",
			completeness: 0.4,
			relevance:    0.9,
			confidence:   0.9,
			want:         VerdictInsufficient,
		},
		{
			name:         "Low relevance alone",
			completeness: 0.9,
			relevance:    0.69,
			confidence:   0.9,
			want:         VerdictInsufficient,
		},
		{
			name:         "Low confidence alone",
			completeness: 0.9,
			relevance:    0.9,
			confidence:   0.1,
			want:         VerdictInsufficient,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &fakeLLM{evaluation: evaluationPayload{
				Completeness: tc.completeness,
				Relevance:    tc.relevance,
				Confidence:   tc.confidence,
				Rationale:    "scripted",
			}}
			e := NewEvaluator(DefaultConfig(), llm, discard())

			result := e.Evaluate(context.Background(), "q", Answer{Text: "a"})
			if result.Verdict != tc.want {
				t.Errorf("Evaluate() verdict = %s, want %s", result.Verdict, tc.want)
			}
		})
	}
}

func TestEvaluateClampsScores(t *testing.T) {
	llm := &fakeLLM{evaluation: evaluationPayload{
		Completeness: 1.4,
		Relevance:    -0.2,
		Confidence:   0.8,
	}}
	e := NewEvaluator(DefaultConfig(), llm, discard())

	result := e.Evaluate(context.Background(), "q", Answer{Text: "a"})
	if result.Completeness != 1 {
		t.Errorf("completeness = %v, want clamped to 1", result.Completeness)
	}
	if result.Relevance != 0 {
		t.Errorf("relevance = %v, want clamped to 0", result.Relevance)
	}
	if result.Verdict != VerdictInsufficient {
		t.Errorf("verdict = %s, want INSUFFICIENT after clamping", result.Verdict)
	}
}

func TestEvaluateFailsSafeWhenJudgmentUnavailable(t *testing.T) {
	llm := &fakeLLM{evalErr: fmt.Errorf("%w: connection refused", ai.ErrUnavailable)}
	e := NewEvaluator(DefaultConfig(), llm, discard())

	result := e.Evaluate(context.Background(), "q", Answer{Text: "a"})
	if result.Verdict != VerdictInsufficient {
		t.Fatalf("Evaluate() verdict = %s, want INSUFFICIENT on failure", result.Verdict)
	}
	if result.Rationale == "" {
		t.Error("Evaluate() left no rationale for the failure")
	}
}

func TestEvaluateMarksParseFailures(t *testing.T) {
	llm := &fakeLLM{evalErr: fmt.Errorf("%w: unexpected token", ai.ErrMalformedResponse)}
	e := NewEvaluator(DefaultConfig(), llm, discard())

	result := e.Evaluate(context.Background(), "q", Answer{Text: "a"})
	if result.Verdict != VerdictInsufficient {
		t.Fatalf("Evaluate() verdict = %s, want INSUFFICIENT on parse failure", result.Verdict)
	}
	if !strings.Contains(result.Rationale, NoteEvaluationParseError) {
		t.Errorf("rationale %q does not mark the parse failure", result.Rationale)
	}
}

func TestEvaluateEvaluatesDegradedAnswers(t *testing.T) {
	// A degraded empty answer is still scored; the gate decides, not the
	// degradation flag.
	llm := &fakeLLM{evaluation: evaluationPayload{
		Completeness: 0.1,
		Relevance:    0.1,
		Confidence:   0.1,
	}}
	e := NewEvaluator(DefaultConfig(), llm, discard())

	degraded := Answer{Technique: TechniqueBasic, Degraded: true, Notes: []string{"upstream failed"}}
	result := e.Evaluate(context.Background(), "q", degraded)
	if result.Verdict != VerdictInsufficient {
		t.Errorf("Evaluate() verdict = %s, want INSUFFICIENT", result.Verdict)
	}
}

func TestEvaluateErrorDoesNotPanicOnWrappedChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", errors.New("plain"))
	llm := &fakeLLM{evalErr: err}
	e := NewEvaluator(DefaultConfig(), llm, discard())

	result := e.Evaluate(context.Background(), "q", Answer{})
	if strings.Contains(result.Rationale, NoteEvaluationParseError) {
		t.Errorf("plain failure was misclassified as a parse error: %q", result.Rationale)
	}
}
