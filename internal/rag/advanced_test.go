package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAdvancedCombinesAllSubStrategies(t *testing.T) {
	llm := &fakeLLM{answerText: "synthesized"}
	a := NewAdvanced(DefaultConfig(), llm,
		stubStrategy{answer: Answer{
			Text:      "from decomposition",
			Technique: TechniqueDecomposition,
			Chunks:    []Chunk{chunk("a.md", 0, 0.9), chunk("b.md", 1, 0.5)},
		}},
		stubStrategy{answer: Answer{
			Text:      "from hyde",
			Technique: TechniqueHyDE,
			Chunks:    []Chunk{chunk("a.md", 0, 0.7)},
		}},
		stubStrategy{answer: Answer{
			Text:      "from multiquery",
			Technique: TechniqueMultiQuery,
			Chunks:    []Chunk{chunk("c.md", 2, 0.8)},
		}},
		discard())

	answer, err := a.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if answer.Technique != TechniqueAdvanced {
		t.Errorf("technique = %s, want %s", answer.Technique, TechniqueAdvanced)
	}
	if answer.Text != "synthesized" {
		t.Errorf("text = %q", answer.Text)
	}
	if answer.Degraded {
		t.Error("answer marked degraded with every sub-strategy succeeding")
	}
	if len(answer.SubAnswers) != 3 {
		t.Errorf("got %d sub-answers, want 3", len(answer.SubAnswers))
	}

	// a.md#0 appears twice across sets; the merge keeps one with the best
	// score.
	if len(answer.Chunks) != 3 {
		t.Fatalf("merged evidence has %d chunks, want 3: %#v", len(answer.Chunks), answer.Chunks)
	}
	for _, c := range answer.Chunks {
		if c.Document == "a.md" && c.Score != 0.9 {
			t.Errorf("a.md kept score %v, want the higher 0.9", c.Score)
		}
	}
}

func TestAdvancedToleratesOneFailingSubStrategy(t *testing.T) {
	llm := &fakeLLM{answerText: "synthesized"}
	a := NewAdvanced(DefaultConfig(), llm,
		stubStrategy{answer: Answer{
			Text:      "ok",
			Technique: TechniqueDecomposition,
			Chunks:    []Chunk{chunk("a.md", 0, 0.9)},
		}},
		stubStrategy{err: errors.New("hypothetical generation failed")},
		stubStrategy{answer: Answer{
			Text:      "also ok",
			Technique: TechniqueMultiQuery,
			Chunks:    []Chunk{chunk("b.md", 0, 0.6)},
		}},
		discard())

	answer, err := a.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !answer.Degraded {
		t.Error("answer not marked degraded with a sub-strategy missing")
	}
	if len(answer.SubAnswers) != 2 {
		t.Fatalf("got %d sub-answers, want the 2 that succeeded", len(answer.SubAnswers))
	}
	techniques := map[Technique]bool{}
	for _, sub := range answer.SubAnswers {
		techniques[sub.Technique] = true
	}
	if !techniques[TechniqueDecomposition] || !techniques[TechniqueMultiQuery] {
		t.Errorf("sub-answers carry %v, want decomposition and multiquery", techniques)
	}
	if len(answer.Notes) == 0 || !strings.Contains(answer.Notes[0], "hypothetical generation failed") {
		t.Errorf("notes %v do not record the failure", answer.Notes)
	}
}

func TestAdvancedFailsWhenEverySubStrategyFails(t *testing.T) {
	llm := &fakeLLM{}
	a := NewAdvanced(DefaultConfig(), llm,
		stubStrategy{err: errors.New("one")},
		stubStrategy{err: errors.New("two")},
		stubStrategy{err: errors.New("three")},
		discard())

	_, err := a.Generate(context.Background(), "q")
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Errorf("Generate() error = %v, want ErrAllStrategiesFailed", err)
	}
}

func TestAdvancedFallsBackToDraftWhenSynthesisFails(t *testing.T) {
	llm := &fakeLLM{answerErr: fmt.Errorf("model refused")}
	a := NewAdvanced(DefaultConfig(), llm,
		stubStrategy{answer: Answer{
			Text:      "first draft",
			Technique: TechniqueDecomposition,
			Chunks:    []Chunk{chunk("a.md", 0, 0.9)},
		}},
		stubStrategy{answer: Answer{
			Text:      "second draft",
			Technique: TechniqueHyDE,
		}},
		stubStrategy{answer: Answer{
			Text:      "third draft",
			Technique: TechniqueMultiQuery,
		}},
		discard())

	answer, err := a.Generate(context.Background(), "q")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if answer.Text != "first draft" {
		t.Errorf("text = %q, want the first successful draft", answer.Text)
	}
	if !answer.Degraded {
		t.Error("fallback answer not marked degraded")
	}
}
