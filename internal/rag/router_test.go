package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func sufficientEvaluator() *Evaluator {
	return NewEvaluator(DefaultConfig(), &fakeLLM{evaluation: evaluationPayload{
		Completeness: 0.9,
		Relevance:    0.9,
		Confidence:   0.85,
	}}, discard())
}

func insufficientEvaluator() *Evaluator {
	return NewEvaluator(DefaultConfig(), &fakeLLM{evaluation: evaluationPayload{
		Completeness: 0.4,
		Relevance:    0.9,
		Confidence:   0.9,
	}}, discard())
}

func TestRouteSufficientAnswerStopsAtEvaluation(t *testing.T) {
	sink := &recordSink{}
	r := NewRouter(
		stubStrategy{answer: Answer{Text: "quick answer", Technique: TechniqueBasic}},
		stubStrategy{err: errors.New("advanced must not run")},
		sufficientEvaluator(),
		sink,
		discard())

	answer, decision := r.Route(context.Background(), "q")

	if answer.Text != "quick answer" || answer.Technique != TechniqueBasic {
		t.Errorf("answer = %+v, want the basic answer untouched", answer)
	}
	if decision.Escalated {
		t.Error("decision marked escalated on a sufficient answer")
	}
	if decision.Verdict != VerdictSufficient {
		t.Errorf("verdict = %s, want SUFFICIENT", decision.Verdict)
	}
	want := []string{StageBasic, StageEvaluated}
	if len(decision.Stages) != len(want) {
		t.Fatalf("stages = %v, want %v", decision.Stages, want)
	}
	for i := range want {
		if decision.Stages[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, decision.Stages[i], want[i])
		}
	}
	if decision.ID == "" {
		t.Error("decision has no request id")
	}

	if len(sink.stages) != 2 || sink.stages[0] != StageBasic || sink.stages[1] != StageEvaluated {
		t.Errorf("sink saw %v, want basic then evaluated", sink.stages)
	}
	if sink.levels[0] != DetailVerbose || sink.levels[1] != DetailDebug {
		t.Errorf("sink levels = %v", sink.levels)
	}
}

func TestRouteInsufficientAnswerEscalatesOnce(t *testing.T) {
	sink := &recordSink{}
	r := NewRouter(
		stubStrategy{answer: Answer{Text: "thin answer", Technique: TechniqueBasic}},
		stubStrategy{answer: Answer{Text: "thorough answer", Technique: TechniqueAdvanced}},
		insufficientEvaluator(),
		sink,
		discard())

	answer, decision := r.Route(context.Background(), "q")

	if answer.Text != "thorough answer" || answer.Technique != TechniqueAdvanced {
		t.Errorf("answer = %+v, want the advanced answer", answer)
	}
	if !decision.Escalated {
		t.Error("decision not marked escalated")
	}
	want := []string{StageBasic, StageEvaluated, StageAdvanced}
	if len(decision.Stages) != len(want) {
		t.Fatalf("stages = %v, want %v", decision.Stages, want)
	}
	for i := range want {
		if decision.Stages[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, decision.Stages[i], want[i])
		}
	}
	if len(sink.stages) != 3 || sink.stages[2] != StageAdvanced {
		t.Errorf("sink saw %v, want the escalation recorded last", sink.stages)
	}
}

func TestRouteFailedBasicIsStillEvaluated(t *testing.T) {
	// A broken basic pass turns into a degraded empty answer, gets judged,
	// and escalates like any other insufficient answer.
	r := NewRouter(
		stubStrategy{err: errors.New("retrieval exploded")},
		stubStrategy{answer: Answer{Text: "recovered", Technique: TechniqueAdvanced}},
		insufficientEvaluator(),
		nil,
		discard())

	answer, decision := r.Route(context.Background(), "q")

	if answer.Text != "recovered" {
		t.Errorf("answer = %q, want the advanced recovery", answer.Text)
	}
	if !decision.Escalated {
		t.Error("decision not marked escalated")
	}
	if len(decision.Stages) != 3 {
		t.Errorf("stages = %v, want all three", decision.Stages)
	}
}

func TestRouteKeepsBasicAnswerWhenEscalationFails(t *testing.T) {
	r := NewRouter(
		stubStrategy{answer: Answer{Text: "thin answer", Technique: TechniqueBasic}},
		stubStrategy{err: errors.New("every sub-strategy failed")},
		insufficientEvaluator(),
		nil,
		discard())

	answer, decision := r.Route(context.Background(), "q")

	if answer.Text != "thin answer" || answer.Technique != TechniqueBasic {
		t.Errorf("answer = %+v, want the basic answer kept", answer)
	}
	if !answer.Degraded {
		t.Error("kept answer not marked degraded")
	}
	found := false
	for _, note := range answer.Notes {
		if strings.Contains(note, "every sub-strategy failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("notes %v do not record the escalation failure", answer.Notes)
	}
	if !decision.Escalated {
		t.Error("decision not marked escalated")
	}
	if decision.Stages[len(decision.Stages)-1] != StageAdvanced {
		t.Errorf("stages = %v, want the attempted escalation recorded", decision.Stages)
	}
}

func TestRouteNeverReturnsAnError(t *testing.T) {
	// Worst case on every axis: basic fails, judgment fails, escalation
	// fails. The caller still gets an answer and a trace.
	evaluator := NewEvaluator(DefaultConfig(), &fakeLLM{evalErr: errors.New("judge offline")}, discard())
	r := NewRouter(
		stubStrategy{err: errors.New("basic down")},
		stubStrategy{err: errors.New("advanced down")},
		evaluator,
		nil,
		discard())

	answer, decision := r.Route(context.Background(), "q")

	if !answer.Degraded {
		t.Error("answer not marked degraded")
	}
	if decision.Verdict != VerdictInsufficient {
		t.Errorf("verdict = %s, want the fail-safe INSUFFICIENT", decision.Verdict)
	}
	if len(decision.Stages) != 3 {
		t.Errorf("stages = %v, want the full degraded path", decision.Stages)
	}
}
