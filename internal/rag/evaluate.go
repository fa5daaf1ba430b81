package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modfin/bellman/prompt"
	"github.com/mjerling/dowser/internal/ai"
)

const evaluateSystemPrompt = `You judge a candidate answer against the user question and the documents
it was grounded in. Score completeness, relevance and confidence, each
between 0.0 and 1.0, and motivate the scores briefly.`

// NoteEvaluationParseError marks a rationale produced because the judgment
// could not be parsed, not because the answer was scored.
const NoteEvaluationParseError = "evaluation parse error"

// Evaluator quality-gates an Answer. The verdict is a pure function of the
// three scores and the configured thresholds: sufficient only when every
// score meets its threshold.
type Evaluator struct {
	cfg    Config
	llm    LLM
	logger *slog.Logger
}

func NewEvaluator(cfg Config, llm LLM, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		cfg:    cfg.withDefaults(),
		llm:    llm,
		logger: logger.With("component", "evaluator"),
	}
}

// Evaluate never fails: an unscorable answer is insufficient, escalation on
// ambiguity beats false confidence.
func (e *Evaluator) Evaluate(ctx context.Context, query string, answer Answer) EvaluationResult {
	prompts := make([]prompt.Prompt, 0, len(answer.Chunks)+2)
	prompts = append(prompts, chunkPrompts(answer.Chunks)...)
	prompts = append(prompts, prompt.Prompt{
		Role: prompt.UserRole,
		Text: fmt.Sprintf("<candidate-answer>\n%s\n</candidate-answer>", answer.Text),
	})
	prompts = append(prompts, questionPrompt(query))

	var out evaluationPayload
	err := e.llm.GenerateInto(ctx, evaluateSystemPrompt, &out, prompts...)
	if err != nil {
		rationale := fmt.Sprintf("judgment unavailable: %v", err)
		if errors.Is(err, ai.ErrMalformedResponse) {
			rationale = fmt.Sprintf("%s: %v", NoteEvaluationParseError, err)
		}
		e.logger.Warn("evaluation failed, failing safe to insufficient", "err", err)
		return EvaluationResult{
			Verdict:   VerdictInsufficient,
			Rationale: rationale,
		}
	}

	result := EvaluationResult{
		Completeness: clamp01(out.Completeness),
		Relevance:    clamp01(out.Relevance),
		Confidence:   clamp01(out.Confidence),
		Rationale:    out.Rationale,
	}
	result.Verdict = e.verdict(result)

	e.logger.Debug("evaluated answer",
		"completeness", result.Completeness,
		"relevance", result.Relevance,
		"confidence", result.Confidence,
		"verdict", result.Verdict)

	return result
}

// verdict applies the conjunctive gate: one weak dimension is enough to
// escalate.
func (e *Evaluator) verdict(r EvaluationResult) Verdict {
	if r.Completeness >= e.cfg.CompletenessThreshold &&
		r.Relevance >= e.cfg.RelevanceThreshold &&
		r.Confidence >= e.cfg.ConfidenceThreshold {
		return VerdictSufficient
	}
	return VerdictInsufficient
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
