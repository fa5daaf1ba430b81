package rag

import (
	"context"
	"log/slog"

	"github.com/disintegrator/inv"
	"github.com/google/uuid"
)

// Stage labels, in the order they can appear in a routing trace.
const (
	StageBasic     = "BASIC"
	StageEvaluated = "EVALUATED"
	StageAdvanced  = "ADVANCED"
)

// Router sequences one request through the linear state machine: basic
// generation, evaluation, and on an insufficient verdict exactly one
// escalation to the advanced strategy. It never returns an error; the worst
// case is a degraded Answer with its failure notes attached.
type Router struct {
	basic     Strategy
	advanced  Strategy
	evaluator *Evaluator
	sink      Sink
	logger    *slog.Logger
}

func NewRouter(basic, advanced Strategy, evaluator *Evaluator, sink Sink, logger *slog.Logger) *Router {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		basic:     basic,
		advanced:  advanced,
		evaluator: evaluator,
		sink:      sink,
		logger:    logger.With("component", "router"),
	}
}

// Route answers the query and returns the path taken. Each Router invocation
// is stateless with respect to prior queries; the trace lives only in the
// returned RoutingDecision.
func (r *Router) Route(ctx context.Context, query string) (Answer, RoutingDecision) {
	decision := RoutingDecision{ID: uuid.NewString()}
	logger := r.logger.With("request", decision.ID)

	answer, err := r.basic.Generate(ctx, query)
	if err != nil {
		// The pipeline always produces some answer; a failed basic pass
		// becomes an empty degraded one and still gets evaluated.
		logger.Warn("basic generation degraded", "err", err)
		answer = Answer{
			Technique: TechniqueBasic,
			Degraded:  true,
			Notes:     []string{err.Error()},
		}
	}
	decision.Stages = append(decision.Stages, StageBasic)
	r.sink.Write(StageBasic, DetailVerbose, answer)

	evaluation := r.evaluator.Evaluate(ctx, query, answer)
	decision.Stages = append(decision.Stages, StageEvaluated)
	decision.Verdict = evaluation.Verdict
	r.sink.Write(StageEvaluated, DetailDebug, evaluation)

	if evaluation.Verdict == VerdictSufficient {
		logger.Debug("answer sufficient", "technique", answer.Technique)
		return answer, decision
	}

	// One escalation, no re-evaluation of its output: the advanced answer is
	// final whatever its own degradation, there is no further path.
	decision.Escalated = true
	escalated, err := r.advanced.Generate(ctx, query)
	if err != nil {
		logger.Warn("advanced generation failed, keeping the basic answer", "err", err)
		answer.Degraded = true
		answer.Notes = append(answer.Notes, err.Error())
	} else {
		answer = escalated
	}
	decision.Stages = append(decision.Stages, StageAdvanced)
	r.sink.Write(StageAdvanced, DetailVerbose, answer)

	if err := inv.Check("routing trace",
		"starts with basic", decision.Stages[0] == StageBasic,
		"escalation is recorded last", decision.Stages[len(decision.Stages)-1] == StageAdvanced,
	); err != nil {
		logger.Error("routing trace violated its shape", "err", err)
	}

	return answer, decision
}
