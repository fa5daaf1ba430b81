package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modfin/bellman/prompt"
	"github.com/modfin/henry/slicez"
)

const decomposeSystemPrompt = `You break a complex question into simpler, independent sub-questions.
Each sub-question must be self-contained and answerable on its own.
Return a single entry when the question cannot be split.`

const synthesizeSystemPrompt = `You combine the supplied draft answers into one coherent final answer
to the user question. Keep only claims supported by the drafts.`

// Decomposer answers a complex question by splitting it, answering each
// sub-question from its own retrieved context, and synthesizing the parts.
// A question the llm judges atomic falls back to the single-pass path.
type Decomposer struct {
	cfg    Config
	llm    LLM
	store  Searcher
	logger *slog.Logger
}

func NewDecomposer(cfg Config, llm LLM, store Searcher, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decomposer{
		cfg:    cfg.withDefaults(),
		llm:    llm,
		store:  store,
		logger: logger.With("strategy", TechniqueDecomposition),
	}
}

func (d *Decomposer) Generate(ctx context.Context, query string) (Answer, error) {
	subQueries, err := d.split(ctx, query)
	if err != nil {
		return Answer{}, err
	}

	if len(subQueries) < 2 {
		// Atomic question. Single-pass retrieval over the original query,
		// still tagged as this strategy.
		d.logger.Debug("degenerate decomposition, using single-pass fallback")

		retrieved, err := retrieve(ctx, d.llm, d.store, TechniqueDecomposition, query, d.cfg.TopK)
		if err != nil {
			return Answer{}, err
		}
		answer, err := generateAnswer(ctx, d.llm, groundedSystemPrompt, query, retrieved.Chunks, TechniqueDecomposition)
		if err != nil {
			return Answer{}, err
		}
		answer.Notes = append(answer.Notes, ErrDegenerateDecomposition.Error())
		return answer, nil
	}

	d.logger.Debug("decomposed query", "sub_queries", len(subQueries))

	var subAnswers []Answer
	var sets [][]Chunk
	for _, sub := range subQueries {
		retrieved, err := retrieve(ctx, d.llm, d.store, TechniqueDecomposition, sub, d.cfg.TopK)
		if err != nil {
			return Answer{}, fmt.Errorf("sub-query %q: %w", sub, err)
		}
		subAnswer, err := generateAnswer(ctx, d.llm, groundedSystemPrompt, sub, retrieved.Chunks, TechniqueDecomposition)
		if err != nil {
			return Answer{}, fmt.Errorf("sub-query %q: %w", sub, err)
		}
		subAnswers = append(subAnswers, subAnswer)
		sets = append(sets, subAnswer.Chunks)
	}

	merged, err := mergeChunks(sets...)
	if err != nil {
		return Answer{}, err
	}

	var out answerPayload
	prompts := make([]prompt.Prompt, 0, len(subAnswers)+1)
	for i, a := range subAnswers {
		prompts = append(prompts, prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<draft question=%q>\n%s\n</draft>", subQueries[i], a.Text),
		})
	}
	prompts = append(prompts, questionPrompt(query))

	err = d.llm.GenerateInto(ctx, synthesizeSystemPrompt, &out, prompts...)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to synthesize sub-answers: %w", err)
	}

	return Answer{
		Text:       out.Answer,
		Technique:  TechniqueDecomposition,
		Chunks:     merged,
		SubAnswers: subAnswers,
	}, nil
}

// split asks the llm for sub-queries, trims blanks, and caps the count at
// MaxSubQueries.
func (d *Decomposer) split(ctx context.Context, query string) ([]string, error) {
	var out subQueryPayload
	err := d.llm.GenerateInto(ctx, decomposeSystemPrompt, &out, questionPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("failed to decompose query: %w", err)
	}

	subQueries := slicez.Filter(out.SubQueries, func(s string) bool {
		return strings.TrimSpace(s) != ""
	})
	if len(subQueries) > d.cfg.MaxSubQueries {
		subQueries = subQueries[:d.cfg.MaxSubQueries]
	}
	return subQueries, nil
}
