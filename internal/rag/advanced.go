package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modfin/bellman/prompt"
)

const combineSystemPrompt = `You write the final answer to the user question from the supplied
documents and draft answers. Prefer claims that several drafts agree on and
that the documents support. Do not invent facts.`

// Advanced fans out to the decomposition, hypothetical-document and
// multi-query strategies, merges their evidence, and synthesizes one answer.
// A failing sub-strategy is dropped from the merge; the whole generation
// fails only when every sub-strategy does.
type Advanced struct {
	cfg        Config
	llm        LLM
	strategies []Strategy
	logger     *slog.Logger
}

func NewAdvanced(cfg Config, llm LLM, decomposer, hyde, multi Strategy, logger *slog.Logger) *Advanced {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advanced{
		cfg:        cfg.withDefaults(),
		llm:        llm,
		strategies: []Strategy{decomposer, hyde, multi},
		logger:     logger.With("strategy", TechniqueAdvanced),
	}
}

func (a *Advanced) Generate(ctx context.Context, query string) (Answer, error) {
	type outcome struct {
		answer Answer
		err    error
	}

	// The three sub-strategies share no state and run concurrently; the
	// barrier below waits for every one to settle before merging. A failure
	// is a value here, it must not abort the siblings.
	results := make([]outcome, len(a.strategies))
	var wg sync.WaitGroup
	for i, strategy := range a.strategies {
		wg.Add(1)
		go func(i int, strategy Strategy) {
			defer wg.Done()
			answer, err := strategy.Generate(ctx, query)
			results[i] = outcome{answer: answer, err: err}
		}(i, strategy)
	}
	wg.Wait()

	var subAnswers []Answer
	var notes []string
	var sets [][]Chunk
	for _, r := range results {
		if r.err != nil {
			a.logger.Warn("sub-strategy failed", "err", r.err)
			notes = append(notes, r.err.Error())
			continue
		}
		subAnswers = append(subAnswers, r.answer)
		sets = append(sets, r.answer.Chunks)
	}

	if len(subAnswers) == 0 {
		return Answer{}, fmt.Errorf("%w: %s", ErrAllStrategiesFailed, notes)
	}

	merged, err := mergeChunks(sets...)
	if err != nil {
		return Answer{}, err
	}
	a.logger.Debug("merged evidence",
		"sub_strategies", len(subAnswers),
		"unique_chunks", len(merged))

	prompts := make([]prompt.Prompt, 0, len(merged)+len(subAnswers)+1)
	prompts = append(prompts, chunkPrompts(merged)...)
	for _, sub := range subAnswers {
		prompts = append(prompts, prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<draft technique=%q>\n%s\n</draft>", sub.Technique, sub.Text),
		})
	}
	prompts = append(prompts, questionPrompt(query))

	answer := Answer{
		Technique:  TechniqueAdvanced,
		Chunks:     merged,
		SubAnswers: subAnswers,
		Degraded:   len(subAnswers) < len(a.strategies),
		Notes:      notes,
	}

	var out answerPayload
	err = a.llm.GenerateInto(ctx, combineSystemPrompt, &out, prompts...)
	if err != nil {
		// The evidence is already gathered; fall back to the first
		// successful draft rather than failing the request.
		a.logger.Warn("synthesis failed, falling back to a draft answer", "err", err)
		answer.Text = subAnswers[0].Text
		answer.Degraded = true
		answer.Notes = append(answer.Notes, fmt.Sprintf("synthesis failed: %v", err))
		return answer, nil
	}

	answer.Text = out.Answer
	return answer, nil
}
