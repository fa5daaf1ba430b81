package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modfin/henry/slicez"
)

const multiQuerySystemPrompt = `You rephrase the user question into alternative search queries.
Each variant should capture a different aspect or phrasing of the same
information need.`

// MultiQuery retrieves over several paraphrases of the question and answers
// from the union of everything found.
type MultiQuery struct {
	cfg    Config
	llm    LLM
	store  Searcher
	logger *slog.Logger
}

func NewMultiQuery(cfg Config, llm LLM, store Searcher, logger *slog.Logger) *MultiQuery {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiQuery{
		cfg:    cfg.withDefaults(),
		llm:    llm,
		store:  store,
		logger: logger.With("strategy", TechniqueMultiQuery),
	}
}

func (m *MultiQuery) Generate(ctx context.Context, query string) (Answer, error) {
	variants, err := m.expand(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	m.logger.Debug("expanded query", "variants", len(variants))

	var sets [][]Chunk
	var lastErr error
	for _, variant := range variants {
		retrieved, err := retrieve(ctx, m.llm, m.store, TechniqueMultiQuery, variant, m.cfg.TopK)
		if err != nil {
			// One variant failing should not sink the union.
			m.logger.Warn("variant retrieval failed", "variant", variant, "err", err)
			lastErr = err
			continue
		}
		sets = append(sets, retrieved.Chunks)
	}
	if len(sets) == 0 {
		return Answer{}, fmt.Errorf("no variant retrieval succeeded: %w", lastErr)
	}

	union, err := mergeChunks(sets...)
	if err != nil {
		return Answer{}, err
	}

	return generateAnswer(ctx, m.llm, groundedSystemPrompt, query, union, TechniqueMultiQuery)
}

// expand asks for paraphrases and always keeps the original question as the
// first variant.
func (m *MultiQuery) expand(ctx context.Context, query string) ([]string, error) {
	var out variantPayload
	err := m.llm.GenerateInto(ctx, multiQuerySystemPrompt, &out, questionPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("failed to expand query: %w", err)
	}

	variants := slicez.Filter(out.Variants, func(s string) bool {
		s = strings.TrimSpace(s)
		return s != "" && s != query
	})
	if len(variants) > m.cfg.QueryVariants {
		variants = variants[:m.cfg.QueryVariants]
	}

	return append([]string{query}, variants...), nil
}
