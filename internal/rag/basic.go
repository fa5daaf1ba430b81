package rag

import (
	"context"
	"log/slog"
)

const groundedSystemPrompt = `You answer questions using only the supplied documents.
Quote or paraphrase the documents, do not invent facts.
If the documents do not contain the answer, say so.`

// Basic is the fast single-pass strategy: one retrieval over the question
// embedding, one generation.
type Basic struct {
	cfg    Config
	llm    LLM
	store  Searcher
	logger *slog.Logger
}

func NewBasic(cfg Config, llm LLM, store Searcher, logger *slog.Logger) *Basic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Basic{
		cfg:    cfg.withDefaults(),
		llm:    llm,
		store:  store,
		logger: logger.With("strategy", TechniqueBasic),
	}
}

func (b *Basic) Generate(ctx context.Context, query string) (Answer, error) {
	retrieved, err := retrieve(ctx, b.llm, b.store, TechniqueBasic, query, b.cfg.TopK)
	if err != nil {
		return Answer{}, err
	}
	b.logger.Debug("retrieved context", "chunks", len(retrieved.Chunks))

	return generateAnswer(ctx, b.llm, groundedSystemPrompt, query, retrieved.Chunks, TechniqueBasic)
}
