package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const hydeSystemPrompt = `You write a hypothetical document passage that would perfectly answer the
user question. Write it as an excerpt from a real document: informative,
factual in tone, directly on topic. Do not address the reader.`

// HyDE retrieves by embedding a hypothetical generated answer instead of the
// question itself. Hypothetical-answer embeddings tend to sit closer to real
// supporting passages than the bare question does.
type HyDE struct {
	cfg    Config
	llm    LLM
	store  Searcher
	logger *slog.Logger
}

func NewHyDE(cfg Config, llm LLM, store Searcher, logger *slog.Logger) *HyDE {
	if logger == nil {
		logger = slog.Default()
	}
	return &HyDE{
		cfg:    cfg.withDefaults(),
		llm:    llm,
		store:  store,
		logger: logger.With("strategy", TechniqueHyDE),
	}
}

func (h *HyDE) Generate(ctx context.Context, query string) (Answer, error) {
	var hypo hypotheticalPayload
	err := h.llm.GenerateInto(ctx, hydeSystemPrompt, &hypo, questionPrompt(query))
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate hypothetical passage: %w", err)
	}

	passage := strings.TrimSpace(hypo.Passage)
	if passage == "" {
		// Nothing to embed, fall back to the question embedding.
		h.logger.Debug("empty hypothetical passage, embedding the question instead")
		passage = query
	}

	// The defining property of the technique: retrieval runs on the
	// hypothetical passage's embedding, not the question's.
	retrieved, err := retrieve(ctx, h.llm, h.store, TechniqueHyDE, passage, h.cfg.TopK)
	if err != nil {
		return Answer{}, err
	}
	h.logger.Debug("retrieved via hypothetical passage", "chunks", len(retrieved.Chunks))

	return generateAnswer(ctx, h.llm, groundedSystemPrompt, query, retrieved.Chunks, TechniqueHyDE)
}
