package rag

import (
	"context"
	"fmt"

	"github.com/modfin/bellman/prompt"
	"github.com/modfin/henry/slicez"
)

// retrieve embeds text and fetches the k nearest chunks for it.
func retrieve(ctx context.Context, llm LLM, store Searcher, strategy Technique, text string, k int) (RetrievalResult, error) {
	vector, err := llm.Embed(ctx, text)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := store.Search(ctx, vector, k)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("failed to search fragments: %w", err)
	}

	return RetrievalResult{
		Query:    text,
		Strategy: strategy,
		Chunks:   chunks,
	}, nil
}

// chunkPrompts renders chunks as grounding context, one prompt per chunk.
func chunkPrompts(chunks []Chunk) []prompt.Prompt {
	return slicez.Map(chunks, func(c Chunk) prompt.Prompt {
		return prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<document name=%q part=\"%d\">\n%s\n</document>", c.Document, c.Position, c.Text),
		}
	})
}

func questionPrompt(question string) prompt.Prompt {
	return prompt.Prompt{
		Role: prompt.UserRole,
		Text: fmt.Sprintf("<user-question> %s </user-question>", question),
	}
}

// generateAnswer makes one grounded generation call over chunks and tags the
// result.
func generateAnswer(ctx context.Context, llm LLM, system string, question string, chunks []Chunk, technique Technique) (Answer, error) {
	var out answerPayload
	err := llm.GenerateInto(ctx, system, &out, append(chunkPrompts(chunks), questionPrompt(question))...)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	return Answer{
		Text:      out.Answer,
		Technique: technique,
		Chunks:    chunks,
	}, nil
}
