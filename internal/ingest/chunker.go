// Package ingest turns whole documents into positioned fragments ready for
// embedding.
package ingest

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunk is one ingestible piece of a document. Position is its index in the
// original document order and, together with the document name, identifies
// the fragment in the knowledge base.
type Chunk struct {
	Position int
	Text     string
}

type ChunkerConfig struct {
	// MaxTokens bounds the token count of one chunk.
	MaxTokens int `cli:"chunk-tokens"`
}

// Chunker packs paragraphs into token-bounded chunks.
type Chunker struct {
	maxTokens int
	count     func(string) int
}

func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}

	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding: %w", err)
	}

	return &Chunker{
		maxTokens: cfg.MaxTokens,
		count: func(text string) int {
			return len(encoding.Encode(text, nil, nil))
		},
	}, nil
}

// newChunkerWithCounter keeps the token counter injectable for tests.
func newChunkerWithCounter(maxTokens int, count func(string) int) *Chunker {
	return &Chunker{maxTokens: maxTokens, count: count}
}

// Split breaks text on blank lines and greedily packs the paragraphs into
// chunks of at most MaxTokens tokens. A single paragraph over the budget
// becomes its own chunk rather than being cut mid-sentence.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []Chunk
	var current []string
	var currentTokens int

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Position: len(chunks),
			Text:     strings.Join(current, "\n\n"),
		})
		current = nil
		currentTokens = 0
	}

	for _, p := range paragraphs {
		tokens := c.count(p)
		if currentTokens+tokens > c.maxTokens && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		currentTokens += tokens
		if currentTokens >= c.maxTokens {
			flush()
		}
	}
	flush()

	return chunks
}
