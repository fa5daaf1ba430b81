package rag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/modfin/bellman/prompt"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM scripts structured generations by output type and records every
// embedded text, so tests can assert which text drove a retrieval.
type fakeLLM struct {
	mu     sync.Mutex
	embeds []string

	vectors  map[string][]float64
	embedErr error

	subQueries    []string
	subQueriesErr error

	variants    []string
	variantsErr error

	passage    string
	passageErr error

	answerText string
	answerErr  error

	evaluation evaluationPayload
	evalErr    error
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	f.embeds = append(f.embeds, text)
	f.mu.Unlock()

	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func (f *fakeLLM) embedded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.embeds...)
}

func (f *fakeLLM) GenerateInto(ctx context.Context, system string, out any, prompts ...prompt.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch v := out.(type) {
	case *subQueryPayload:
		if f.subQueriesErr != nil {
			return f.subQueriesErr
		}
		v.SubQueries = f.subQueries
	case *variantPayload:
		if f.variantsErr != nil {
			return f.variantsErr
		}
		v.Variants = f.variants
	case *hypotheticalPayload:
		if f.passageErr != nil {
			return f.passageErr
		}
		v.Passage = f.passage
	case *evaluationPayload:
		if f.evalErr != nil {
			return f.evalErr
		}
		*v = f.evaluation
	case *answerPayload:
		if f.answerErr != nil {
			return f.answerErr
		}
		v.Answer = f.answerText
	default:
		return fmt.Errorf("unexpected output type %T", out)
	}
	return nil
}

type searchResponse struct {
	chunks []Chunk
	err    error
}

// fakeStore serves chunks for every search, or a scripted sequence of
// responses when script is set.
type fakeStore struct {
	mu     sync.Mutex
	calls  int
	chunks []Chunk
	err    error
	script []searchResponse
}

func (s *fakeStore) Search(ctx context.Context, vector []float64, k int) ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if len(s.script) > 0 {
		next := s.script[0]
		s.script = s.script[1:]
		return next.chunks, next.err
	}

	if s.err != nil {
		return nil, s.err
	}
	if len(s.chunks) > k {
		return s.chunks[:k], nil
	}
	return s.chunks, nil
}

type stubStrategy struct {
	answer Answer
	err    error
}

func (s stubStrategy) Generate(ctx context.Context, query string) (Answer, error) {
	return s.answer, s.err
}

// recordSink captures router transitions in order.
type recordSink struct {
	mu     sync.Mutex
	stages []string
	levels []Detail
}

func (s *recordSink) Write(stage string, level Detail, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, stage)
	s.levels = append(s.levels, level)
}

func chunk(document string, position int, score float64) Chunk {
	return Chunk{
		Document: document,
		Position: position,
		Text:     fmt.Sprintf("%s #%d", document, position),
		Score:    score,
	}
}
