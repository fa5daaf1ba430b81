// Package rag routes a question over a knowledge base through an adaptive
// pipeline: a cheap single-pass answer first, a quality gate on it, and on an
// insufficient verdict one escalation to a composite of decomposition,
// hypothetical-document and multi-query retrieval.
package rag

import (
	"context"

	"github.com/modfin/bellman/prompt"
)

// Technique tags which strategy produced an Answer.
type Technique string

const (
	TechniqueBasic         Technique = "basic"
	TechniqueDecomposition Technique = "decomposition"
	TechniqueHyDE          Technique = "hyde"
	TechniqueMultiQuery    Technique = "multiquery"
	TechniqueAdvanced      Technique = "advanced-combined"
)

// Chunk is one retrievable unit of source text. (Document, Position) is its
// identity; Score is cosine similarity against whatever embedding retrieved
// it.
type Chunk struct {
	Document string  `json:"document"`
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

type chunkKey struct {
	document string
	position int
}

func (c Chunk) key() chunkKey {
	return chunkKey{document: c.Document, position: c.Position}
}

// RetrievalResult is the ordered evidence set of one retrieval call, most
// similar chunk first.
type RetrievalResult struct {
	Query    string    `json:"query"`
	Strategy Technique `json:"strategy"`
	Chunks   []Chunk   `json:"chunks"`
}

// Answer is a generated response together with the evidence it was grounded
// in. Degraded answers carry their failure notes instead of failing the
// request.
type Answer struct {
	Text       string    `json:"text"`
	Technique  Technique `json:"technique"`
	Chunks     []Chunk   `json:"chunks,omitempty"`
	SubAnswers []Answer  `json:"sub_answers,omitempty"`
	Degraded   bool      `json:"degraded,omitempty"`
	Notes      []string  `json:"notes,omitempty"`
}

// Verdict is the evaluator's binary sufficiency judgment.
type Verdict string

const (
	VerdictSufficient   Verdict = "SUFFICIENT"
	VerdictInsufficient Verdict = "INSUFFICIENT"
)

// EvaluationResult is the quality judgment on one Answer. All three scores
// are normalized to [0, 1].
type EvaluationResult struct {
	Completeness float64 `json:"completeness"`
	Relevance    float64 `json:"relevance"`
	Confidence   float64 `json:"confidence"`
	Verdict      Verdict `json:"verdict"`
	Rationale    string  `json:"rationale,omitempty"`
}

// RoutingDecision records the path one request took through the router.
type RoutingDecision struct {
	ID        string   `json:"id"`
	Stages    []string `json:"stages"`
	Verdict   Verdict  `json:"verdict"`
	Escalated bool     `json:"escalated"`
}

// LLM is the narrow generation/embedding contract the pipeline consumes.
// ai.Client implements it; tests substitute scripted fakes.
type LLM interface {
	// GenerateInto prompts with a structured output schema derived from out
	// and unmarshals the response into out.
	GenerateInto(ctx context.Context, system string, out any, prompts ...prompt.Prompt) error

	// Embed turns text into a query embedding.
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Searcher is the similarity-search contract over the knowledge base,
// returning chunks ordered by descending similarity.
type Searcher interface {
	Search(ctx context.Context, vector []float64, k int) ([]Chunk, error)
}

// Strategy is the common shape of every answer generator. The set of
// implementations is closed: Basic, Decomposer, HyDE, MultiQuery and
// Advanced.
type Strategy interface {
	Generate(ctx context.Context, query string) (Answer, error)
}

// Detail grades sink payloads so a front end can render silent, verbose or
// debug views without the core knowing about rendering.
type Detail int

const (
	DetailSilent Detail = iota
	DetailVerbose
	DetailDebug
)

// Sink receives one event per router transition. Implementations must not
// block indefinitely.
type Sink interface {
	Write(stage string, level Detail, payload any)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Write(string, Detail, any) {}
