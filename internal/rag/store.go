package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modfin/henry/slicez"
	"github.com/mjerling/dowser/internal/db"
)

// FragmentStore adapts the sqlite fragment table to the Searcher contract.
// It is read-only and safe to share across concurrent strategy calls.
type FragmentStore struct {
	queries *db.Queries
	label   string
	logger  *slog.Logger
}

// NewFragmentStore scopes searches to fragments whose label matches the
// given LIKE pattern. An empty label matches everything.
func NewFragmentStore(queries *db.Queries, label string, logger *slog.Logger) *FragmentStore {
	if label == "" {
		label = "%"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FragmentStore{
		queries: queries,
		label:   label,
		logger:  logger.With("component", "fragment-store"),
	}
}

func (s *FragmentStore) Search(ctx context.Context, vector []float64, k int) ([]Chunk, error) {
	fragments, err := s.queries.KNN(ctx, vector, s.label, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	// vec_dist is negated cosine similarity, so similarity is its negation.
	return slicez.Map(fragments, func(f db.ScoredFragment) Chunk {
		return Chunk{
			Document: f.Document,
			Position: f.Position,
			Text:     f.Content,
			Score:    -f.Distance,
		}
	}), nil
}
