package db

import "database/sql"

// Fragment is one retrievable unit of a source document. (Document, Position)
// identifies the fragment within a label; Position is the chunk index in the
// original document order.
type Fragment struct {
	ID             int
	Label          string
	Document       string
	Position       int
	Content        string
	EmbeddingModel string
	EmbeddingVector []float64
	CreatedAt      int64
	UpdatedAt      int64
}

// ScoredFragment is a Fragment annotated with the vec_dist value for the
// query vector that retrieved it. Distance is negated cosine similarity,
// lower is more similar.
type ScoredFragment struct {
	Fragment
	Distance float64
}

// Queries wraps a sql connection with the fragment operations.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}
