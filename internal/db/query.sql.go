package db

import (
	"context"
	"fmt"

	"github.com/mjerling/dowser/internal/db/vec"
)

func (q *Queries) AddFragment(
	ctx context.Context,
	label string,
	document string,
	position int,
	content string,
	embeddingModel string,
	embeddingVector []float64,
) (Fragment, error) {

	const addFragment = `
INSERT INTO fragments (label, document, position, content, embedding_model, embedding_vector)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (label, document, position) DO
	UPDATE
    SET content = excluded.content,
		embedding_model = excluded.embedding_model,
		embedding_vector = excluded.embedding_vector,
		updated_at = strftime('%s', 'now')
RETURNING id, label, document, position, content, embedding_model, embedding_vector, created_at, updated_at
`

	row := q.db.QueryRowContext(ctx, addFragment,
		label,
		document,
		position,
		content,
		embeddingModel,
		vec.EncodeVector(embeddingVector),
	)

	var i Fragment
	var vecbin []byte
	err := row.Scan(
		&i.ID,
		&i.Label,
		&i.Document,
		&i.Position,
		&i.Content,
		&i.EmbeddingModel,
		&vecbin,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return Fragment{}, fmt.Errorf("insert fragment: %w", err)
	}
	i.EmbeddingVector, err = vec.DecodeVector(vecbin)
	if err != nil {
		return Fragment{}, fmt.Errorf("decoding embedding vector: %w", err)
	}
	return i, err
}

func (q *Queries) DirtyFragment(ctx context.Context, label string, document string, position int, content string) (bool, error) {

	const dirty = `
	SELECT count(*) = 0
	FROM fragments
	WHERE label = ? AND document = ? AND position = ? AND content = ?
`

	row := q.db.QueryRowContext(ctx, dirty,
		label,
		document,
		position,
		content,
	)
	var i bool
	if err := row.Scan(&i); err != nil {
		return false, err
	}
	return i, nil

}

// KNN returns the limit nearest fragments to the given vector, most similar
// first. Ties on distance fall back to (document, position) so the ordering
// is stable with respect to original document order.
func (q *Queries) KNN(ctx context.Context, vector []float64, label string, limit int) ([]ScoredFragment, error) {

	const kNN = `
SELECT id, label, document, position, content, embedding_model, embedding_vector, created_at, updated_at,
       vec_dist(?, embedding_vector) AS distance
FROM fragments
WHERE label like ?
ORDER BY distance, document, position
LIMIT ?
`

	rows, err := q.db.QueryContext(ctx, kNN,
		vec.EncodeVector(vector),
		label,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScoredFragment
	for rows.Next() {
		var i ScoredFragment
		var vecbytes []byte
		if err := rows.Scan(
			&i.ID,
			&i.Label,
			&i.Document,
			&i.Position,
			&i.Content,
			&i.EmbeddingModel,
			&vecbytes,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.Distance,
		); err != nil {
			return nil, err
		}

		i.EmbeddingVector, err = vec.DecodeVector(vecbytes)
		if err != nil {
			return nil, fmt.Errorf("failed decoding embedding vector: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ListFragments(ctx context.Context) ([]Fragment, error) {

	const listFragments = `
SELECT id, label, document, position, content, embedding_model, created_at
FROM fragments
ORDER BY document, position
`

	rows, err := q.db.QueryContext(ctx, listFragments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Fragment
	for rows.Next() {
		var i Fragment
		if err := rows.Scan(
			&i.ID,
			&i.Label,
			&i.Document,
			&i.Position,
			&i.Content,
			&i.EmbeddingModel,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
