package rag

import (
	"sort"

	"github.com/disintegrator/inv"
	"github.com/modfin/henry/slicez"
)

// mergeChunks unions evidence sets into one deduplicated set. Duplicates,
// same (document, position), keep the highest score observed across sets.
// The result is ordered by descending score, ties by original document
// order.
func mergeChunks(sets ...[]Chunk) ([]Chunk, error) {
	all := slicez.FlatMap(sets, func(s []Chunk) []Chunk { return s })

	best := map[chunkKey]Chunk{}
	for _, c := range all {
		cur, seen := best[c.key()]
		if !seen || c.Score > cur.Score {
			best[c.key()] = c
		}
	}

	merged := make([]Chunk, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Document != merged[j].Document {
			return merged[i].Document < merged[j].Document
		}
		return merged[i].Position < merged[j].Position
	})

	uniq := slicez.UniqBy(merged, func(c Chunk) chunkKey { return c.key() })
	err := inv.Check("merging evidence",
		"chunk identities are unique", len(uniq) == len(merged),
		"no chunks were lost", len(merged) == len(best),
	)
	if err != nil {
		return nil, err
	}

	return merged, nil
}
