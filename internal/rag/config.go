package rag

// Config carries the tunables of the pipeline. It is immutable and threaded
// into each component at construction.
type Config struct {
	// TopK is the number of chunks fetched per retrieval call.
	TopK int `cli:"top-k"`

	// MaxSubQueries bounds how many sub-queries a decomposition may produce.
	MaxSubQueries int `cli:"max-sub-queries"`

	// QueryVariants is the number of paraphrases the multi-query strategy
	// asks for.
	QueryVariants int `cli:"query-variants"`

	// The three evaluation thresholds. An answer is sufficient only when
	// every score meets its threshold.
	CompletenessThreshold float64 `cli:"completeness-threshold"`
	RelevanceThreshold    float64 `cli:"relevance-threshold"`
	ConfidenceThreshold   float64 `cli:"confidence-threshold"`
}

func DefaultConfig() Config {
	return Config{
		TopK:                  3,
		MaxSubQueries:         5,
		QueryVariants:         4,
		CompletenessThreshold: 0.7,
		RelevanceThreshold:    0.7,
		ConfidenceThreshold:   0.7,
	}
}

// withDefaults fills zero values so partially populated configs stay usable.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.MaxSubQueries <= 0 {
		c.MaxSubQueries = def.MaxSubQueries
	}
	if c.QueryVariants <= 0 {
		c.QueryVariants = def.QueryVariants
	}
	if c.CompletenessThreshold <= 0 {
		c.CompletenessThreshold = def.CompletenessThreshold
	}
	if c.RelevanceThreshold <= 0 {
		c.RelevanceThreshold = def.RelevanceThreshold
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	return c
}
