package rag

import "errors"

// ErrRetrieval marks a knowledge-base lookup that failed or was unreachable.
var ErrRetrieval = errors.New("retrieval failed")

// ErrDegenerateDecomposition marks a query the llm judged atomic (zero or one
// sub-query). It triggers the single-pass fallback, it is not a failure.
var ErrDegenerateDecomposition = errors.New("query did not decompose")

// ErrAllStrategiesFailed marks an advanced generation where no sub-strategy
// produced an answer.
var ErrAllStrategiesFailed = errors.New("all sub-strategies failed")
