package decoder

import "errors"

var (
	// ErrEmptyFrontier reports a beam that pruned away every hypothesis.
	// The engine keeps its last consistent frontier; decode again after
	// Reset, typically with a wider beam.
	ErrEmptyFrontier = errors.New("empty frontier: beam pruned all hypotheses")

	// ErrInvalidQuery reports a malformed path query, e.g. NBest with
	// n <= 0. No engine state is mutated.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFinalized reports a final-result query before Finalize.
	ErrNotFinalized = errors.New("decoding not finalized")

	// ErrDecoderNotReady reports an operation outside its lifecycle state.
	ErrDecoderNotReady = errors.New("decoder not ready")
)
