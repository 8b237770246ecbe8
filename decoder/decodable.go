package decoder

// ScoreProvider supplies acoustic costs on demand. The engine pulls one
// score per (frame, label) pair and controls pacing; a provider backed by a
// streaming acoustic model reports frames as they become available.
//
// Costs are in negated log-likelihood form: lower is better, and they add
// with graph weights along a path.
type ScoreProvider interface {
	// TryGetScore returns the acoustic cost for the given frame and input
	// label, or ok=false if the score is not (yet) available.
	TryGetScore(frame, label int) (float64, bool)

	// IsInputExhausted reports whether no frame at or after the given
	// index will ever become available.
	IsInputExhausted(frame int) bool
}

// MatrixScores adapts a precomputed dense log-likelihood matrix to the
// ScoreProvider interface. Row t holds the log-likelihoods for frame t;
// label l reads column l-1 (label 0 is epsilon and is never scored).
type MatrixScores struct {
	loglikes [][]float64
	scale    float64
}

// NewMatrixScores wraps a log-likelihood matrix. scale multiplies every
// log-likelihood before negation (the acoustic scale).
func NewMatrixScores(loglikes [][]float64, scale float64) *MatrixScores {
	return &MatrixScores{loglikes: loglikes, scale: scale}
}

// TryGetScore implements ScoreProvider.
func (m *MatrixScores) TryGetScore(frame, label int) (float64, bool) {
	if frame < 0 || frame >= len(m.loglikes) {
		return 0, false
	}
	col := label - 1
	if col < 0 || col >= len(m.loglikes[frame]) {
		return 0, false
	}
	return -m.scale * m.loglikes[frame][col], true
}

// IsInputExhausted implements ScoreProvider.
func (m *MatrixScores) IsInputExhausted(frame int) bool {
	return frame >= len(m.loglikes)
}

// NumFrames returns the number of frames in the matrix.
func (m *MatrixScores) NumFrames() int {
	return len(m.loglikes)
}
