package decoder

// Result holds one decoded hypothesis.
type Result struct {
	Text       string  // space-joined word sequence
	Words      []Word  // word-level details
	Cost       float64 // total path cost, lower is better
	Confidence float64 // posterior mass of this path among the frontier, 0..1
}

// Word holds per-word timing information. StartFrame is the frame at which
// the word boundary was emitted; EndFrame is the last frame before the next
// boundary.
type Word struct {
	Text       string
	StartFrame int
	EndFrame   int
}
