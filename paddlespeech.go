// Package paddlespeech exposes the online TLG decoding core: a
// token-lexicon-grammar WFST searched frame by frame against acoustic
// scores pulled from a ScoreProvider. The graph and symbol table are
// loaded once and shared read-only; create one TLGDecoder per concurrent
// utterance.
package paddlespeech

import (
	"fmt"

	"github.com/skyscope-sentinel/PaddleSpeech/decoder"
	"github.com/skyscope-sentinel/PaddleSpeech/wfst"
)

// TLGDecoder drives a LatticeDecoder over one decoding graph. It is the
// only surface external callers need: reset, feed, query.
type TLGDecoder struct {
	fst    *wfst.Fst
	words  *wfst.SymbolTable
	cfg    decoder.Config
	nbest  int
	engine *decoder.LatticeDecoder
}

// NBestEntry is one ranked hypothesis: total path cost and the space-joined
// word sequence.
type NBestEntry struct {
	Cost float64
	Text string
}

// Option configures a TLGDecoder.
type Option func(*TLGDecoder)

// WithConfig sets custom beam search parameters.
func WithConfig(cfg decoder.Config) Option {
	return func(t *TLGDecoder) {
		t.cfg = cfg
	}
}

// WithNBest sets how many hypotheses DecodeLikelihoods returns.
func WithNBest(n int) Option {
	return func(t *TLGDecoder) {
		t.nbest = n
	}
}

// New creates a TLGDecoder from a graph file (AT&T text format) and a word
// symbol table file.
func New(fstPath, wordsPath string, opts ...Option) (*TLGDecoder, error) {
	fst, err := wfst.LoadFile(fstPath)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	words, err := wfst.LoadSymbolsFile(wordsPath)
	if err != nil {
		return nil, fmt.Errorf("load symbol table: %w", err)
	}
	return NewFromGraph(fst, words, opts...)
}

// NewFromGraph creates a TLGDecoder over preloaded resources. The graph
// must be frozen; it may be shared with other decoder instances.
func NewFromGraph(fst *wfst.Fst, words *wfst.SymbolTable, opts ...Option) (*TLGDecoder, error) {
	t := &TLGDecoder{
		fst:   fst,
		words: words,
		cfg:   decoder.DefaultConfig(),
		nbest: 10,
	}
	for _, opt := range opts {
		opt(t)
	}
	engine, err := decoder.NewLatticeDecoder(fst, words, t.cfg)
	if err != nil {
		return nil, err
	}
	t.engine = engine
	t.engine.Reset()
	return t, nil
}

// Engine returns the underlying lattice decoder for callers that need
// frame-level control.
func (t *TLGDecoder) Engine() *decoder.LatticeDecoder {
	return t.engine
}

// Reset abandons any in-flight decoding state and prepares for a new
// utterance.
func (t *TLGDecoder) Reset() {
	t.engine.Reset()
}

// AdvanceDecode pulls scores from sp one frame at a time until the
// provider reports exhaustion.
func (t *TLGDecoder) AdvanceDecode(sp decoder.ScoreProvider) error {
	return t.engine.AdvanceDecode(sp)
}

// FeedUntilExhausted is AdvanceDecode under the name streaming callers
// tend to look for.
func (t *TLGDecoder) FeedUntilExhausted(sp decoder.ScoreProvider) error {
	return t.engine.AdvanceDecode(sp)
}

// NumFramesDecoded returns the number of acoustic frames consumed since
// the last Reset.
func (t *TLGDecoder) NumFramesDecoded() int {
	return t.engine.NumFramesDecoded()
}

// GetPartialResult returns the current best word string through the live
// frontier. Partial output is advisory and may be revised by later frames.
func (t *TLGDecoder) GetPartialResult() (string, error) {
	res, err := t.engine.PartialPath()
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GetBestPath returns the best live word string without final weights,
// equivalent to GetPartialResult but exposed for batch callers.
func (t *TLGDecoder) GetBestPath() (string, error) {
	return t.GetPartialResult()
}

// Finalize folds graph final weights into the frontier; final-result
// queries are only valid afterwards, and no more frames can be fed until
// Reset.
func (t *TLGDecoder) Finalize() error {
	return t.engine.Finalize()
}

// GetFinalBestPath returns the best word string after finalization.
func (t *TLGDecoder) GetFinalBestPath() (string, error) {
	res, err := t.engine.BestPath()
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GetFinalResult returns the full best hypothesis (words, spans, cost,
// confidence) after finalization.
func (t *TLGDecoder) GetFinalResult() (*decoder.Result, error) {
	return t.engine.BestPath()
}

// GetNBestPath returns up to n distinct hypotheses ordered by ascending
// cost after finalization.
func (t *TLGDecoder) GetNBestPath(n int) ([]NBestEntry, error) {
	results, err := t.engine.NBest(n)
	if err != nil {
		return nil, err
	}
	entries := make([]NBestEntry, len(results))
	for i, r := range results {
		entries[i] = NBestEntry{Cost: r.Cost, Text: r.Text}
	}
	return entries, nil
}

// DecodeLikelihoods decodes a precomputed log-likelihood matrix (row per
// frame, column per label, label l in column l-1) in one call and returns
// the ranked word strings. It drives the same engine through a
// matrix-backed ScoreProvider and resets first, so it can be interleaved
// with streaming use.
func (t *TLGDecoder) DecodeLikelihoods(probs [][]float64) ([]string, error) {
	t.engine.Reset()
	sp := decoder.NewMatrixScores(probs, t.cfg.AcousticScale)
	if err := t.engine.AdvanceDecode(sp); err != nil {
		return nil, err
	}
	if err := t.engine.Finalize(); err != nil {
		return nil, err
	}
	results, err := t.engine.NBest(t.nbest)
	if err != nil {
		return nil, err
	}
	words := make([]string, len(results))
	for i, r := range results {
		words[i] = r.Text
	}
	return words, nil
}
