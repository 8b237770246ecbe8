package decoder

import (
	"fmt"
	"math"
	"sort"

	"github.com/skyscope-sentinel/PaddleSpeech/wfst"
)

// Config holds beam search parameters.
type Config struct {
	Beam          float64 // decoding beam: frame-local survivor window
	LatticeBeam   float64 // retention window for alternative arrivals
	MaxActive     int     // hard cap on frontier size
	PruneInterval int     // frames between lattice prunes
	AcousticScale float64 // scale applied to acoustic log-likelihoods
}

// DefaultConfig returns reasonable default parameters.
func DefaultConfig() Config {
	return Config{
		Beam:          16.0,
		LatticeBeam:   8.0,
		MaxActive:     7000,
		PruneInterval: 25,
		AcousticScale: 1.0,
	}
}

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDecoding
	StateFrameExhausted
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateFrameExhausted:
		return "frame-exhausted"
	case StateFinalized:
		return "finalized"
	}
	return "unknown"
}

// LatticeDecoder is the frame-synchronous token-passing engine. It owns the
// token lattice; the graph and symbol table are shared read-only. A single
// LatticeDecoder must not be used from more than one goroutine; run one
// engine per utterance for concurrent decoding.
type LatticeDecoder struct {
	fst   *wfst.Fst
	words *wfst.SymbolTable
	cfg   Config

	lat      *lattice
	frontier []tokenRef

	numFramesDecoded int
	state            State

	// Set by Finalize: per-frontier-token cost with final weights folded
	// in, and whether any frontier token sits on a final state.
	finalCosts   []float64
	reachedFinal bool

	// Scratch reused across frames.
	next     []token
	slotFor  map[int]int32
	epsQueue []int32
}

// NewLatticeDecoder creates an engine over a frozen graph. The engine
// starts Idle; call Reset before feeding frames.
func NewLatticeDecoder(fst *wfst.Fst, words *wfst.SymbolTable, cfg Config) (*LatticeDecoder, error) {
	if fst == nil || !fst.Frozen() {
		return nil, fmt.Errorf("decoder: graph must be frozen before decoding")
	}
	if fst.Start() == wfst.NoState {
		return nil, fmt.Errorf("decoder: graph has no start state")
	}
	if cfg.MaxActive <= 0 {
		return nil, fmt.Errorf("decoder: MaxActive must be positive, got %d", cfg.MaxActive)
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultConfig().PruneInterval
	}
	return &LatticeDecoder{
		fst:     fst,
		words:   words,
		cfg:     cfg,
		lat:     newLattice(),
		slotFor: make(map[int]int32),
	}, nil
}

// State returns the lifecycle state.
func (d *LatticeDecoder) State() State {
	return d.state
}

// NumFramesDecoded returns the number of acoustic frames consumed since
// the last Reset.
func (d *LatticeDecoder) NumFramesDecoded() int {
	return d.numFramesDecoded
}

// NumActiveTokens returns the current frontier size.
func (d *LatticeDecoder) NumActiveTokens() int {
	return len(d.frontier)
}

// NumLatticeTokens returns the total retained token count, frontier plus
// reachable history.
func (d *LatticeDecoder) NumLatticeTokens() int {
	return d.lat.numTokens()
}

// Reset clears the token lattice, seeds the frame-0 start token with zero
// cost, and puts the engine in the Decoding state.
func (d *LatticeDecoder) Reset() {
	d.lat.reset()
	d.numFramesDecoded = 0
	d.finalCosts = nil
	d.reachedFinal = false

	d.next = d.next[:0]
	clear(d.slotFor)
	start := d.fst.Start()
	d.next = append(d.next, token{state: start, cost: 0, best: link{pred: nilRef}})
	d.slotFor[start] = 0
	d.closeEpsilon(0)

	frame := make([]token, len(d.next))
	copy(frame, d.next)
	d.lat.appendFrame(frame)
	d.refreshFrontier()
	d.state = StateDecoding
}

func (d *LatticeDecoder) refreshFrontier() {
	last := d.lat.numFrames() - 1
	d.frontier = d.frontier[:0]
	for s := range d.lat.frames[last] {
		d.frontier = append(d.frontier, tokenRef{int32(last), int32(s)})
	}
}

// offer proposes a new arrival at a graph state within the frame being
// built. The strictly cheaper arrival wins recombination; on a tie the
// incumbent stays, which keeps expansion order (and so N-best output)
// deterministic. Losing arrivals within the lattice beam are kept as
// alternative links.
func (d *LatticeDecoder) offer(state int, cost float64, ln link) int32 {
	slot, ok := d.slotFor[state]
	if !ok {
		slot = int32(len(d.next))
		d.next = append(d.next, token{state: state, cost: cost, best: ln})
		d.slotFor[state] = slot
		return slot
	}
	t := &d.next[slot]
	if cost < t.cost {
		// Demote the old best if it is still within the lattice beam.
		if t.best.cost <= cost+d.cfg.LatticeBeam {
			addAlt(t, t.best)
		}
		t.best = ln
		t.cost = cost
		// Alternatives recorded against the old, worse best may now fall
		// outside the beam.
		kept := t.alts[:0]
		for _, al := range t.alts {
			if al.cost <= cost+d.cfg.LatticeBeam {
				kept = append(kept, al)
			}
		}
		t.alts = kept
		return slot
	}
	if cost <= t.cost+d.cfg.LatticeBeam {
		addAlt(t, ln)
	}
	return -1
}

// addAlt records an alternative arrival, replacing a costlier duplicate of
// the same predecessor and arc. Epsilon relaxation can re-offer the same
// arc several times as costs improve.
func addAlt(t *token, ln link) {
	for i := range t.alts {
		al := &t.alts[i]
		if al.pred == ln.pred && al.ilabel == ln.ilabel && al.olabel == ln.olabel {
			if ln.cost < al.cost {
				*al = ln
			}
			return
		}
	}
	t.alts = append(t.alts, ln)
}

// closeEpsilon expands epsilon arcs within the frame being built until no
// token improves. frameIdx is the lattice frame the new tokens will be
// committed to (epsilon arrivals reference tokens in the same frame).
func (d *LatticeDecoder) closeEpsilon(frameIdx int32) {
	d.epsQueue = d.epsQueue[:0]
	for s := range d.next {
		d.epsQueue = append(d.epsQueue, int32(s))
	}
	for len(d.epsQueue) > 0 {
		slot := d.epsQueue[0]
		d.epsQueue = d.epsQueue[1:]
		// Index anew each iteration: offer may grow d.next.
		state := d.next[slot].state
		cost := d.next[slot].cost
		for _, a := range d.fst.Arcs(state) {
			if a.ILabel != wfst.Epsilon {
				continue
			}
			ln := link{
				pred:      tokenRef{frameIdx, slot},
				ilabel:    int32(a.ILabel),
				olabel:    int32(a.OLabel),
				graphCost: a.Weight,
				cost:      cost + a.Weight,
			}
			if got := d.offer(a.NextState, cost+a.Weight, ln); got >= 0 {
				d.epsQueue = append(d.epsQueue, got)
			}
		}
	}
}

// AdvanceOneFrame consumes one acoustic frame: emitting expansion of the
// frontier, epsilon closure, Viterbi recombination, beam and max-active
// pruning, then an atomic commit of the new frontier. It returns true if a
// frame was consumed. If the provider is exhausted the engine moves to
// FrameExhausted and returns false with no error; a collapsed beam returns
// ErrEmptyFrontier and leaves the previous frontier intact.
func (d *LatticeDecoder) AdvanceOneFrame(sp ScoreProvider) (bool, error) {
	switch d.state {
	case StateIdle:
		return false, fmt.Errorf("decoder: %w: Reset before decoding", ErrDecoderNotReady)
	case StateFinalized:
		return false, fmt.Errorf("decoder: %w: already finalized, Reset required", ErrDecoderNotReady)
	case StateFrameExhausted:
		return false, nil
	}

	frame := d.numFramesDecoded
	if sp.IsInputExhausted(frame) {
		d.state = StateFrameExhausted
		return false, nil
	}

	d.next = d.next[:0]
	clear(d.slotFor)
	newFrame := int32(d.lat.numFrames())

	// Candidates outside the beam of the best candidate seen so far this
	// frame are skipped early; the definitive filter runs after epsilon
	// closure against the true frame best.
	bestCand := math.Inf(1)

	for _, r := range d.frontier {
		t := d.lat.tok(r)
		for _, a := range d.fst.Arcs(t.state) {
			if a.ILabel == wfst.Epsilon {
				continue
			}
			ac, ok := sp.TryGetScore(frame, a.ILabel)
			if !ok {
				// Score not available: treat as end of input. Nothing has
				// been committed, so the frontier is unchanged.
				d.state = StateFrameExhausted
				return false, nil
			}
			cost := t.cost + a.Weight + ac
			if cost >= bestCand+d.cfg.Beam {
				continue
			}
			if cost < bestCand {
				bestCand = cost
			}
			ln := link{
				pred:         r,
				ilabel:       int32(a.ILabel),
				olabel:       int32(a.OLabel),
				graphCost:    a.Weight,
				acousticCost: ac,
				cost:         cost,
			}
			d.offer(a.NextState, cost, ln)
		}
	}

	if len(d.next) == 0 {
		return false, ErrEmptyFrontier
	}

	d.closeEpsilon(newFrame)

	// Frame-local beam pruning around the new best. Survival is strict
	// (cost < best + beam), so a zero beam admits nothing and collapses
	// loudly instead of committing an arbitrary path. The cutoff tightens
	// further if the frontier would exceed the max-active cap.
	bestNext := math.Inf(1)
	for i := range d.next {
		if d.next[i].cost < bestNext {
			bestNext = d.next[i].cost
		}
	}
	cutoff := bestNext + d.cfg.Beam
	maxThr := math.Inf(1)
	if len(d.next) > d.cfg.MaxActive {
		costs := make([]float64, len(d.next))
		for i := range d.next {
			costs[i] = d.next[i].cost
		}
		sort.Float64s(costs)
		maxThr = costs[d.cfg.MaxActive-1]
	}
	kept := d.compactFrame(newFrame, cutoff, maxThr)
	if len(kept) == 0 {
		return false, ErrEmptyFrontier
	}

	// Commit.
	d.lat.appendFrame(kept)
	d.refreshFrontier()
	d.numFramesDecoded++

	if d.numFramesDecoded%d.cfg.PruneInterval == 0 {
		d.lat.prune()
		d.refreshFrontier()
	}
	return true, nil
}

// compactFrame drops tokens at or above cutoff (and above the max-active
// threshold) from the frame being built, compacts the survivors, and
// rewrites same-frame epsilon references. An epsilon predecessor of a
// survivor is kept even outside the cutoff so that no backpointer chain
// breaks.
func (d *LatticeDecoder) compactFrame(frameIdx int32, cutoff, maxThr float64) []token {
	n := len(d.next)
	keep := make([]bool, n)
	for i := range d.next {
		keep[i] = d.next[i].cost < cutoff && d.next[i].cost <= maxThr
	}
	for changed := true; changed; {
		changed = false
		for i := 0; i < n; i++ {
			if !keep[i] {
				continue
			}
			p := d.next[i].best.pred
			if p.frame == frameIdx && !keep[p.slot] {
				keep[p.slot] = true
				changed = true
			}
		}
	}

	remap := make([]int32, n)
	kept := make([]token, 0, n)
	for i := range d.next {
		if keep[i] {
			remap[i] = int32(len(kept))
			kept = append(kept, d.next[i])
		} else {
			remap[i] = -1
		}
	}

	for i := range kept {
		t := &kept[i]
		if t.best.pred.frame == frameIdx {
			t.best.pred.slot = remap[t.best.pred.slot]
		}
		al := t.alts[:0]
		for _, a := range t.alts {
			if a.pred.frame == frameIdx {
				ns := remap[a.pred.slot]
				if ns < 0 {
					continue
				}
				a.pred.slot = ns
			}
			al = append(al, a)
		}
		t.alts = al
	}
	return kept
}

// AdvanceDecode feeds frames from sp until it reports exhaustion. On a
// collapsed beam the error is returned and the engine keeps its last
// consistent frontier.
func (d *LatticeDecoder) AdvanceDecode(sp ScoreProvider) error {
	for {
		advanced, err := d.AdvanceOneFrame(sp)
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
	}
}

// Finalize folds graph final weights into the frontier costs and moves the
// engine to Finalized; no further frames may be advanced until Reset. If no
// frontier token sits on a final state, live costs are used unchanged and
// ReachedFinal reports false.
func (d *LatticeDecoder) Finalize() error {
	switch d.state {
	case StateIdle:
		return fmt.Errorf("decoder: %w: Reset before Finalize", ErrDecoderNotReady)
	case StateFinalized:
		return nil
	}
	if len(d.frontier) == 0 {
		return ErrEmptyFrontier
	}

	d.finalCosts = make([]float64, len(d.frontier))
	d.reachedFinal = false
	for i, r := range d.frontier {
		t := d.lat.tok(r)
		if w, ok := d.fst.Final(t.state); ok {
			d.finalCosts[i] = t.cost + w
			d.reachedFinal = true
		} else {
			d.finalCosts[i] = math.Inf(1)
		}
	}
	if !d.reachedFinal {
		for i, r := range d.frontier {
			d.finalCosts[i] = d.lat.tok(r).cost
		}
	}
	d.state = StateFinalized
	return nil
}

// ReachedFinal reports whether finalization found a frontier token on a
// final graph state. Only meaningful after Finalize.
func (d *LatticeDecoder) ReachedFinal() bool {
	return d.reachedFinal
}
