package decoder

// tokenRef addresses a token in the lattice by (frame, slot). Integer
// references instead of pointers keep the arena compactable: lattice
// pruning moves tokens and rewrites references in one pass.
type tokenRef struct {
	frame int32
	slot  int32
}

var nilRef = tokenRef{-1, -1}

func (r tokenRef) valid() bool {
	return r.frame >= 0
}

// link records one way of arriving at a token: the predecessor, the arc
// labels and weight taken, and the total path cost via this arrival.
type link struct {
	pred         tokenRef
	ilabel       int32
	olabel       int32
	graphCost    float64
	acousticCost float64
	cost         float64 // predecessor cost + graphCost + acousticCost
}

// token is a live or historical hypothesis at a graph state. best is the
// Viterbi in-link; alts are worse arrivals retained within the lattice
// beam so N-best extraction can re-expand them.
type token struct {
	state int
	cost  float64
	best  link
	alts  []link
}

// lattice is the frame-indexed token arena. frames[f] holds every token
// created at frame f that survived frame-local pruning; the last slice is
// the current frontier.
type lattice struct {
	frames [][]token
}

func newLattice() *lattice {
	return &lattice{}
}

func (l *lattice) reset() {
	l.frames = l.frames[:0]
}

func (l *lattice) numFrames() int {
	return len(l.frames)
}

func (l *lattice) numTokens() int {
	n := 0
	for _, fr := range l.frames {
		n += len(fr)
	}
	return n
}

func (l *lattice) tok(r tokenRef) *token {
	return &l.frames[r.frame][r.slot]
}

// appendFrame commits a fully built frontier as the next frame slice and
// returns its frame index.
func (l *lattice) appendFrame(toks []token) int {
	l.frames = append(l.frames, toks)
	return len(l.frames) - 1
}

// prune discards every token not reachable from the current frontier by
// following best and alternative links, then compacts each frame slice and
// rewrites surviving references. The frontier (last frame) is always kept
// whole.
func (l *lattice) prune() {
	if len(l.frames) < 2 {
		return
	}

	marks := make([][]bool, len(l.frames))
	for f := range l.frames {
		marks[f] = make([]bool, len(l.frames[f]))
	}
	last := len(l.frames) - 1
	for s := range l.frames[last] {
		marks[last][s] = true
	}

	// Links only point to earlier frames, or to the same frame for
	// epsilon arrivals. A backward sweep over frames marks everything
	// reachable; within a frame, epsilon links may point at any slot, so
	// iterate the frame until no new mark appears.
	for f := last; f >= 0; f-- {
		for changed := true; changed; {
			changed = false
			for s := len(l.frames[f]) - 1; s >= 0; s-- {
				if !marks[f][s] {
					continue
				}
				t := &l.frames[f][s]
				if t.best.pred.valid() && !marks[t.best.pred.frame][t.best.pred.slot] {
					marks[t.best.pred.frame][t.best.pred.slot] = true
					if t.best.pred.frame == int32(f) {
						changed = true
					}
				}
				for _, al := range t.alts {
					if al.pred.valid() && !marks[al.pred.frame][al.pred.slot] {
						marks[al.pred.frame][al.pred.slot] = true
						if al.pred.frame == int32(f) {
							changed = true
						}
					}
				}
			}
		}
	}

	// Compact each frame and build the slot remap.
	remap := make([][]int32, len(l.frames))
	for f := range l.frames {
		remap[f] = make([]int32, len(l.frames[f]))
		kept := l.frames[f][:0]
		for s := range l.frames[f] {
			if marks[f][s] {
				remap[f][s] = int32(len(kept))
				kept = append(kept, l.frames[f][s])
			} else {
				remap[f][s] = -1
			}
		}
		l.frames[f] = kept
	}

	// Rewrite references in surviving tokens.
	for f := range l.frames {
		for s := range l.frames[f] {
			t := &l.frames[f][s]
			if t.best.pred.valid() {
				t.best.pred.slot = remap[t.best.pred.frame][t.best.pred.slot]
			}
			kept := t.alts[:0]
			for _, al := range t.alts {
				if al.pred.valid() {
					ns := remap[al.pred.frame][al.pred.slot]
					if ns < 0 {
						continue
					}
					al.pred.slot = ns
				}
				kept = append(kept, al)
			}
			t.alts = kept
		}
	}
}
