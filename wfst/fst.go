// Package wfst provides the immutable weighted finite-state transducer
// consumed by the decoder: a dense-state arc list in the tropical semiring
// (costs add along a path, lower is better) plus the word symbol table
// mapping output labels to surface strings.
package wfst

import (
	"fmt"
	"math"
)

// Epsilon is the label id meaning "no symbol" on either tape.
const Epsilon = 0

// NoState marks an invalid state id.
const NoState = -1

// Arc is a single transition. A zero input label consumes no acoustic
// frame; a non-zero output label emits a word boundary.
type Arc struct {
	ILabel    int
	OLabel    int
	Weight    float64
	NextState int
}

type stateInfo struct {
	arcs        []Arc
	finalWeight float64
	isFinal     bool
}

// Fst is the decoding graph. It is mutable while being built and must be
// frozen before decoding; a frozen Fst is safe for concurrent readers.
type Fst struct {
	states []stateInfo
	start  int
	frozen bool
}

// NewFst creates an empty graph with no states and no start state.
func NewFst() *Fst {
	return &Fst{start: NoState}
}

// AddState appends a new state and returns its id.
func (f *Fst) AddState() int {
	if f.frozen {
		panic("wfst: AddState on frozen Fst")
	}
	f.states = append(f.states, stateInfo{})
	return len(f.states) - 1
}

// SetStart marks the initial state.
func (f *Fst) SetStart(state int) {
	if f.frozen {
		panic("wfst: SetStart on frozen Fst")
	}
	f.start = state
}

// AddArc appends an outgoing arc to src.
func (f *Fst) AddArc(src int, arc Arc) {
	if f.frozen {
		panic("wfst: AddArc on frozen Fst")
	}
	f.states[src].arcs = append(f.states[src].arcs, arc)
}

// SetFinal marks state as final with the given weight.
func (f *Fst) SetFinal(state int, weight float64) {
	if f.frozen {
		panic("wfst: SetFinal on frozen Fst")
	}
	f.states[state].isFinal = true
	f.states[state].finalWeight = weight
}

// Validate checks structural consistency: a start state exists and every
// arc targets a known state.
func (f *Fst) Validate() error {
	if f.start == NoState {
		return fmt.Errorf("wfst: no start state")
	}
	if f.start < 0 || f.start >= len(f.states) {
		return fmt.Errorf("wfst: start state %d out of range", f.start)
	}
	for s := range f.states {
		for _, a := range f.states[s].arcs {
			if a.NextState < 0 || a.NextState >= len(f.states) {
				return fmt.Errorf("wfst: state %d: arc to unknown state %d", s, a.NextState)
			}
			if a.ILabel < 0 || a.OLabel < 0 {
				return fmt.Errorf("wfst: state %d: negative label", s)
			}
			if math.IsNaN(a.Weight) {
				return fmt.Errorf("wfst: state %d: NaN arc weight", s)
			}
		}
	}
	return nil
}

// Freeze validates the graph and makes it immutable. Decoders only accept
// frozen graphs.
func (f *Fst) Freeze() error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.frozen = true
	return nil
}

// Frozen reports whether the graph is immutable.
func (f *Fst) Frozen() bool {
	return f.frozen
}

// Start returns the initial state id, or NoState if unset.
func (f *Fst) Start() int {
	return f.start
}

// NumStates returns the number of states.
func (f *Fst) NumStates() int {
	return len(f.states)
}

// NumArcs returns the total arc count across all states.
func (f *Fst) NumArcs() int {
	n := 0
	for s := range f.states {
		n += len(f.states[s].arcs)
	}
	return n
}

// Arcs returns the outgoing arcs of state. The returned slice is shared;
// callers must not modify it.
func (f *Fst) Arcs(state int) []Arc {
	return f.states[state].arcs
}

// Final returns the final weight of state and whether it is final.
func (f *Fst) Final(state int) (float64, bool) {
	si := &f.states[state]
	if !si.isFinal {
		return 0, false
	}
	return si.finalWeight, true
}
