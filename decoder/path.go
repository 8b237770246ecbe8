package decoder

import (
	"container/heap"
	"fmt"
	"math"
	"strings"

	"github.com/skyscope-sentinel/PaddleSpeech/internal/mathutil"
)

// nbestBudget bounds the per-result number of partial-path expansions in
// the N-best search so a dense lattice cannot stall the caller.
const nbestBudget = 256

type emission struct {
	olabel int32
	frame  int32
}

func (d *LatticeDecoder) word(olabel int32) string {
	if d.words != nil {
		if w, ok := d.words.Find(int(olabel)); ok {
			return w
		}
	}
	return fmt.Sprintf("<%d>", olabel)
}

// buildResult turns a boundary sequence into a Result with word spans.
// A word's span runs from the acoustic frame its arc consumed to the frame
// before the next word's arc; the last word runs to the last decoded frame.
func (d *LatticeDecoder) buildResult(ems []emission, cost float64) *Result {
	res := &Result{Cost: cost}
	if len(ems) == 0 {
		return res
	}
	texts := make([]string, len(ems))
	for i, e := range ems {
		texts[i] = d.word(e.olabel)
	}
	res.Text = strings.Join(texts, " ")
	res.Words = make([]Word, len(ems))
	for i, e := range ems {
		start := int(e.frame) - 1
		if start < 0 {
			start = 0
		}
		res.Words[i] = Word{Text: texts[i], StartFrame: start}
	}
	for i := range res.Words {
		if i+1 < len(res.Words) {
			res.Words[i].EndFrame = res.Words[i+1].StartFrame - 1
		} else {
			res.Words[i].EndFrame = d.numFramesDecoded - 1
		}
		if res.Words[i].EndFrame < res.Words[i].StartFrame {
			res.Words[i].EndFrame = res.Words[i].StartFrame
		}
	}
	return res
}

// trace walks best links from end back to the start token and returns the
// emitted word boundaries in forward order.
func (d *LatticeDecoder) trace(end tokenRef) []emission {
	var rev []emission
	for r := end; ; {
		t := d.lat.tok(r)
		if !t.best.pred.valid() {
			break
		}
		if t.best.olabel != 0 {
			rev = append(rev, emission{t.best.olabel, r.frame})
		}
		r = t.best.pred
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// frontierConfidence returns the posterior mass of bestCost among the
// given frontier costs, in the probability domain.
func frontierConfidence(bestCost float64, costs []float64) float64 {
	logSum := mathutil.LogZero
	for _, c := range costs {
		if math.IsInf(c, 1) {
			continue
		}
		logSum = mathutil.LogAdd(logSum, -c)
	}
	if logSum == mathutil.LogZero {
		return 0
	}
	return math.Exp(-bestCost - logSum)
}

// BestPath returns the lowest-cost path with final weights folded in.
// Finalize must have been called.
func (d *LatticeDecoder) BestPath() (*Result, error) {
	if d.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	bestIdx := -1
	bestCost := math.Inf(1)
	for i := range d.frontier {
		if d.finalCosts[i] < bestCost {
			bestCost = d.finalCosts[i]
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, ErrEmptyFrontier
	}
	res := d.buildResult(d.trace(d.frontier[bestIdx]), bestCost)
	res.Confidence = frontierConfidence(bestCost, d.finalCosts)
	return res, nil
}

// PartialPath returns the best path through the live frontier at the most
// recent frame, without final weights. The output is advisory: later
// frames may route the best path through different history, so callers
// must treat it as a revisable display hypothesis, not a commitment.
func (d *LatticeDecoder) PartialPath() (*Result, error) {
	if d.state == StateIdle {
		return nil, fmt.Errorf("decoder: %w: Reset before querying", ErrDecoderNotReady)
	}
	bestIdx := -1
	bestCost := math.Inf(1)
	costs := make([]float64, len(d.frontier))
	for i, r := range d.frontier {
		costs[i] = d.lat.tok(r).cost
		if costs[i] < bestCost {
			bestCost = costs[i]
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, ErrEmptyFrontier
	}
	res := d.buildResult(d.trace(d.frontier[bestIdx]), bestCost)
	res.Confidence = frontierConfidence(bestCost, costs)
	return res, nil
}

// nbestItem is a partial path during backward re-expansion: a position in
// the lattice, the full-path cost estimate, and the arcs already chosen
// from that position to the path end (in forward order).
type nbestItem struct {
	at     tokenRef
	total  float64
	suffix *suffixNode
}

type suffixNode struct {
	olabel int32
	frame  int32
	next   *suffixNode
}

type nbestHeap []nbestItem

func (h nbestHeap) Len() int            { return len(h) }
func (h nbestHeap) Less(i, j int) bool  { return h[i].total < h[j].total }
func (h nbestHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nbestHeap) Push(x interface{}) { *h = append(*h, x.(nbestItem)) }
func (h *nbestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// NBest re-expands the pruned lattice into up to n distinct word
// sequences, ordered by non-decreasing cost. Alternative arrivals recorded
// within the lattice beam widen the search beyond the Viterbi path; the
// search is a bounded best-first walk backward over those links, so paths
// pop in cost order and the first n distinct sequences are the answer.
// Finalize must have been called; n must be positive.
func (d *LatticeDecoder) NBest(n int) ([]*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("decoder: %w: n must be positive, got %d", ErrInvalidQuery, n)
	}
	if d.state != StateFinalized {
		return nil, ErrNotFinalized
	}

	h := &nbestHeap{}
	for i, r := range d.frontier {
		if math.IsInf(d.finalCosts[i], 1) {
			continue
		}
		heap.Push(h, nbestItem{at: r, total: d.finalCosts[i]})
	}
	if h.Len() == 0 {
		return nil, ErrEmptyFrontier
	}

	var results []*Result
	seen := make(map[string]bool)
	budget := nbestBudget * n

	for h.Len() > 0 && len(results) < n && budget > 0 {
		budget--
		it := heap.Pop(h).(nbestItem)
		t := d.lat.tok(it.at)

		if !t.best.pred.valid() {
			// Reached the start token: suffix is a complete path.
			var ems []emission
			for sn := it.suffix; sn != nil; sn = sn.next {
				ems = append(ems, emission{sn.olabel, sn.frame})
			}
			res := d.buildResult(ems, it.total)
			if !seen[res.Text] {
				seen[res.Text] = true
				results = append(results, res)
			}
			continue
		}

		expand := func(l link) {
			delta := l.cost - t.cost
			suffix := it.suffix
			if l.olabel != 0 {
				suffix = &suffixNode{olabel: l.olabel, frame: it.at.frame, next: it.suffix}
			}
			heap.Push(h, nbestItem{at: l.pred, total: it.total + delta, suffix: suffix})
		}
		expand(t.best)
		for _, al := range t.alts {
			expand(al)
		}
	}
	return results, nil
}
