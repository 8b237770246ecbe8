package paddlespeech

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/skyscope-sentinel/PaddleSpeech/decoder"
	"github.com/skyscope-sentinel/PaddleSpeech/wfst"
)

const okGraphText = `0 1 1 1 0
1 1 1 0 0
1 2 2 0 0
2 2 2 0 0
2 0
`

const okSymbolsText = `<eps> 0
OK 1
`

// okLikes strongly favors label 1 on the first two frames and label 2 on
// the last two.
var okLikes = [][]float64{
	{10, -10},
	{10, -10},
	{-10, 10},
	{-10, 10},
}

func writeResources(t *testing.T) (fstPath, wordsPath string) {
	t.Helper()
	dir := t.TempDir()
	fstPath = filepath.Join(dir, "TLG.fst.txt")
	wordsPath = filepath.Join(dir, "words.txt")
	if err := os.WriteFile(fstPath, []byte(okGraphText), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wordsPath, []byte(okSymbolsText), 0o644); err != nil {
		t.Fatal(err)
	}
	return fstPath, wordsPath
}

func okGraph(t *testing.T) (*wfst.Fst, *wfst.SymbolTable) {
	t.Helper()
	f := wfst.NewFst()
	s0 := f.AddState()
	s1 := f.AddState()
	s2 := f.AddState()
	f.SetStart(s0)
	f.AddArc(s0, wfst.Arc{ILabel: 1, OLabel: 1, NextState: s1})
	f.AddArc(s1, wfst.Arc{ILabel: 1, NextState: s1})
	f.AddArc(s1, wfst.Arc{ILabel: 2, NextState: s2})
	f.AddArc(s2, wfst.Arc{ILabel: 2, NextState: s2})
	f.SetFinal(s2, 0)
	if err := f.Freeze(); err != nil {
		t.Fatal(err)
	}
	st := wfst.NewSymbolTable()
	st.Add("<eps>", 0)
	st.Add("OK", 1)
	return f, st
}

func TestNewFromFiles(t *testing.T) {
	fstPath, wordsPath := writeResources(t)
	dec, err := New(fstPath, wordsPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	words, err := dec.DecodeLikelihoods(okLikes)
	if err != nil {
		t.Fatalf("DecodeLikelihoods: %v", err)
	}
	if len(words) == 0 || words[0] != "OK" {
		t.Errorf("nbest = %v, want [OK]", words)
	}
	if got := dec.NumFramesDecoded(); got != 4 {
		t.Errorf("NumFramesDecoded = %d, want 4", got)
	}
}

func TestNewMissingResources(t *testing.T) {
	if _, err := New("no-such.fst", "no-such.words"); err == nil {
		t.Error("New with missing files succeeded")
	}
	fstPath, _ := writeResources(t)
	if _, err := New(fstPath, "no-such.words"); err == nil {
		t.Error("New with missing symbol table succeeded")
	}
}

func TestStreamingLifecycle(t *testing.T) {
	f, st := okGraph(t)
	dec, err := NewFromGraph(f, st)
	if err != nil {
		t.Fatal(err)
	}

	sp := decoder.NewMatrixScores(okLikes, 1.0)
	dec.Reset()
	if err := dec.FeedUntilExhausted(sp); err != nil {
		t.Fatalf("FeedUntilExhausted: %v", err)
	}
	if got := dec.NumFramesDecoded(); got != 4 {
		t.Errorf("NumFramesDecoded = %d, want 4", got)
	}

	partial, err := dec.GetPartialResult()
	if err != nil {
		t.Fatalf("GetPartialResult: %v", err)
	}
	if partial != "OK" {
		t.Errorf("partial = %q, want OK", partial)
	}

	if _, err := dec.GetFinalBestPath(); !errors.Is(err, decoder.ErrNotFinalized) {
		t.Errorf("GetFinalBestPath before Finalize: got %v, want ErrNotFinalized", err)
	}

	if err := dec.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	text, err := dec.GetFinalBestPath()
	if err != nil {
		t.Fatalf("GetFinalBestPath: %v", err)
	}
	if text != "OK" {
		t.Errorf("final best path = %q, want OK", text)
	}

	entries, err := dec.GetNBestPath(3)
	if err != nil {
		t.Fatalf("GetNBestPath: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "OK" {
		t.Errorf("nbest = %+v, want single OK", entries)
	}
}

func TestDecodeLikelihoodsRepeatable(t *testing.T) {
	f, st := okGraph(t)
	dec, err := NewFromGraph(f, st)
	if err != nil {
		t.Fatal(err)
	}
	first, err := dec.DecodeLikelihoods(okLikes)
	if err != nil {
		t.Fatal(err)
	}
	second, err := dec.DecodeLikelihoods(okLikes)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("result lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}

// TestConcurrentDecodersShareGraph decodes in parallel against one frozen
// graph; each engine owns its lattice, the graph is read-only.
func TestConcurrentDecodersShareGraph(t *testing.T) {
	f, st := okGraph(t)

	const workers = 8
	results := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dec, err := NewFromGraph(f, st)
			if err != nil {
				errs[i] = err
				return
			}
			words, err := dec.DecodeLikelihoods(okLikes)
			if err != nil {
				errs[i] = err
				return
			}
			if len(words) > 0 {
				results[i] = words[0]
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i] != "OK" {
			t.Errorf("worker %d: best = %q, want OK", i, results[i])
		}
	}
}
