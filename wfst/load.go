package wfst

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadError reports a malformed graph or symbol table resource.
type LoadError struct {
	Line int
	Msg  string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads a graph in AT&T text format. Arc lines are
//
//	src dst ilabel olabel [weight]
//
// and final lines are
//
//	state [weight]
//
// with a default weight of 0. The source state of the first line is the
// start state. States are created on demand. The returned graph is frozen.
func Load(r io.Reader) (*Fst, error) {
	f := NewFst()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	ensure := func(state int) {
		for f.NumStates() <= state {
			f.AddState()
		}
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch len(fields) {
		case 1, 2:
			// Final state line.
			state, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, &LoadError{Line: lineNum, Msg: "bad state id", Err: err}
			}
			if state < 0 {
				return nil, &LoadError{Line: lineNum, Msg: fmt.Sprintf("negative state id %d", state)}
			}
			weight := 0.0
			if len(fields) == 2 {
				weight, err = strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, &LoadError{Line: lineNum, Msg: "bad final weight", Err: err}
				}
			}
			ensure(state)
			f.SetFinal(state, weight)
			if f.Start() == NoState {
				f.SetStart(state)
			}

		case 4, 5:
			// Arc line.
			nums := make([]int, 4)
			for i := 0; i < 4; i++ {
				v, err := strconv.Atoi(fields[i])
				if err != nil {
					return nil, &LoadError{Line: lineNum, Msg: "bad arc field", Err: err}
				}
				nums[i] = v
			}
			src, dst, ilabel, olabel := nums[0], nums[1], nums[2], nums[3]
			if src < 0 || dst < 0 {
				return nil, &LoadError{Line: lineNum, Msg: "negative state id"}
			}
			weight := 0.0
			if len(fields) == 5 {
				var err error
				weight, err = strconv.ParseFloat(fields[4], 64)
				if err != nil {
					return nil, &LoadError{Line: lineNum, Msg: "bad arc weight", Err: err}
				}
			}
			ensure(src)
			ensure(dst)
			f.AddArc(src, Arc{ILabel: ilabel, OLabel: olabel, Weight: weight, NextState: dst})
			if f.Start() == NoState {
				f.SetStart(src)
			}

		default:
			return nil, &LoadError{Line: lineNum, Msg: fmt.Sprintf("expected 1-2 or 4-5 fields, got %d", len(fields))}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if err := f.Freeze(); err != nil {
		return nil, &LoadError{Line: lineNum, Msg: "invalid graph", Err: err}
	}
	return f, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Fst, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fst, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fst, nil
}
