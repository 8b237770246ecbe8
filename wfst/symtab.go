package wfst

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SymbolTable maps output-label ids to surface word strings.
type SymbolTable struct {
	byID   map[int]string
	byWord map[string]int
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byID:   make(map[int]string),
		byWord: make(map[string]int),
	}
}

// Add registers a word under the given id. Re-adding an id overwrites it.
func (t *SymbolTable) Add(word string, id int) {
	t.byID[id] = word
	t.byWord[word] = id
}

// Find returns the word for an id.
func (t *SymbolTable) Find(id int) (string, bool) {
	w, ok := t.byID[id]
	return w, ok
}

// ID returns the id for a word.
func (t *SymbolTable) ID(word string) (int, bool) {
	id, ok := t.byWord[word]
	return id, ok
}

// NumSymbols returns the number of entries.
func (t *SymbolTable) NumSymbols() int {
	return len(t.byID)
}

// LoadSymbols reads a symbol table in the usual two-column format:
// word<whitespace>id, one entry per line. Blank lines and lines starting
// with # are skipped.
func LoadSymbols(r io.Reader) (*SymbolTable, error) {
	t := NewSymbolTable()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, &LoadError{Line: lineNum, Msg: fmt.Sprintf("expected 2 fields, got %d", len(fields))}
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &LoadError{Line: lineNum, Msg: "bad symbol id", Err: err}
		}
		if id < 0 {
			return nil, &LoadError{Line: lineNum, Msg: fmt.Sprintf("negative symbol id %d", id)}
		}
		t.Add(fields[0], id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadSymbolsFile is a convenience wrapper that opens a file path.
func LoadSymbolsFile(path string) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := LoadSymbols(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
