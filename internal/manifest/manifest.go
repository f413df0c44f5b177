// Package manifest serializes the parameter layout of a batch. The manifest is
// the contract with the runtime that allocates the shared parameter buffers:
// one JSON object mapping "<file>:<name>" to {"type", "offset"}, keys in
// definition order.
package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fwessels/shader-pp/internal/preprocessor"
)

// Entry is one manifest record.
type Entry struct {
	Key    string
	Type   string
	Offset int
}

type value struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
}

// FromSymbols converts a symbol table snapshot into manifest entries.
func FromSymbols(symbols []preprocessor.Symbol) []Entry {
	entries := make([]Entry, 0, len(symbols))
	for _, s := range symbols {
		entries = append(entries, Entry{Key: s.Key.String(), Type: s.Type.String(), Offset: s.Offset})
	}
	return entries
}

// Write encodes entries as a JSON object, one key per line, preserving order.
// encoding/json sorts map keys, so the object is assembled by hand.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	if len(entries) == 0 {
		bw.WriteString("{}\n")
		return bw.Flush()
	}
	bw.WriteString("{\n")
	for i, e := range entries {
		k, err := json.Marshal(e.Key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value{Type: e.Type, Offset: e.Offset})
		if err != nil {
			return err
		}
		bw.WriteString("  ")
		bw.Write(k)
		bw.WriteString(": ")
		bw.Write(v)
		if i < len(entries)-1 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

// Read decodes a manifest, keeping the key order of the document.
func Read(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("manifest: expected JSON object")
	}
	dec.DisallowUnknownFields()
	var entries []Entry
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)
		if seen[key] {
			return nil, fmt.Errorf("manifest: duplicate key %q", key)
		}
		seen[key] = true

		var v value
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("manifest: %s: %w", key, err)
		}
		if _, ok := preprocessor.ParseParamType(v.Type); !ok {
			return nil, fmt.Errorf("manifest: %s: unknown type %q", key, v.Type)
		}
		if v.Offset < 0 {
			return nil, fmt.Errorf("manifest: %s: negative offset %d", key, v.Offset)
		}
		entries = append(entries, Entry{Key: key, Type: v.Type, Offset: v.Offset})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}
