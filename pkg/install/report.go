package install

import (
	"bytes"
	"encoding/json"

	"github.com/arc-language/refdata/pkg/env"
)

// Entry is one package's line in the installation report
type Entry struct {
	Package      string `json:"-"`
	Variable     string `json:"-"`
	Path         string `json:"path"`
	PreInstalled bool   `json:"pre_installed"`
}

// Report maps variable names to install results in document order
type Report struct {
	entries []Entry
	index   map[string]int
}

func newReport() *Report {
	return &Report{index: make(map[string]int)}
}

// add records e, replacing an earlier entry for the same variable in place
func (r *Report) add(e Entry) {
	if i, ok := r.index[e.Variable]; ok {
		r.entries[i] = e
		return
	}
	r.index[e.Variable] = len(r.entries)
	r.entries = append(r.entries, e)
}

// Entries returns a copy of the entries in order
func (r *Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Get returns the entry for a variable
func (r *Report) Get(variable string) (Entry, bool) {
	i, ok := r.index[variable]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Len returns the number of entries
func (r *Report) Len() int {
	return len(r.entries)
}

// Exports returns one shell assignment per entry
func (r *Report) Exports() []env.Export {
	out := make([]env.Export, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, env.Export{Name: e.Variable, Value: e.Path})
	}
	return out
}

// MarshalJSON writes {"VAR": {"path": ..., "pre_installed": ...}} keeping order
func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Variable)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
