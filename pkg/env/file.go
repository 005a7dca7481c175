// pkg/env/file.go
package env

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store persisted as a JSON object on disk. Every Set rewrites the file.
type File struct {
	mu   sync.Mutex
	path string
	vars map[string]string
}

// OpenFile loads the store at path. A missing file is an empty store.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, vars: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &f.vars); err != nil {
			return nil, fmt.Errorf("parsing env file %s: %w", path, err)
		}
	}
	return f, nil
}

// Path returns the file backing the store
func (f *File) Path() string {
	return f.path
}

func (f *File) Lookup(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vars[name]
	return v, ok
}

func (f *File) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.vars[name]
	f.vars[name] = value
	if err := f.save(); err != nil {
		if had {
			f.vars[name] = prev
		} else {
			delete(f.vars, name)
		}
		return err
	}
	return nil
}

func (f *File) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating env file directory: %w", err)
	}

	data, err := json.MarshalIndent(f.vars, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing env file: %w", err)
	}
	return os.Rename(tmp, f.path)
}
