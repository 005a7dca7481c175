// pkg/env/store.go
package env

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"
)

// Unset is the value that marks a variable as deliberately unset
const Unset = "***unset***"

// Store reads and writes environment variables
type Store interface {
	Lookup(name string) (string, bool)
	Set(name, value string) error
}

// Value returns the variable's value when it is set to something usable.
func Value(s Store, name string) (string, bool) {
	v, ok := s.Lookup(name)
	if !ok || v == "" || v == Unset {
		return "", false
	}
	return v, true
}

// Map is an in-memory Store
type Map struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMap creates a Map seeded with a copy of initial
func NewMap(initial map[string]string) *Map {
	vars := make(map[string]string, len(initial))
	maps.Copy(vars, initial)
	return &Map{vars: vars}
}

func (m *Map) Lookup(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[name]
	return v, ok
}

func (m *Map) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vars[name] = value
	return nil
}

// Snapshot returns a copy of all variables
func (m *Map) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.vars)
}

type process struct{}

// Process returns a Store backed by the real process environment
func Process() Store {
	return process{}
}

func (process) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

func (process) Set(name, value string) error {
	if err := os.Setenv(name, value); err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}
	return nil
}

type overlay []Store

// Overlay reads from the first store that has a usable value and writes to
// all of them. A store holding Unset hides the stores behind it.
func Overlay(stores ...Store) Store {
	return overlay(stores)
}

func (o overlay) Lookup(name string) (string, bool) {
	var (
		fallback string
		found    bool
	)
	for _, s := range o {
		v, ok := s.Lookup(name)
		if !ok {
			continue
		}
		if v != "" {
			return v, true
		}
		if !found {
			fallback, found = v, true
		}
	}
	return fallback, found
}

func (o overlay) Set(name, value string) error {
	var errs []error
	for _, s := range o {
		errs = append(errs, s.Set(name, value))
	}
	return errors.Join(errs...)
}
