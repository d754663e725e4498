// Package credstore persists the bearer credential across process restarts.
//
// The store holds exactly one value. Missing or cleared is the default safe
// state: a Load that finds nothing returns an empty token and no error, which
// callers treat as "anonymous".
package credstore

import "sync"

// Store abstracts durable credential storage so the credential can live
// in-memory (tests) or in a bbolt file (the CLI).
type Store interface {
	// Load returns the stored credential, or "" if none is stored.
	Load() (string, error)
	// Save stores the credential, replacing any previous value.
	Save(token string) error
	// Clear removes the stored credential. Clearing an empty store is not
	// an error.
	Clear() error
}

// Memory is an in-process Store. The credential is lost on restart.
type Memory struct {
	mu    sync.Mutex
	token string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory credential store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
