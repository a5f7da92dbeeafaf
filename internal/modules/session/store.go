// README: Session store contract and in-memory implementation.
package session

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidState = errors.New("invalid session state transition")
)

// Store persists the single current session record. Writes are last-writer-wins.
type Store interface {
	// Get returns ErrNotFound when no record is stored.
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the record in process; it does not survive restarts.
type MemoryStore struct {
	mu  sync.Mutex
	cur *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return nil, ErrNotFound
	}
	return m.cur.Clone(), nil
}

func (m *MemoryStore) Set(_ context.Context, s *Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	cp := s.Clone()
	m.mu.Lock()
	m.cur = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.cur = nil
	m.mu.Unlock()
	return nil
}
