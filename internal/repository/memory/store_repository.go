// Package memory provides an in-process queue store. Contents are lost on exit.
package memory

import (
	"context"
	"sync"

	"github.com/alfanzaky/txqueue/internal/domain"
)

// StoreRepository keeps the encoded queue in memory
type StoreRepository struct {
	mu      sync.RWMutex
	data    []byte
	saves   int
	saveErr error
	loadErr error
}

var _ domain.QueueStore = (*StoreRepository)(nil)

// NewStoreRepository creates an empty store
func NewStoreRepository() *StoreRepository {
	return &StoreRepository{}
}

// NewStoreRepositoryWithData creates a store preloaded with a document
func NewStoreRepositoryWithData(data []byte) *StoreRepository {
	return &StoreRepository{data: append([]byte(nil), data...)}
}

// Load returns a copy of the stored document
func (s *StoreRepository) Load(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

// Save replaces the stored document
func (s *StoreRepository) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = append([]byte(nil), data...)
	s.saves++
	return nil
}

// Ping always succeeds
func (s *StoreRepository) Ping(ctx context.Context) error {
	return nil
}

// Data returns a copy of the last saved document
func (s *StoreRepository) Data() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...)
}

// Saves returns how many writes succeeded
func (s *StoreRepository) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// FailSaves makes subsequent saves return err; nil restores normal behavior
func (s *StoreRepository) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailLoads makes subsequent loads return err
func (s *StoreRepository) FailLoads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}
