package config

import (
	"sync/atomic"

	"signal-trader/internal/domain"
)

// Store publishes the active configuration. Readers get an immutable
// snapshot; Update swaps both snapshots without blocking readers.
type Store struct {
	risk    atomic.Pointer[domain.RiskConfig]
	traders atomic.Pointer[domain.TraderAllowList]
}

// NewStore creates a store holding f.
func NewStore(f File) *Store {
	s := &Store{}
	s.Update(f)
	return s
}

// Update publishes f.
func (s *Store) Update(f File) {
	risk := f.RiskConfig()
	list := f.TraderAllowList()
	s.risk.Store(&risk)
	s.traders.Store(&list)
}

// Risk returns the current policy. Callers must not mutate it.
func (s *Store) Risk() *domain.RiskConfig {
	return s.risk.Load()
}

// Traders returns the current allow-list.
func (s *Store) Traders() domain.TraderAllowList {
	return *s.traders.Load()
}
