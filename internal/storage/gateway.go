package storage

import (
	"context"
	"sync"
)

// Gateway persists whole snapshots of the sample history. SaveAll replaces
// the previous snapshot; implementations must not leave a partially written
// snapshot behind after a crash.
type Gateway interface {
	LoadAll(ctx context.Context) ([]Sample, error)
	SaveAll(ctx context.Context, samples []Sample) error
}

// Pinger is implemented by gateways backed by a network service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryGateway keeps the last snapshot in process memory. It backs the
// "none" driver and tests.
type MemoryGateway struct {
	mu      sync.Mutex
	samples []Sample
	saves   int
}

// NewMemoryGateway returns a gateway optionally pre-loaded with samples.
func NewMemoryGateway(seed ...Sample) *MemoryGateway {
	return &MemoryGateway{samples: append([]Sample(nil), seed...)}
}

// LoadAll returns a copy of the stored snapshot.
func (m *MemoryGateway) LoadAll(ctx context.Context) ([]Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sample(nil), m.samples...), nil
}

// SaveAll replaces the stored snapshot.
func (m *MemoryGateway) SaveAll(ctx context.Context, samples []Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append([]Sample(nil), samples...)
	m.saves++
	return nil
}

// Saves counts SaveAll calls.
func (m *MemoryGateway) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var _ Gateway = (*MemoryGateway)(nil)
