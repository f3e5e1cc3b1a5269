// Package history keeps the most recent accepted samples in arrival order.
package history

import (
	"sync"

	"p2pwatcher/internal/storage"
)

// DefaultCapacity bounds the retained window.
const DefaultCapacity = 5000

// Store is a capacity-bounded FIFO of samples backed by a ring buffer.
// One writer appends; readers receive copies.
type Store struct {
	mu    sync.RWMutex
	buf   []storage.Sample
	head  int // index of the oldest element
	size  int
	total uint64
}

// New allocates a store. Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{buf: make([]storage.Sample, capacity)}
}

// Append adds a sample, evicting the oldest one when full. It reports
// whether an eviction happened.
func (s *Store) Append(sample storage.Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(sample)
}

func (s *Store) appendLocked(sample storage.Sample) bool {
	s.total++
	capacity := len(s.buf)
	if s.size < capacity {
		s.buf[(s.head+s.size)%capacity] = sample
		s.size++
		return false
	}
	s.buf[s.head] = sample
	s.head = (s.head + 1) % capacity
	return true
}

// Seed appends samples in order; only the newest Cap() survive.
func (s *Store) Seed(samples []storage.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		s.appendLocked(sample)
	}
}

// Len returns the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Cap returns the configured capacity.
func (s *Store) Cap() int {
	return len(s.buf)
}

// Appended counts every sample ever appended, evicted ones included.
func (s *Store) Appended() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Snapshot copies all retained samples, oldest first.
func (s *Store) Snapshot() []storage.Sample {
	return s.Last(0)
}

// Last copies the newest n samples, oldest first. n <= 0 means all.
func (s *Store) Last(n int) []storage.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > s.size {
		n = s.size
	}
	out := make([]storage.Sample, n)
	capacity := len(s.buf)
	start := s.head + s.size - n
	for i := 0; i < n; i++ {
		out[i] = s.buf[(start+i)%capacity]
	}
	return out
}

// Latest returns the newest sample.
func (s *Store) Latest() (storage.Sample, bool) {
	last := s.Last(1)
	if len(last) == 0 {
		return storage.Sample{}, false
	}
	return last[0], true
}
