package dsp

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientData is returned by ReadLatest when fewer samples than
// requested have ever been written.
var ErrInsufficientData = errors.New("insufficient data in ring buffer")

// Ring is a fixed-capacity circular buffer of raw audio samples.
// Write overwrites the oldest data when full and never blocks or grows.
// It is intended for a single producer (the capture callback) and a
// single consumer (the analysis loop); the internal mutex only guards
// the hand-off between those two goroutines.
type Ring struct {
	mu       sync.Mutex
	data     []float64
	writePos int
	size     int // samples available, capped at capacity
}

// NewRing creates a ring buffer holding capacity samples.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid ring capacity %d", capacity)
	}
	return &Ring{data: make([]float64, capacity)}, nil
}

// Write appends samples, overwriting the oldest data when the buffer is full.
func (r *Ring) Write(samples []float64) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.data)

	// A block larger than the whole buffer keeps only its tail.
	if len(samples) >= capacity {
		copy(r.data, samples[len(samples)-capacity:])
		r.writePos = 0
		r.size = capacity
		return
	}

	n := copy(r.data[r.writePos:], samples)
	if n < len(samples) {
		copy(r.data, samples[n:])
	}
	r.writePos = (r.writePos + len(samples)) % capacity
	r.size += len(samples)
	if r.size > capacity {
		r.size = capacity
	}
}

// ReadLatest returns the n most recent samples in chronological order.
// It fails with ErrInsufficientData until at least n samples have been
// written. The returned slice is a copy.
func (r *Ring) ReadLatest(n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid read size %d", n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > len(r.data) || n > r.size {
		return nil, ErrInsufficientData
	}

	out := make([]float64, n)
	start := r.writePos - n
	if start < 0 {
		start += len(r.data)
	}
	m := copy(out, r.data[start:])
	if m < n {
		copy(out[m:], r.data)
	}
	return out, nil
}

// Buffered returns the number of samples currently available.
func (r *Ring) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
