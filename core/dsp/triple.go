package dsp

import "sync"

// TripleBuffer hands an immutable snapshot from one producer to one
// consumer without either side blocking the other. Three equally sized
// slots rotate between the roles read, write and standby; the rotation
// happens under a short mutex, so a consumer never observes a partially
// written frame and sees at most one generation of staleness.
type TripleBuffer struct {
	mu      sync.Mutex
	slots   [3][]float64
	gens    [3]uint64
	read    int
	write   int
	standby int
	gen     uint64
}

// NewTripleBuffer creates a triple buffer whose slots hold size values.
func NewTripleBuffer(size int) *TripleBuffer {
	t := &TripleBuffer{read: 0, write: 1, standby: 2}
	for i := range t.slots {
		t.slots[i] = make([]float64, size)
	}
	return t
}

// Write copies the frame into the producer-owned write slot. Only the
// producer may call Write and Publish.
func (t *TripleBuffer) Write(frame []float64) {
	copy(t.slots[t.write], frame)
}

// Publish rotates the freshly written slot into standby so the consumer
// can pick it up. Never blocks on the consumer.
func (t *TripleBuffer) Publish() {
	t.mu.Lock()
	t.gen++
	t.gens[t.write] = t.gen
	t.write, t.standby = t.standby, t.write
	t.mu.Unlock()
}

// Read returns the latest published frame together with its generation
// number (0 means nothing has been published yet). The returned slice is
// owned by the consumer until its next Read call; callers that retain the
// frame must copy it.
func (t *TripleBuffer) Read() ([]float64, uint64) {
	t.mu.Lock()
	if t.gens[t.standby] > t.gens[t.read] {
		t.read, t.standby = t.standby, t.read
	}
	frame, gen := t.slots[t.read], t.gens[t.read]
	t.mu.Unlock()
	if gen == 0 {
		return nil, 0
	}
	return frame, gen
}
