package dsp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripleBufferEmptyRead(t *testing.T) {
	tb := NewTripleBuffer(4)
	frame, gen := tb.Read()
	assert.Nil(t, frame)
	assert.Zero(t, gen)
}

func TestTripleBufferReadReturnsLatestPublish(t *testing.T) {
	tb := NewTripleBuffer(2)

	tb.Write([]float64{1, 1})
	tb.Publish()
	frame, gen := tb.Read()
	require.EqualValues(t, 1, gen)
	assert.Equal(t, []float64{1, 1}, frame)

	tb.Write([]float64{2, 2})
	tb.Publish()
	tb.Write([]float64{3, 3})
	tb.Publish()

	frame, gen = tb.Read()
	require.EqualValues(t, 3, gen)
	assert.Equal(t, []float64{3, 3}, frame)
}

func TestTripleBufferRepeatedReadsAreStable(t *testing.T) {
	tb := NewTripleBuffer(1)
	tb.Write([]float64{7})
	tb.Publish()

	for i := 0; i < 3; i++ {
		frame, gen := tb.Read()
		assert.EqualValues(t, 1, gen)
		assert.Equal(t, []float64{7}, frame)
	}
}

// A writer never tears a frame visible to the reader: every read observes
// a frame whose values are all equal, i.e. one complete publish.
func TestTripleBufferNoTornFrames(t *testing.T) {
	const size = 64
	tb := NewTripleBuffer(size)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		frame := make([]float64, size)
		for i := 1; i <= 10000; i++ {
			for j := range frame {
				frame[j] = float64(i)
			}
			tb.Write(frame)
			tb.Publish()
		}
		close(done)
	}()

	for {
		frame, gen := tb.Read()
		if gen > 0 {
			first := frame[0]
			for _, v := range frame {
				require.Equal(t, first, v, "torn frame observed at generation %d", gen)
			}
		}
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
	}
}
