package dsp

import (
	"math"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBandMapRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		fftLength  int
		sampleRate int
	}{
		{"zero bands", 0, 2048, 48000},
		{"non power of two fft", 32, 1000, 48000},
		{"zero fft length", 32, 0, 48000},
		{"zero sample rate", 32, 2048, 0},
		{"more bands than bins", 2048, 2048, 48000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBandMap(tt.count, tt.fftLength, tt.sampleRate)
			assert.Error(t, err)
		})
	}
}

func TestBandMapInvariants(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		fftLength  int
		sampleRate int
	}{
		{"48k 2048 32", 32, 2048, 48000},
		{"44k1 2048 32", 32, 2048, 44100},
		{"48k 1024 16", 16, 1024, 48000},
		{"96k 4096 64", 64, 4096, 96000},
		{"8k 512 8", 8, 512, 8000},
		{"48k 2048 1 band", 1, 2048, 48000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewBandMap(tt.count, tt.fftLength, tt.sampleRate)
			require.NoError(t, err)
			require.Len(t, m.Bands, tt.count)

			prevEnd := 0
			for i, b := range m.Bands {
				assert.Greater(t, b.End, b.Start, "band %d must cover at least one bin", i)
				assert.Equal(t, prevEnd, b.Start, "band %d must start at the previous end", i)
				prevEnd = b.End
			}
			assert.Equal(t, tt.fftLength/2, m.Bands[tt.count-1].End,
				"last band must end at Nyquist bin")
		})
	}
}

// bandFor returns the index of the band containing the bin nearest to
// frequency f.
func bandFor(m *BandMap, f float64) int {
	binWidth := float64(m.SampleRate) / float64(m.FFTLength)
	bin := int(math.Round(f / binWidth))
	for i, b := range m.Bands {
		if bin >= b.Start && bin < b.End {
			return i
		}
	}
	return -1
}

// A 440 Hz sine at 48 kHz with a 2048-point FFT must produce its local
// maximum in the band covering 440 Hz.
func TestSpectrumOf440HzSine(t *testing.T) {
	const (
		sampleRate = 48000
		fftLength  = 2048
		bandCount  = 32
	)
	m, err := NewBandMap(bandCount, fftLength, sampleRate)
	require.NoError(t, err)

	window := HammingWindow(fftLength)
	samples := make([]float64, fftLength)
	for i := range samples {
		samples[i] = math.Sin(2*math.Pi*440*float64(i)/sampleRate) * window[i]
	}
	coeffs := fft.FFTReal(samples)

	mags := make([]float64, bandCount)
	m.Magnitudes(coeffs, mags)
	for i := range mags {
		mags[i] /= fftLength
	}
	NormalizeDB(mags, -60)

	target := bandFor(m, 440)
	require.GreaterOrEqual(t, target, 0)

	for i, v := range mags {
		require.GreaterOrEqual(t, v, 0.0, "band %d below range", i)
		require.LessOrEqual(t, v, 1.0, "band %d above range", i)
	}
	peak := 0
	for i, v := range mags {
		if v > mags[peak] {
			peak = i
		}
	}
	assert.Equal(t, target, peak, "the 440 Hz band must be the spectrum maximum")
}

// Silence must map every band to the value implied by the dB floor: zero.
func TestNormalizeDBSilenceHitsFloor(t *testing.T) {
	const (
		sampleRate = 48000
		fftLength  = 2048
		bandCount  = 32
	)
	m, err := NewBandMap(bandCount, fftLength, sampleRate)
	require.NoError(t, err)

	coeffs := fft.FFTReal(make([]float64, fftLength))
	mags := make([]float64, bandCount)
	m.Magnitudes(coeffs, mags)
	for i := range mags {
		mags[i] /= fftLength
	}
	NormalizeDB(mags, -60)

	for i, v := range mags {
		assert.Zero(t, v, "band %d of silence must sit on the floor", i)
	}
}

func TestNormalizeDBClampsLoudSignals(t *testing.T) {
	mags := []float64{100, 1, 0.001, 0}
	NormalizeDB(mags, -60)
	for i, v := range mags {
		assert.GreaterOrEqual(t, v, 0.0, "index %d", i)
		assert.LessOrEqual(t, v, 1.0, "index %d", i)
	}
	assert.Equal(t, 1.0, mags[0], "above 0 dB clamps to 1")
	assert.Zero(t, mags[3], "silence clamps to 0")
}
