package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// minBandFrequency is the lower edge of the first band. Anything below is
// inaudible rumble that would otherwise dominate the log spacing.
const minBandFrequency = 20.0

// Band is a contiguous range of FFT bins [Start, End) mapped to one
// output spectrum value.
type Band struct {
	Start int
	End   int
}

// BandMap maps FFT bins to log-spaced perceptual bands for one
// sample-rate/FFT-length combination. It must be recomputed whenever the
// capture format changes (device swap).
type BandMap struct {
	Bands      []Band
	SampleRate int
	FFTLength  int
}

// NewBandMap derives count log-spaced bands spanning minBandFrequency to
// Nyquist. Band edges are strictly increasing: every band covers at least
// one bin, bands do not overlap except at the shared boundary, and the
// last band ends at FFTLength/2.
func NewBandMap(count, fftLength, sampleRate int) (*BandMap, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid band count %d", count)
	}
	if fftLength <= 0 || fftLength&(fftLength-1) != 0 {
		return nil, fmt.Errorf("fft length %d is not a power of two", fftLength)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	halfBins := fftLength / 2
	if count > halfBins {
		return nil, fmt.Errorf("band count %d exceeds usable bins %d", count, halfBins)
	}

	nyquist := float64(sampleRate) / 2
	binWidth := float64(sampleRate) / float64(fftLength)
	lo := minBandFrequency
	if lo >= nyquist {
		lo = nyquist / float64(count+1)
	}
	ratio := nyquist / lo

	bands := make([]Band, count)
	prevEnd := 0
	for i := range bands {
		edge := lo * math.Pow(ratio, float64(i+1)/float64(count))
		end := int(math.Round(edge / binWidth))

		// Bins left must cover the remaining bands one each.
		if maxEnd := halfBins - (count - 1 - i); end > maxEnd {
			end = maxEnd
		}
		if end <= prevEnd {
			end = prevEnd + 1
		}
		bands[i] = Band{Start: prevEnd, End: end}
		prevEnd = end
	}
	// The log spacing may round the last edge short of Nyquist.
	bands[count-1].End = halfBins

	return &BandMap{Bands: bands, SampleRate: sampleRate, FFTLength: fftLength}, nil
}

// BandCount returns the number of bands.
func (m *BandMap) BandCount() int {
	return len(m.Bands)
}

// Magnitudes averages the FFT magnitude over each band range and writes
// the results into dst, which must hold BandCount values. coeffs is the
// full complex FFT output of length FFTLength.
func (m *BandMap) Magnitudes(coeffs []complex128, dst []float64) {
	for i, b := range m.Bands {
		var sum float64
		for bin := b.Start; bin < b.End; bin++ {
			sum += cmplx.Abs(coeffs[bin])
		}
		dst[i] = sum / float64(b.End-b.Start)
	}
}

// epsilon keeps the dB conversion defined for silent bands.
const epsilon = 1e-9

// NormalizeDB converts magnitudes to decibels, clamps them at floorDB and
// rescales in place so every value lands in [0, 1]. floorDB must be
// negative; silence maps to 0, magnitude 1 maps to 1.
func NormalizeDB(mags []float64, floorDB float64) {
	for i, m := range mags {
		db := 20 * math.Log10(m+epsilon)
		if db < floorDB {
			db = floorDB
		}
		v := (db - floorDB) / -floorDB
		if v > 1 {
			v = 1
		}
		mags[i] = v
	}
}
