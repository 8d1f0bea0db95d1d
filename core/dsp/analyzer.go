package dsp

import (
	"fmt"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/gen1nya/WinMediaSessionProvider/core/capture"
	"github.com/gen1nya/WinMediaSessionProvider/logger"
)

// AnalyzerState tracks the analyzer lifecycle.
type AnalyzerState int32

const (
	StateStopped AnalyzerState = iota
	StateStarting
	StateRunning
)

// waitPoll is how often the analysis loop re-checks the ring buffer while
// waiting for a full FFT window. Keeps the wait cooperative and
// cancellation-checked instead of unbounded.
const waitPoll = 5 * time.Millisecond

// AnalyzerOptions tune the analysis pipeline.
type AnalyzerOptions struct {
	FFTLength      int           // power of two
	BandCount      int           // output spectrum resolution
	FloorDB        float64       // normalization floor, e.g. -60
	NotifyInterval time.Duration // cadence of frames toward the hub
}

// Analyzer owns the capture lifecycle and runs the signal-processing
// pipeline: windowed FFT over the most recent samples, perceptual band
// mapping and dB normalization. Frames travel to the notify loop through
// a triple buffer, so analysis never blocks on downstream consumers and
// the ~30 Hz delivery cadence stays decoupled from analysis timing.
type Analyzer struct {
	// ops serializes lifecycle transitions (Start/Stop/SetDevice);
	// mu guards the fields themselves.
	ops  sync.Mutex
	mu   sync.Mutex
	opts AnalyzerOptions
	src  capture.Source
	sink func([]float64) // forwards frames to the broadcast hub

	state    AnalyzerState
	deviceID string

	ring   *Ring
	tri    *TripleBuffer
	bands  *BandMap
	window []float64

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewAnalyzer creates a stopped analyzer. sink receives each published
// spectrum frame; it must not block (the hub enqueue is non-blocking).
func NewAnalyzer(src capture.Source, opts AnalyzerOptions, sink func([]float64)) *Analyzer {
	return &Analyzer{opts: opts, src: src, sink: sink}
}

// State returns the current lifecycle state.
func (a *Analyzer) State() AnalyzerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Running reports whether the capture/analysis loop is active.
func (a *Analyzer) Running() bool {
	return a.State() == StateRunning
}

// Device returns the currently selected device ID (empty means default).
func (a *Analyzer) Device() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deviceID
}

// Start attaches the capture device and launches the analysis and notify
// loops. Device open or format errors abort the start and leave the
// analyzer stopped.
func (a *Analyzer) Start() error {
	a.ops.Lock()
	defer a.ops.Unlock()
	return a.start()
}

func (a *Analyzer) start() error {
	a.mu.Lock()
	if a.state != StateStopped {
		a.mu.Unlock()
		return nil
	}
	a.state = StateStarting
	deviceID := a.deviceID
	a.mu.Unlock()

	format, err := a.src.Open(deviceID)
	if err != nil {
		a.mu.Lock()
		a.state = StateStopped
		a.mu.Unlock()
		return fmt.Errorf("open capture device: %w", err)
	}

	bands, err := NewBandMap(a.opts.BandCount, a.opts.FFTLength, format.SampleRate)
	if err != nil {
		_ = a.src.Stop()
		a.mu.Lock()
		a.state = StateStopped
		a.mu.Unlock()
		return fmt.Errorf("derive band map: %w", err)
	}

	// Capacity for several windows so the capture callback never catches
	// up with the analysis loop mid-read.
	ring, err := NewRing(a.opts.FFTLength * 8)
	if err != nil {
		_ = a.src.Stop()
		a.mu.Lock()
		a.state = StateStopped
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.ring = ring
	a.tri = NewTripleBuffer(a.opts.BandCount)
	a.bands = bands
	a.window = HammingWindow(a.opts.FFTLength)
	a.quit = make(chan struct{})
	quit := a.quit
	a.mu.Unlock()

	onSamples := func(samples []float64) {
		ring.Write(samples)
	}
	onError := func(err error) {
		logger.Error("capture failed mid-run, stopping analyzer", logger.ErrorField(err))
		// Stop from a fresh goroutine: the malgo stop callback must not
		// block on the device teardown it is part of.
		go a.Stop()
	}
	if err := a.src.Start(onSamples, onError); err != nil {
		_ = a.src.Stop()
		a.mu.Lock()
		a.state = StateStopped
		a.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	a.wg.Add(2)
	go a.analysisLoop(quit)
	go a.notifyLoop(quit)

	a.mu.Lock()
	a.state = StateRunning
	a.mu.Unlock()
	logger.Info("spectrum analyzer started",
		logger.String("device", deviceID),
		logger.Int("fftLength", a.opts.FFTLength),
		logger.Int("bands", a.opts.BandCount),
		logger.Int("sampleRate", format.SampleRate))
	return nil
}

// Stop cancels the loops, detaches the capture device and transitions to
// Stopped. Safe to call on an already stopped analyzer.
func (a *Analyzer) Stop() {
	a.ops.Lock()
	defer a.ops.Unlock()
	a.stop()
}

func (a *Analyzer) stop() {
	a.mu.Lock()
	if a.state == StateStopped {
		a.mu.Unlock()
		return
	}
	quit := a.quit
	a.state = StateStopped
	a.mu.Unlock()

	if quit != nil {
		close(quit)
	}
	_ = a.src.Stop()
	a.wg.Wait()
	logger.Info("spectrum analyzer stopped")
}

// Enable toggles the analyzer between Running and Stopped.
func (a *Analyzer) Enable(on bool) error {
	a.ops.Lock()
	defer a.ops.Unlock()
	if on {
		return a.start()
	}
	a.stop()
	return nil
}

// SetDevice selects a capture device. A running analyzer is restarted on
// the new device.
func (a *Analyzer) SetDevice(deviceID string) error {
	a.ops.Lock()
	defer a.ops.Unlock()

	a.mu.Lock()
	if a.deviceID == deviceID {
		a.mu.Unlock()
		return nil
	}
	a.deviceID = deviceID
	running := a.state == StateRunning
	a.mu.Unlock()

	if !running {
		return nil
	}
	a.stop()
	return a.start()
}

// analysisLoop waits for a full FFT window of samples, runs the pipeline
// and publishes the resulting vector through the triple buffer. It never
// blocks on consumers; the triple buffer absorbs any speed mismatch.
func (a *Analyzer) analysisLoop(quit chan struct{}) {
	defer a.wg.Done()

	fftLength := a.opts.FFTLength
	windowed := make([]float64, fftLength)
	mags := make([]float64, a.opts.BandCount)
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}

		if a.ring.Buffered() < fftLength {
			continue
		}
		samples, err := a.ring.ReadLatest(fftLength)
		if err != nil {
			continue
		}

		for i, s := range samples {
			windowed[i] = s * a.window[i]
		}
		coeffs := fft.FFTReal(windowed)

		a.bands.Magnitudes(coeffs, mags)
		for i := range mags {
			mags[i] /= float64(fftLength)
		}
		NormalizeDB(mags, a.opts.FloorDB)

		a.tri.Write(mags)
		a.tri.Publish()
	}
}

// notifyLoop samples the latest snapshot at a fixed cadence and forwards
// it to the sink. A snapshot may be delivered more than once or skipped
// when analysis falls behind; delivery never waits for analysis.
func (a *Analyzer) notifyLoop(quit chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.opts.NotifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}

		frame, gen := a.tri.Read()
		if gen == 0 {
			continue
		}
		out := make([]float64, len(frame))
		copy(out, frame)
		a.sink(out)
	}
}
