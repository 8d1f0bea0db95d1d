package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/gen1nya/WinMediaSessionProvider/logger"
)

// Format describes the wave format the opened device delivers.
type Format struct {
	SampleRate int
	Channels   int
}

// Source is the audio capture collaborator. Open resolves and attaches a
// device, Start begins delivering mono float samples to the callback, and
// Stop detaches. Implementations must never call onSamples after Stop
// returns.
type Source interface {
	Open(deviceID string) (Format, error)
	Start(onSamples func([]float64), onError func(error)) error
	Stop() error
}

// MalgoSource captures audio through miniaudio. Render endpoints are
// opened in loopback mode, capture endpoints directly.
type MalgoSource struct {
	mu         sync.Mutex
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	format     Format
	deviceID   string
	loopback   bool
	sampleRate int
	stopping   bool
}

// NewMalgoSource creates a source that will request the given sample rate
// from the device.
func NewMalgoSource(sampleRate int) *MalgoSource {
	return &MalgoSource{sampleRate: sampleRate}
}

// Open initializes the audio context and resolves the device. An empty
// deviceID selects the system default source.
func (s *MalgoSource) Open(deviceID string) (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return Format{}, fmt.Errorf("capture source already open")
	}

	if deviceID == "" {
		def, err := DefaultDevice()
		if err != nil {
			return Format{}, err
		}
		deviceID = def.ID
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return Format{}, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	loopback, found := false, false
	for _, direction := range []malgo.DeviceType{malgo.Playback, malgo.Capture} {
		infos, err := ctx.Devices(direction)
		if err != nil {
			continue
		}
		for _, info := range infos {
			if decodeDeviceID(info.ID.String()) == deviceID {
				loopback = direction == malgo.Playback
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		_ = ctx.Uninit()
		ctx.Free()
		return Format{}, fmt.Errorf("device %q: %w", deviceID, ErrNoDevice)
	}

	s.ctx = ctx
	s.deviceID = deviceID
	s.loopback = loopback
	s.format = Format{SampleRate: s.sampleRate, Channels: 2}
	return s.format, nil
}

// Start attaches the device and begins streaming samples. Interleaved
// frames are mixed down to mono before they reach onSamples. onError is
// invoked when the device stops unexpectedly mid-run.
func (s *MalgoSource) Start(onSamples func([]float64), onError func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return fmt.Errorf("capture source not open")
	}
	if s.device != nil {
		return fmt.Errorf("capture already started")
	}

	deviceType := malgo.Capture
	if s.loopback {
		deviceType = malgo.Loopback
	}
	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(s.format.Channels)
	deviceConfig.SampleRate = uint32(s.format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if id := s.resolvePointer(); id != nil {
		deviceConfig.Capture.DeviceID = id
	}

	channels := s.format.Channels
	onRecvFrames := func(pOutput, pInput []byte, framecount uint32) {
		samples := decodeF32Mono(pInput, channels)
		if len(samples) > 0 {
			onSamples(samples)
		}
	}
	onStopDevice := func() {
		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()
		if !stopping && onError != nil {
			onError(fmt.Errorf("capture device %q stopped unexpectedly", s.deviceID))
		}
	}

	device, err := malgo.InitDevice(s.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
		Stop: onStopDevice,
	})
	if err != nil {
		return fmt.Errorf("device init failed: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("device start failed: %w", err)
	}

	s.device = device
	s.stopping = false
	logger.Info("audio capture started",
		logger.String("device", s.deviceID),
		logger.Bool("loopback", s.loopback),
		logger.Int("sampleRate", s.format.SampleRate))
	return nil
}

// Stop detaches the device and releases the audio context. The source can
// be opened again afterwards.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	s.stopping = true
	device := s.device
	ctx := s.ctx
	s.device = nil
	s.ctx = nil
	s.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	if ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
	}
	return nil
}

// resolvePointer re-enumerates devices to find the malgo ID pointer for
// the opened device. Returns nil for the system default.
func (s *MalgoSource) resolvePointer() unsafe.Pointer {
	direction := malgo.Capture
	if s.loopback {
		direction = malgo.Playback
	}
	infos, err := s.ctx.Devices(direction)
	if err != nil {
		return nil
	}
	for i := range infos {
		if decodeDeviceID(infos[i].ID.String()) == s.deviceID {
			return infos[i].ID.Pointer()
		}
	}
	return nil
}

// decodeF32Mono converts interleaved little-endian float32 PCM into mono
// float64 samples by averaging the channels.
func decodeF32Mono(data []byte, channels int) []float64 {
	if channels <= 0 {
		return nil
	}
	frameBytes := 4 * channels
	frames := len(data) / frameBytes
	if frames == 0 {
		return nil
	}
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		base := f * frameBytes
		for c := 0; c < channels; c++ {
			bits := binary.LittleEndian.Uint32(data[base+4*c:])
			sum += float64(math.Float32frombits(bits))
		}
		out[f] = sum / float64(channels)
	}
	return out
}
