package capture

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/gen1nya/WinMediaSessionProvider/model"
)

// ErrNoDevice is returned when no capture-capable endpoint is available
// or the requested device cannot be found.
var ErrNoDevice = errors.New("no capture device available")

// ListDevices enumerates active render and capture endpoints. Render
// endpoints are listed too because they can be captured in loopback mode,
// which is the usual source for a spectrum of whatever is playing.
func ListDevices() ([]model.DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	var devices []model.DeviceInfo
	for _, direction := range []malgo.DeviceType{malgo.Playback, malgo.Capture} {
		infos, err := ctx.Devices(direction)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		for _, info := range infos {
			devices = append(devices, model.DeviceInfo{
				ID:        decodeDeviceID(info.ID.String()),
				Label:     info.Name(),
				IsDefault: info.IsDefault == 1,
				Loopback:  direction == malgo.Playback,
			})
		}
	}
	return devices, nil
}

// DefaultDevice resolves the default source: the default render endpoint
// when one exists (loopback), otherwise the default capture endpoint.
func DefaultDevice() (model.DeviceInfo, error) {
	devices, err := ListDevices()
	if err != nil {
		return model.DeviceInfo{}, err
	}
	for _, d := range devices {
		if d.IsDefault && d.Loopback {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.IsDefault {
			return d, nil
		}
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return model.DeviceInfo{}, ErrNoDevice
}

// decodeDeviceID turns a malgo hex device ID into the stable opaque form
// used in the public API. On backends with printable IDs (ALSA and
// friends) the decoded ASCII string is used directly; otherwise the raw
// hex survives as the identifier.
func decodeDeviceID(hexID string) string {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	trimmed := trimNUL(raw)
	if len(trimmed) == 0 || !printable(trimmed) {
		return hexID
	}
	return string(trimmed)
}

func trimNUL(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
