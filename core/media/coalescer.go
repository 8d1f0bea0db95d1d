package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"sync"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/gen1nya/WinMediaSessionProvider/cache"
	"github.com/gen1nya/WinMediaSessionProvider/logger"
	"github.com/gen1nya/WinMediaSessionProvider/model"
)

// Coalescer turns irregular provider notifications into deduplicated
// metadata broadcasts. Every notification rebuilds the canonical
// MediaState; a state identical to the last broadcast one is suppressed
// entirely (no publish, no cache write).
type Coalescer struct {
	provider Provider
	states   *cache.StateCache
	publish  func(model.MediaState)

	mu  sync.Mutex
	sub Subscription

	// stateMu serializes the compare-cache-publish sequence in Refresh.
	// Provider callbacks fire from arbitrary goroutines; without it two
	// overlapping notifications could both pass the Equal check, or the
	// cache write and the publish of different states could invert.
	stateMu sync.Mutex
}

// NewCoalescer wires a provider to the shared state cache and a publish
// sink (the hub's metadata publish).
func NewCoalescer(provider Provider, states *cache.StateCache, publish func(model.MediaState)) *Coalescer {
	return &Coalescer{provider: provider, states: states, publish: publish}
}

// Run subscribes to provider notifications and emits the initial state.
func (c *Coalescer) Run() error {
	if err := c.subscribe(); err != nil {
		return err
	}
	c.Refresh()
	return nil
}

// Close detaches the current subscription.
func (c *Coalescer) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		if err := sub.Close(); err != nil {
			logger.Warn("failed to close media subscription", logger.ErrorField(err))
		}
	}
}

func (c *Coalescer) subscribe() error {
	sub, err := c.provider.Subscribe(Callbacks{
		OnPropertiesChanged: c.Refresh,
		OnPlaybackChanged:   c.Refresh,
		OnTimelineChanged:   c.Refresh,
		OnSessionChanged:    c.onSessionChanged,
	})
	if err != nil {
		return fmt.Errorf("subscribe to media provider: %w", err)
	}
	c.mu.Lock()
	old := c.sub
	c.sub = sub
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// onSessionChanged replaces the subscription set before re-reading state,
// so the stale session cannot keep delivering callbacks.
func (c *Coalescer) onSessionChanged() {
	c.Close()
	if err := c.subscribe(); err != nil {
		logger.Warn("resubscribe after session switch failed", logger.ErrorField(err))
		return
	}
	c.Refresh()
}

// Refresh rebuilds the canonical state from the provider and broadcasts
// it unless it equals the previously broadcast one.
func (c *Coalescer) Refresh() {
	session, err := c.provider.CurrentState()
	if err != nil {
		logger.Debug("media provider state unavailable", logger.ErrorField(err))
		return
	}
	state := buildState(session)

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if last := c.states.Get(); last != nil && state.Equal(*last) {
		return
	}
	c.states.Set(state)
	c.publish(state)
}

// buildState produces the canonical MediaState: timeline values rounded
// to hundredths, artwork re-encoded best-effort.
func buildState(s Session) model.MediaState {
	return model.MediaState{
		Title:          s.Title,
		Artist:         s.Artist,
		AlbumTitle:     s.AlbumTitle,
		AlbumArtBase64: encodeArtwork(s.Artwork),
		Status:         s.Status,
		Duration:       model.RoundSeconds(s.Duration),
		Position:       model.RoundSeconds(s.Position),
	}
}

// encodeArtwork re-encodes the session artwork to PNG and base64. Any
// failure is swallowed: a broken thumbnail must never cost a metadata
// broadcast.
func encodeArtwork(raw []byte) *string {
	if len(raw) == 0 {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		logger.Debug("album art decode failed", logger.ErrorField(err))
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logger.Debug("album art encode failed", logger.ErrorField(err))
		return nil
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return &encoded
}
