package model

import "math"

// PlaybackStatus mirrors the system media session playback states.
// The lowercase string form is the wire format.
type PlaybackStatus string

const (
	StatusClosed   PlaybackStatus = "closed"
	StatusOpened   PlaybackStatus = "opened"
	StatusChanging PlaybackStatus = "changing"
	StatusStopped  PlaybackStatus = "stopped"
	StatusPlaying  PlaybackStatus = "playing"
	StatusPaused   PlaybackStatus = "paused"
)

// MediaState is the canonical snapshot of the current media session.
// Duration and Position are seconds rounded to hundredths.
type MediaState struct {
	Title          string         `json:"title"`
	Artist         string         `json:"artist"`
	AlbumTitle     string         `json:"albumTitle"`
	AlbumArtBase64 *string        `json:"albumArtBase64"`
	Status         PlaybackStatus `json:"status"`
	Duration       float64        `json:"duration"`
	Position       float64        `json:"position"`
}

// Equal reports whether two states are identical in every field,
// album art contents included.
func (s MediaState) Equal(o MediaState) bool {
	if s.Title != o.Title || s.Artist != o.Artist || s.AlbumTitle != o.AlbumTitle {
		return false
	}
	if s.Status != o.Status || s.Duration != o.Duration || s.Position != o.Position {
		return false
	}
	if (s.AlbumArtBase64 == nil) != (o.AlbumArtBase64 == nil) {
		return false
	}
	if s.AlbumArtBase64 != nil && *s.AlbumArtBase64 != *o.AlbumArtBase64 {
		return false
	}
	return true
}

// RoundSeconds rounds a timeline value to hundredths of a second.
func RoundSeconds(v float64) float64 {
	return math.Round(v*100) / 100
}
