package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestMediaStateEqual(t *testing.T) {
	base := MediaState{
		Title:      "Голос",
		Artist:     "Artist",
		AlbumTitle: "Album",
		Status:     StatusPlaying,
		Duration:   215.4,
		Position:   12.01,
	}

	tests := []struct {
		name  string
		other MediaState
		want  bool
	}{
		{"identical", base, true},
		{"different title", func() MediaState { s := base; s.Title = "Other"; return s }(), false},
		{"different artist", func() MediaState { s := base; s.Artist = "X"; return s }(), false},
		{"different album", func() MediaState { s := base; s.AlbumTitle = "X"; return s }(), false},
		{"different status", func() MediaState { s := base; s.Status = StatusPaused; return s }(), false},
		{"different duration", func() MediaState { s := base; s.Duration = 1; return s }(), false},
		{"different position", func() MediaState { s := base; s.Position = 12.02; return s }(), false},
		{"art added", func() MediaState { s := base; s.AlbumArtBase64 = strPtr("aGk="); return s }(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Equal(tt.other))
		})
	}
}

func TestMediaStateEqualComparesArtContents(t *testing.T) {
	a := MediaState{AlbumArtBase64: strPtr("aGk=")}
	b := MediaState{AlbumArtBase64: strPtr("aGk=")}
	c := MediaState{AlbumArtBase64: strPtr("bm8=")}

	assert.True(t, a.Equal(b), "same contents behind distinct pointers compare equal")
	assert.False(t, a.Equal(c))
}

func TestRoundSeconds(t *testing.T) {
	assert.Equal(t, 10.0, RoundSeconds(10.001))
	assert.Equal(t, 10.0, RoundSeconds(10.004))
	assert.Equal(t, 10.01, RoundSeconds(10.006))
	assert.Equal(t, 10.01, RoundSeconds(10.011))
	assert.Equal(t, 0.0, RoundSeconds(0))
}
