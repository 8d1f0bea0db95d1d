package media

import "github.com/gen1nya/WinMediaSessionProvider/model"

// Session is the raw snapshot a platform media provider materializes from
// the system media transport controls: plain fields, unrounded timeline
// values, raw artwork bytes.
type Session struct {
	Title      string
	Artist     string
	AlbumTitle string
	Artwork    []byte // encoded image bytes, may be nil
	Status     model.PlaybackStatus
	Duration   float64 // seconds, unrounded
	Position   float64 // seconds, unrounded
}

// Callbacks are invoked by the provider when the underlying session
// changes. All callbacks may fire from arbitrary goroutines.
type Callbacks struct {
	OnPropertiesChanged func()
	OnPlaybackChanged   func()
	OnTimelineChanged   func()
	OnSessionChanged    func()
}

// Subscription is an explicit handle for a registered callback set.
// Closing it detaches the callbacks; a session switch closes the old
// handle before opening a new one so a stale session cannot deliver
// duplicates.
type Subscription interface {
	Close() error
}

// Provider is the platform collaborator delivering media session data.
type Provider interface {
	CurrentState() (Session, error)
	Subscribe(Callbacks) (Subscription, error)
}
