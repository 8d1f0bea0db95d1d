package media

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen1nya/WinMediaSessionProvider/cache"
	"github.com/gen1nya/WinMediaSessionProvider/model"
)

type fakeSubscription struct {
	closed bool
	mu     sync.Mutex
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeProvider struct {
	mu      sync.Mutex
	session Session
	subs    []*fakeSubscription
	cbs     Callbacks
}

func (p *fakeProvider) CurrentState() (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

func (p *fakeProvider) Subscribe(cbs Callbacks) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := &fakeSubscription{}
	p.subs = append(p.subs, sub)
	p.cbs = cbs
	return sub, nil
}

func (p *fakeProvider) set(session Session) {
	p.mu.Lock()
	p.session = session
	p.mu.Unlock()
}

type publishRecorder struct {
	mu     sync.Mutex
	states []model.MediaState
}

func (r *publishRecorder) record(state model.MediaState) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
}

func (r *publishRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *publishRecorder) last() model.MediaState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func newTestCoalescer(p Provider) (*Coalescer, *cache.StateCache, *publishRecorder) {
	states := cache.NewStateCache()
	rec := &publishRecorder{}
	return NewCoalescer(p, states, rec.record), states, rec
}

func TestCoalescerFirstStateIsBroadcast(t *testing.T) {
	p := &fakeProvider{session: Session{Title: "Song", Artist: "Artist", Status: model.StatusPlaying}}
	c, states, rec := newTestCoalescer(p)

	require.NoError(t, c.Run())
	defer c.Close()

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "Song", rec.last().Title)
	require.NotNil(t, states.Get())
	assert.Equal(t, "Song", states.Get().Title)
}

func TestCoalescerSuppressesIdenticalStates(t *testing.T) {
	p := &fakeProvider{session: Session{Title: "Song", Status: model.StatusPlaying, Position: 12.5}}
	c, _, rec := newTestCoalescer(p)

	require.NoError(t, c.Run())
	defer c.Close()

	// Two identical upstream notifications yield exactly one broadcast.
	c.Refresh()
	c.Refresh()
	assert.Equal(t, 1, rec.count())
}

func TestCoalescerSubHundredthPositionIsOneBroadcast(t *testing.T) {
	p := &fakeProvider{session: Session{Title: "Song", Status: model.StatusPlaying, Position: 10.001, Duration: 180}}
	c, _, rec := newTestCoalescer(p)

	require.NoError(t, c.Run())
	defer c.Close()

	// Timeline moved by less than a hundredth: same rounded value.
	p.set(Session{Title: "Song", Status: model.StatusPlaying, Position: 10.004, Duration: 180})
	c.Refresh()

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 10.0, rec.last().Position)

	// Crossing the hundredth boundary is a real change.
	p.set(Session{Title: "Song", Status: model.StatusPlaying, Position: 10.011, Duration: 180})
	c.Refresh()
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 10.01, rec.last().Position)
}

func TestCoalescerBroadcastsRealChanges(t *testing.T) {
	p := &fakeProvider{session: Session{Title: "One", Status: model.StatusPlaying}}
	c, _, rec := newTestCoalescer(p)

	require.NoError(t, c.Run())
	defer c.Close()

	p.set(Session{Title: "One", Status: model.StatusPaused})
	c.Refresh()
	p.set(Session{Title: "Two", Status: model.StatusPaused})
	c.Refresh()

	assert.Equal(t, 3, rec.count())
	assert.Equal(t, "Two", rec.last().Title)
	assert.Equal(t, model.StatusPaused, rec.last().Status)
}

func TestCoalescerConcurrentNotificationsBroadcastOnce(t *testing.T) {
	p := &fakeProvider{session: Session{Title: "Track 0", Status: model.StatusPlaying}}
	c, _, rec := newTestCoalescer(p)

	require.NoError(t, c.Run())
	defer c.Close()

	// The provider fires callbacks from arbitrary goroutines. However
	// many of them overlap for one logical change, exactly one broadcast
	// may come out.
	for i := 1; i <= 200; i++ {
		p.set(Session{Title: fmt.Sprintf("Track %d", i), Status: model.StatusPlaying})

		const overlapping = 8
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(overlapping)
		for j := 0; j < overlapping; j++ {
			go func() {
				defer wg.Done()
				<-start
				c.Refresh()
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, i+1, rec.count(), "one logical state change broadcast more than once")
	}
}

func TestCoalescerSessionSwitchResubscribes(t *testing.T) {
	p := &fakeProvider{session: Session{Title: "One", Status: model.StatusPlaying}}
	c, _, _ := newTestCoalescer(p)

	require.NoError(t, c.Run())
	defer c.Close()

	p.mu.Lock()
	first := p.subs[0]
	onSessionChanged := p.cbs.OnSessionChanged
	p.mu.Unlock()

	onSessionChanged()

	p.mu.Lock()
	subCount := len(p.subs)
	p.mu.Unlock()
	assert.Equal(t, 2, subCount, "session switch must open a new subscription")
	assert.True(t, first.isClosed(), "the stale subscription must be closed first")
}

func TestCoalescerSwallowsBrokenArtwork(t *testing.T) {
	p := &fakeProvider{session: Session{
		Title:   "Song",
		Status:  model.StatusPlaying,
		Artwork: []byte("definitely not an image"),
	}}
	c, _, rec := newTestCoalescer(p)

	require.NoError(t, c.Run())
	defer c.Close()

	require.Equal(t, 1, rec.count(), "broken artwork must not cost the broadcast")
	assert.Nil(t, rec.last().AlbumArtBase64)
}

func TestCoalescerCloseDetachesSubscription(t *testing.T) {
	p := &fakeProvider{}
	c, _, _ := newTestCoalescer(p)
	require.NoError(t, c.Run())
	c.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.True(t, p.subs[0].isClosed())
}
