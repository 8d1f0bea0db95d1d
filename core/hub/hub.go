package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gen1nya/WinMediaSessionProvider/cache"
	"github.com/gen1nya/WinMediaSessionProvider/logger"
	"github.com/gen1nya/WinMediaSessionProvider/model"
)

// ErrHubClosed is returned by Accept once shutdown has begun.
var ErrHubClosed = errors.New("hub is shut down")

// Hub fans one ordered stream of outgoing messages out to any number of
// independent consumers. Both producers (spectrum notifier and metadata
// coalescer) funnel through a single FIFO queue, so every consumer
// observes metadata and spectrum frames in the same relative order.
// Registry mutation happens under a short lock that is never held during
// I/O; a consumer that cannot take a message within the send timeout is
// pruned without delaying the others beyond that timeout.
type Hub struct {
	states      *cache.StateCache
	sendTimeout time.Duration

	mu      sync.RWMutex
	clients map[*Client]bool

	queueMu sync.RWMutex
	queue   chan []byte
	closed  bool

	drained chan struct{}
}

// NewHub creates a hub with the given queue capacity and per-consumer
// send timeout. states supplies the last-known media state replayed to
// new joiners.
func NewHub(states *cache.StateCache, queueSize int, sendTimeout time.Duration) *Hub {
	return &Hub{
		states:      states,
		sendTimeout: sendTimeout,
		clients:     make(map[*Client]bool),
		queue:       make(chan []byte, queueSize),
		drained:     make(chan struct{}),
	}
}

// Run drains the queue and performs the fan-out, preserving publish
// order. It returns once Shutdown has closed the queue and the remaining
// messages are delivered.
func (h *Hub) Run() {
	defer close(h.drained)
	for message := range h.queue {
		h.fanOut(message)
	}
}

// Accept registers a consumer connection with the last-known media state
// queued as its first message. The accept path never blocks.
func (h *Hub) Accept(conn Conn) error {
	client := newClient(h, conn)

	// Seed the replayed state before the consumer becomes visible to the
	// fan-out: its first message is always the current metadata snapshot
	// and no broadcast can slot in ahead of it. The send buffer has no
	// other writer yet, so this never blocks.
	if state := h.states.Get(); state != nil {
		if data, err := model.NewMetadataMessage(*state).Encode(); err == nil {
			client.send <- data
		} else {
			logger.Warn("failed to encode replay state", logger.ErrorField(err))
		}
	}
	client.setState(StateOpen)

	// The registry insert happens under queueMu so it is atomic with
	// Shutdown flipping closed: a racing shutdown either rejects this
	// consumer here or sees it in the registry and tears it down.
	h.queueMu.RLock()
	if h.closed {
		h.queueMu.RUnlock()
		_ = conn.Close()
		return ErrHubClosed
	}
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.queueMu.RUnlock()

	go client.writePump(h.sendTimeout)
	go client.readPump()

	logger.Info("consumer connected",
		logger.String("consumer", client.ID),
		logger.Int("consumers", count))
	return nil
}

// Publish enqueues a message for broadcast. It never blocks a producer:
// when the queue is full the message is dropped with a log line.
func (h *Hub) Publish(msg model.OutgoingMessage) {
	data, err := msg.Encode()
	if err != nil {
		logger.Warn("dropping unencodable message",
			logger.String("type", string(msg.Type)),
			logger.ErrorField(err))
		return
	}

	h.queueMu.RLock()
	defer h.queueMu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.queue <- data:
	default:
		logger.Warn("broadcast queue full, dropping message",
			logger.String("type", string(msg.Type)))
	}
}

// PublishState enqueues a metadata broadcast.
func (h *Hub) PublishState(state model.MediaState) {
	h.Publish(model.NewMetadataMessage(state))
}

// PublishSpectrum enqueues a spectrum frame broadcast.
func (h *Hub) PublishSpectrum(frame []float64) {
	h.Publish(model.NewSpectrumMessage(frame))
}

// ClientCount returns the number of registered consumers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// fanOut delivers one message to every open consumer. Two phases: the
// registry is snapshotted under the lock, I/O happens outside it, and
// consumers that timed out are pruned under the lock afterwards.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.State() == StateOpen {
			snapshot = append(snapshot, client)
		}
	}
	h.mu.RUnlock()

	var evicted []*Client
	for _, client := range snapshot {
		if !h.offer(client, message) {
			evicted = append(evicted, client)
		}
	}

	for _, client := range evicted {
		logger.Warn("evicting unresponsive consumer", logger.String("consumer", client.ID))
		h.drop(client)
	}
}

// offer hands a message to the client's write pump, waiting at most the
// send timeout for buffer space.
func (h *Hub) offer(client *Client, message []byte) bool {
	if client.State() >= StateClosing {
		return false
	}
	timer := time.NewTimer(h.sendTimeout)
	defer timer.Stop()

	// The send channel is closed by eviction/shutdown only after the
	// client leaves the registry, but a racing drop is still possible;
	// sending to a closed channel must not take the hub down.
	defer func() {
		_ = recover()
	}()

	select {
	case client.send <- message:
		return true
	case <-client.done:
		return false
	case <-timer.C:
		return false
	}
}

// drop removes a consumer from the registry and tears it down.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if known {
		client.forceClose()
		logger.Info("consumer disconnected", logger.String("consumer", client.ID))
	}
}

// Shutdown stops accepting and publishing, waits for the queue to drain,
// then closes every consumer gracefully within the deadline. Connections
// that do not finish in time are force-terminated.
func (h *Hub) Shutdown(deadline time.Duration) {
	h.queueMu.Lock()
	if h.closed {
		h.queueMu.Unlock()
		return
	}
	h.closed = true
	close(h.queue)
	h.queueMu.Unlock()

	// Let the drain loop flush whatever was already queued.
	<-h.drained

	h.mu.Lock()
	remaining := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		remaining = append(remaining, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for _, client := range remaining {
		client.beginClose()
	}

	timeout := time.After(deadline)
	expired := false
	for _, client := range remaining {
		if expired {
			client.forceClose()
			continue
		}
		select {
		case <-client.done:
		case <-timeout:
			expired = true
			logger.Warn("force closing consumer on shutdown deadline",
				logger.String("consumer", client.ID))
			client.forceClose()
		}
	}
	logger.Info("hub shut down", logger.Int("consumers", len(remaining)))
}
