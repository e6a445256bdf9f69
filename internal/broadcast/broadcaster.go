package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"mcpdeck/internal/api"
	"mcpdeck/internal/config"
	"mcpdeck/pkg/logging"

	"github.com/google/uuid"
)

// inputBuffer bounds the publish channel between producers and the
// dispatch loop.
const inputBuffer = 1024

// Broadcaster fans status events out to subscribed sessions. A single
// dispatch loop preserves publication order; each session gets a bounded
// queue so one slow consumer never blocks producers or other sessions.
//
// A session whose queue overflows is cleared and handed a fresh snapshot:
// it loses intermediate events but converges on current state. Sessions
// that also fail to take heartbeats are evicted.
type Broadcaster struct {
	snapshot func() []*api.Server
	cfg      config.BroadcastConfig
	events   chan api.StatusEvent

	// forceResync is set when the input channel overflows, meaning an
	// event was lost before fan-out. Every session resyncs on the next
	// dispatch.
	forceResync atomic.Bool

	mu       sync.Mutex
	sessions map[string]*Session
}

// Session is one subscriber's view of the event stream. Events() yields the
// snapshot first, then live events; the channel closes on eviction,
// unsubscribe or broadcaster shutdown.
type Session struct {
	ID    string
	queue chan api.StatusEvent

	// missed counts consecutive undeliverable heartbeats. Owned by the
	// dispatch loop under the broadcaster mutex.
	missed int

	once sync.Once
}

// Events returns the session's receive channel.
func (s *Session) Events() <-chan api.StatusEvent { return s.queue }

func (s *Session) close() {
	s.once.Do(func() { close(s.queue) })
}

// offer enqueues without blocking.
func (s *Session) offer(event api.StatusEvent) bool {
	select {
	case s.queue <- event:
		return true
	default:
		return false
	}
}

// drain empties the queue.
func (s *Session) drain() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// New creates a Broadcaster. snapshot must return a consistent copy of all
// servers; the registry's Snapshot method satisfies this.
func New(snapshot func() []*api.Server, cfg config.BroadcastConfig) *Broadcaster {
	return &Broadcaster{
		snapshot: snapshot,
		cfg:      cfg,
		events:   make(chan api.StatusEvent, inputBuffer),
		sessions: make(map[string]*Session),
	}
}

// Publish implements api.EventSink. It never blocks: when the input buffer
// is full the event is dropped and every session is scheduled for a
// snapshot resync, which restores convergence.
func (b *Broadcaster) Publish(event api.StatusEvent) {
	eventsPublished.WithLabelValues(string(event.Type)).Inc()
	select {
	case b.events <- event:
	default:
		eventsDropped.Inc()
		b.forceResync.Store(true)
	}
}

// Subscribe registers a new session. The snapshot of current state is
// already queued when Subscribe returns.
func (b *Broadcaster) Subscribe() *Session {
	sess := &Session{
		ID:    uuid.NewString(),
		queue: make(chan api.StatusEvent, b.cfg.SessionQueueSize),
	}

	// Register and snapshot under the dispatch mutex. Any event fanned out
	// after the snapshot read reaches the session's queue, so no transition
	// can fall into the gap between snapshot and registration.
	b.mu.Lock()
	b.sessions[sess.ID] = sess
	sess.offer(b.snapshotEvent())
	count := len(b.sessions)
	b.mu.Unlock()

	sessionsActive.Set(float64(count))
	logging.Debug("Broadcast", "Session %s subscribed (%d active)", sess.ID, count)
	return sess
}

// Unsubscribe removes a session and closes its channel. Safe to call for
// sessions already evicted.
func (b *Broadcaster) Unsubscribe(sess *Session) {
	b.mu.Lock()
	_, exists := b.sessions[sess.ID]
	delete(b.sessions, sess.ID)
	count := len(b.sessions)
	if exists {
		sess.close()
	}
	b.mu.Unlock()

	sessionsActive.Set(float64(count))
}

// SessionCount returns the number of active sessions.
func (b *Broadcaster) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Run dispatches events and heartbeats until the context is cancelled,
// then closes every session.
func (b *Broadcaster) Run(ctx context.Context) {
	interval := time.Duration(b.cfg.HeartbeatIntervalMs) * time.Millisecond
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	logging.Info("Broadcast", "Dispatching with %s heartbeat", interval)
	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return

		case event := <-b.events:
			b.fanOut(event)

		case <-heartbeat.C:
			b.heartbeat()
		}
	}
}

// fanOut delivers one event to every session, resyncing any session whose
// queue is full.
func (b *Broadcaster) fanOut(event api.StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.forceResync.Swap(false) {
		for _, sess := range b.sessions {
			b.resyncLocked(sess)
		}
	}

	for _, sess := range b.sessions {
		if sess.offer(event) {
			eventsDelivered.Inc()
		} else {
			b.resyncLocked(sess)
		}
	}
}

// resyncLocked clears a session's backlog and queues a fresh snapshot.
// Callers must hold b.mu.
func (b *Broadcaster) resyncLocked(sess *Session) {
	sess.drain()
	sess.offer(b.snapshotEvent())
	resyncsForced.Inc()
	logging.Debug("Broadcast", "Session %s resynced after overflow", sess.ID)
}

// heartbeat offers the liveness event to every session and evicts sessions
// that keep failing to take it.
func (b *Broadcaster) heartbeat() {
	event := api.StatusEvent{Type: api.EventHeartbeat, Timestamp: time.Now()}

	b.mu.Lock()
	var evicted []*Session
	for id, sess := range b.sessions {
		if sess.offer(event) {
			sess.missed = 0
			continue
		}
		sess.missed++
		if sess.missed >= b.cfg.MissedHeartbeatLimit {
			delete(b.sessions, id)
			sess.close()
			evicted = append(evicted, sess)
		}
	}
	count := len(b.sessions)
	b.mu.Unlock()

	sessionsActive.Set(float64(count))
	for _, sess := range evicted {
		sessionsEvicted.Inc()
		logging.Info("Broadcast", "Evicted session %s after %d missed heartbeats", sess.ID, b.cfg.MissedHeartbeatLimit)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sess := range b.sessions {
		delete(b.sessions, id)
		sess.close()
	}
	sessionsActive.Set(0)
}

func (b *Broadcaster) snapshotEvent() api.StatusEvent {
	return api.StatusEvent{
		Type:      api.EventSnapshot,
		Servers:   b.snapshot(),
		Timestamp: time.Now(),
	}
}
