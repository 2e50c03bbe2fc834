package engine

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"dronebridge/pkg/telemetry"
)

// Subscriber is one downstream connection. TrySend must not block; it
// reports false when the connection cannot take the message right now.
type Subscriber interface {
	ID() string
	TrySend(msg []byte) bool
	Close() error
}

// Stats counts hub activity.
type Stats struct {
	Broadcasts uint64
	Dropped    uint64
	Skipped    uint64
	Joins      uint64
	Leaves     uint64
}

// Hub owns the subscriber set. Membership and fan-out only change inside
// Run, so callers on any goroutine talk to it through channels.
type Hub struct {
	broadcast  chan telemetry.Event
	register   chan Subscriber
	unregister chan Subscriber
	count      chan chan int
	tapAdd     chan chan telemetry.Event
	tapRemove  chan (<-chan telemetry.Event)
	done       chan struct{}

	clients  map[Subscriber]struct{}
	taps     map[<-chan telemetry.Event]chan telemetry.Event
	tapBuf   int
	greeting func() []telemetry.Event
	logger   logrus.FieldLogger

	broadcasts atomic.Uint64
	dropped    atomic.Uint64
	skipped    atomic.Uint64
	joins      atomic.Uint64
	leaves     atomic.Uint64
}

type Option func(*Hub)

func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan telemetry.Event, size)
		}
	}
}

func WithTapBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.tapBuf = size
		}
	}
}

// WithGreeting sets events sent to each subscriber right after it joins.
func WithGreeting(fn func() []telemetry.Event) Option {
	return func(h *Hub) {
		h.greeting = fn
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHub(opts ...Option) *Hub {
	discard := logrus.New()
	discard.SetLevel(logrus.PanicLevel)

	h := &Hub{
		broadcast:  make(chan telemetry.Event, 256),
		register:   make(chan Subscriber),
		unregister: make(chan Subscriber),
		count:      make(chan chan int),
		tapAdd:     make(chan chan telemetry.Event),
		tapRemove:  make(chan (<-chan telemetry.Event)),
		done:       make(chan struct{}),
		clients:    make(map[Subscriber]struct{}),
		taps:       make(map[<-chan telemetry.Event]chan telemetry.Event),
		tapBuf:     100,
		logger:     discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves the hub until ctx is cancelled, then closes every subscriber
// and tap.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
				delete(h.clients, c)
			}
			for key, ch := range h.taps {
				close(ch)
				delete(h.taps, key)
			}
			return
		case c := <-h.register:
			h.join(c)
		case c := <-h.unregister:
			h.leave(c)
		case reply := <-h.count:
			reply <- len(h.clients)
		case ch := <-h.tapAdd:
			h.taps[ch] = ch
		case key := <-h.tapRemove:
			if ch, ok := h.taps[key]; ok {
				delete(h.taps, key)
				close(ch)
			}
		case ev := <-h.broadcast:
			h.fanOut(ev)
		}
	}
}

func (h *Hub) join(c Subscriber) {
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	h.joins.Add(1)
	h.logger.WithFields(logrus.Fields{"subscriber": c.ID(), "subscribers": len(h.clients)}).Info("subscriber joined")

	if h.greeting == nil {
		return
	}
	for _, ev := range h.greeting() {
		msg, err := telemetry.Encode(ev)
		if err != nil {
			continue
		}
		if !c.TrySend(msg) {
			h.skipped.Add(1)
		}
	}
}

func (h *Hub) leave(c Subscriber) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.leaves.Add(1)
	h.logger.WithFields(logrus.Fields{"subscriber": c.ID(), "subscribers": len(h.clients)}).Info("subscriber left")
}

func (h *Hub) fanOut(ev telemetry.Event) {
	h.broadcasts.Add(1)
	for _, ch := range h.taps {
		select {
		case ch <- ev:
		default:
		}
	}
	if len(h.clients) == 0 {
		return
	}

	msg, err := telemetry.Encode(ev)
	if err != nil {
		h.logger.WithError(err).WithField("type", ev.Kind()).Warn("encode event")
		return
	}
	for c := range h.clients {
		if !c.TrySend(msg) {
			h.skipped.Add(1)
		}
	}
}

// Join adds c to the broadcast set. Joining twice is a no-op.
func (h *Hub) Join(c Subscriber) {
	select {
	case h.register <- c:
	case <-h.done:
		_ = c.Close()
	}
}

// Leave removes c. Removing an absent subscriber is a no-op.
func (h *Hub) Leave(c Subscriber) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues ev for every subscriber. It never blocks: when the queue
// is full the event is dropped and counted.
func (h *Hub) Broadcast(ev telemetry.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Len returns the current number of subscribers, or 0 once the hub stopped.
func (h *Hub) Len() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Subscribe returns an in-process tap receiving every broadcast event. A tap
// that falls behind misses events.
func (h *Hub) Subscribe() <-chan telemetry.Event {
	ch := make(chan telemetry.Event, h.tapBuf)
	select {
	case h.tapAdd <- ch:
	case <-h.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a tap returned by Subscribe and closes it.
func (h *Hub) Unsubscribe(ch <-chan telemetry.Event) {
	select {
	case h.tapRemove <- ch:
	case <-h.done:
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Stats() Stats {
	return Stats{
		Broadcasts: h.broadcasts.Load(),
		Dropped:    h.dropped.Load(),
		Skipped:    h.skipped.Load(),
		Joins:      h.joins.Load(),
		Leaves:     h.leaves.Load(),
	}
}
