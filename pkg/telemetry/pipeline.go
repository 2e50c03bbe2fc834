package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"dronebridge/pkg/protocol"
)

// Broadcaster receives semantic events for fan-out.
type Broadcaster interface {
	Broadcast(Event)
}

// BroadcastFunc adapts a function to Broadcaster.
type BroadcastFunc func(Event)

func (f BroadcastFunc) Broadcast(ev Event) { f(ev) }

// Source produces events until ctx is cancelled. Exactly one source feeds a
// bridge at a time.
type Source interface {
	Run(ctx context.Context, out Broadcaster) error
}

// Stats counts frames seen by a Pipeline.
type Stats struct {
	Received  uint64
	Decoded   uint64
	Ignored   uint64
	Malformed uint64
}

// Pipeline decodes frames, maps them to events and hands them to a
// Broadcaster. A bad frame is counted and dropped, never propagated.
type Pipeline struct {
	out    Broadcaster
	logger logrus.FieldLogger

	received  atomic.Uint64
	decoded   atomic.Uint64
	ignored   atomic.Uint64
	malformed atomic.Uint64
}

func NewPipeline(out Broadcaster, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Pipeline{out: out, logger: logger}
}

// HandleFrame processes one datagram.
func (p *Pipeline) HandleFrame(frame []byte) {
	p.received.Add(1)

	ev, ok, err := p.mapFrame(frame)
	switch {
	case err != nil:
		p.malformed.Add(1)
		p.logger.WithError(err).Debug("dropping frame")
	case !ok:
		p.ignored.Add(1)
	default:
		p.decoded.Add(1)
		p.out.Broadcast(ev)
	}
}

func (p *Pipeline) mapFrame(frame []byte) (ev Event, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev, ok, err = nil, false, fmt.Errorf("decode panic: %v", r)
		}
	}()

	msg, err := protocol.Decode(frame)
	if err != nil {
		return nil, false, err
	}
	ev, ok = FromMessage(msg)
	return ev, ok, nil
}

// Stats returns a point-in-time copy of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:  p.received.Load(),
		Decoded:   p.decoded.Load(),
		Ignored:   p.ignored.Load(),
		Malformed: p.malformed.Load(),
	}
}
