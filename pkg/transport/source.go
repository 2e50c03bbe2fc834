package transport

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"dronebridge/pkg/telemetry"
)

// DatagramSource feeds frames from a bound Listener through the decode
// pipeline. It is the real-vehicle telemetry source.
type DatagramSource struct {
	listener *Listener
	logger   logrus.FieldLogger
	pipeline atomic.Pointer[telemetry.Pipeline]
}

func NewDatagramSource(l *Listener, logger logrus.FieldLogger) *DatagramSource {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}
	return &DatagramSource{listener: l, logger: logger}
}

func (s *DatagramSource) Run(ctx context.Context, out telemetry.Broadcaster) error {
	p := telemetry.NewPipeline(out, s.logger)
	s.pipeline.Store(p)
	s.logger.WithField("addr", s.listener.Addr().String()).Info("listening for telemetry datagrams")

	err := s.listener.Serve(ctx, p.HandleFrame)

	st := p.Stats()
	s.logger.WithFields(logrus.Fields{
		"received":  humanize.Comma(int64(st.Received)),
		"decoded":   humanize.Comma(int64(st.Decoded)),
		"ignored":   humanize.Comma(int64(st.Ignored)),
		"malformed": humanize.Comma(int64(st.Malformed)),
	}).Info("datagram listener stopped")
	return err
}

// Stats reports pipeline counters; zero before Run.
func (s *DatagramSource) Stats() telemetry.Stats {
	p := s.pipeline.Load()
	if p == nil {
		return telemetry.Stats{}
	}
	return p.Stats()
}

// Addr is the bound listener address.
func (s *DatagramSource) Addr() net.Addr {
	return s.listener.Addr()
}

// Close releases the socket of a source that will not be run.
func (s *DatagramSource) Close() error {
	return s.listener.Close()
}
