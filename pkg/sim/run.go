package sim

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"dronebridge/pkg/telemetry"
)

// Run drives the simulator on its tick until ctx is cancelled, broadcasting
// every event it produces. After touchdown a single restart timer is armed;
// cancellation stops both the ticker and any pending restart.
func (s *Simulator) Run(ctx context.Context, out telemetry.Broadcaster) error {
	s.logger.WithFields(logrus.Fields{
		"waypoints": len(s.route),
		"route":     humanize.SIWithDigits(RouteLength(s.route), 1, "m"),
		"interval":  s.interval,
	}).Info("simulator started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var (
		restart  *time.Timer
		restartC <-chan time.Time
		missions int
	)
	defer func() {
		if restart != nil {
			restart.Stop()
		}
	}()

	publish := func(events []telemetry.Event) {
		for _, ev := range events {
			out.Broadcast(ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.WithField("missions", humanize.Comma(int64(missions))).Info("simulator stopped")
			return nil

		case <-ticker.C:
			wasLanded := s.landed
			publish(s.Step())
			if s.landed && !wasLanded && restartC == nil {
				missions++
				restart = time.NewTimer(s.restartDelay)
				restartC = restart.C
				s.logger.WithField("delay", s.restartDelay).Debug("landed, restart scheduled")
			}

		case <-restartC:
			restart, restartC = nil, nil
			if events, ok := s.Restart(); ok {
				publish(events)
				s.logger.Debug("mission restarted")
			}
		}
	}
}
