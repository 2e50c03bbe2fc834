package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dronebridge/pkg/config"
	"dronebridge/pkg/protocol"
	"dronebridge/pkg/sim"
	"dronebridge/pkg/telemetry"
	"dronebridge/pkg/transport"
)

func newEmitCmd(flags *globalFlags, stderr io.Writer) *cobra.Command {
	var (
		dest     string
		sysID    uint8
		compID   uint8
		seed     int64
		interval string
	)

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Fly the simulator and send its telemetry as UDP frames",
		Long: `Runs the flight simulator locally, encodes every event it produces as a
binary frame and sends it to a bridge running with --real.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Sim.Seed = seed
			}
			if cmd.Flags().Changed("interval") {
				cfg.Sim.Interval = interval
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(cfg.Log, stderr)
			if err != nil {
				return err
			}

			s, err := sim.New(sim.Config{
				Interval:     config.Duration(cfg.Sim.Interval),
				RestartDelay: config.Duration(cfg.Sim.RestartDelay),
				Seed:         cfg.Sim.Seed,
			}, log.WithField("component", "sim"))
			if err != nil {
				return err
			}
			sender, err := transport.NewSender(dest)
			if err != nil {
				return err
			}
			defer sender.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e := newFrameEmitter(sender, protocol.Header{SystemID: sysID, ComponentID: compID}, log.WithField("component", "emit"))
			return e.run(ctx, s)
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "127.0.0.1:14551", "Bridge UDP address")
	cmd.Flags().Uint8Var(&sysID, "sysid", 1, "System id written into frames")
	cmd.Flags().Uint8Var(&compID, "compid", 1, "Component id written into frames")
	cmd.Flags().Int64Var(&seed, "seed", config.Default().Sim.Seed, "Simulator random seed")
	cmd.Flags().StringVar(&interval, "interval", config.Default().Sim.Interval, "Simulator tick")
	return cmd
}

type frameWriter interface {
	Send(frame []byte) error
}

// frameEmitter turns simulator events into frames. It is driven from the
// simulator's goroutine only.
type frameEmitter struct {
	out    frameWriter
	header protocol.Header
	logger logrus.FieldLogger

	sent    uint64
	skipped uint64
	failed  uint64
}

func newFrameEmitter(out frameWriter, header protocol.Header, logger logrus.FieldLogger) *frameEmitter {
	return &frameEmitter{out: out, header: header, logger: logger}
}

// Broadcast encodes ev and sends it. Events with no frame form, like
// flight time, are skipped.
func (e *frameEmitter) Broadcast(ev telemetry.Event) {
	msg, ok := telemetry.ToMessage(ev)
	if !ok {
		e.skipped++
		return
	}
	frame, err := protocol.Encode(e.header, msg)
	if err != nil {
		e.failed++
		e.logger.WithError(err).WithField("type", ev.Kind()).Debug("encode frame")
		return
	}
	e.header.Seq++
	if err := e.out.Send(frame); err != nil {
		e.failed++
		e.logger.WithError(err).Debug("send frame")
		return
	}
	e.sent++
}

func (e *frameEmitter) run(ctx context.Context, s *sim.Simulator) error {
	for _, ev := range s.MissionEvents() {
		e.Broadcast(ev)
	}
	err := s.Run(ctx, e)
	e.logger.WithFields(logrus.Fields{
		"sent":    humanize.Comma(int64(e.sent)),
		"skipped": humanize.Comma(int64(e.skipped)),
		"failed":  humanize.Comma(int64(e.failed)),
	}).Info("emitter stopped")
	return err
}
