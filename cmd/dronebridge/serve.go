package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dronebridge/pkg/bridge/ws"
	"dronebridge/pkg/config"
	"dronebridge/pkg/engine"
	"dronebridge/pkg/logger"
	"dronebridge/pkg/sim"
	"dronebridge/pkg/telemetry"
	"dronebridge/pkg/transport"
)

func newServeCmd(flags *globalFlags, stderr io.Writer) *cobra.Command {
	var (
		useUDP bool
		udp    string
		wsAddr string
		record string
		seed   int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("real") {
				cfg.Source.Simulated = !useUDP
			}
			if cmd.Flags().Changed("udp") {
				cfg.UDP.Addr = udp
			}
			if cmd.Flags().Changed("ws") {
				cfg.WS.Addr = wsAddr
			}
			if cmd.Flags().Changed("record") {
				cfg.Record = record
			}
			if cmd.Flags().Changed("seed") {
				cfg.Sim.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := newLogger(cfg.Log, stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log)
		},
	}

	def := config.Default()
	cmd.Flags().BoolVar(&useUDP, "real", false, "Listen for UDP frames instead of simulating")
	cmd.Flags().StringVar(&udp, "udp", def.UDP.Addr, "UDP listen address")
	cmd.Flags().StringVar(&wsAddr, "ws", def.WS.Addr, "Websocket listen address")
	cmd.Flags().StringVar(&record, "record", "", "Record every event to a JSONL file")
	cmd.Flags().Int64Var(&seed, "seed", def.Sim.Seed, "Simulator random seed")
	return cmd
}

// bridge is one wired instance: a hub, its websocket front and exactly one
// telemetry source.
type bridge struct {
	hub    *engine.Hub
	server *ws.Server
	source telemetry.Source
	name   string
}

func newBridge(cfg config.Config, log *logrus.Logger) (*bridge, error) {
	b := &bridge{}
	hubOpts := []engine.Option{
		engine.WithBroadcastBuffer(cfg.Hub.Buffer),
		engine.WithTapBuffer(cfg.Hub.TapBuffer),
		engine.WithLogger(log.WithField("component", "hub")),
	}

	if cfg.Source.Simulated {
		s, err := sim.New(sim.Config{
			Interval:     config.Duration(cfg.Sim.Interval),
			RestartDelay: config.Duration(cfg.Sim.RestartDelay),
			Seed:         cfg.Sim.Seed,
		}, log.WithField("component", "sim"))
		if err != nil {
			return nil, fmt.Errorf("simulator: %w", err)
		}
		b.source, b.name = s, "sim"
		hubOpts = append(hubOpts, engine.WithGreeting(s.MissionEvents))
	} else {
		l, err := transport.ListenUDP(cfg.UDP.Addr,
			transport.WithBufferSize(cfg.UDP.BufferSize),
			transport.WithReadTimeout(config.Duration(cfg.UDP.ReadTimeout)),
			transport.WithErrorHandler(func(err error) {
				log.WithField("component", "udp").WithError(err).Debug("read error")
			}),
		)
		if err != nil {
			return nil, err
		}
		b.source, b.name = transport.NewDatagramSource(l, log.WithField("component", "udp")), "udp"
	}

	b.hub = engine.NewHub(hubOpts...)
	b.server = ws.NewServer(ws.Config{
		Addr:         cfg.WS.Addr,
		Path:         cfg.WS.Path,
		SendBuf:      cfg.WS.SendBuf,
		WriteTimeout: config.Duration(cfg.WS.WriteTimeout),
		PingInterval: config.Duration(cfg.WS.PingInterval),
		Source:       b.name,
	}, b.hub, log.WithField("component", "ws"))
	if err := b.server.Listen(); err != nil {
		b.closeSource()
		return nil, err
	}
	return b, nil
}

func (b *bridge) closeSource() {
	if ds, ok := b.source.(*transport.DatagramSource); ok {
		_ = ds.Close()
	}
}

// runServe runs the bridge until ctx is cancelled or a component fails.
func runServe(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	var record io.Writer
	if cfg.Record != "" {
		f, err := os.Create(cfg.Record)
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer f.Close()
		record = f
	}

	b, err := newBridge(cfg, log)
	if err != nil {
		return err
	}
	return b.run(ctx, cfg, record, log)
}

func (b *bridge) run(ctx context.Context, cfg config.Config, record io.Writer, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.WithFields(logrus.Fields{
		"version": Version,
		"source":  b.name,
		"ws":      b.server.Addr().String(),
		"udp":     cfg.UDP.Addr,
	}).Info("starting dronebridge")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.hub.Run(ctx)
	}()

	var recorder *logger.JSONLWriter
	if record != nil {
		recorder = logger.NewJSONLWriter(record)
		tap := b.hub.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Consume(ctx, tap); err != nil {
				log.WithError(err).Error("recorder stopped")
			}
		}()
	}

	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- b.server.Serve(ctx)
	}()
	go func() {
		defer wg.Done()
		errCh <- b.source.Run(ctx, b.hub)
	}()

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-errCh:
	}
	cancel()
	wg.Wait()

	st := b.hub.Stats()
	fields := logrus.Fields{
		"broadcasts": humanize.Comma(int64(st.Broadcasts)),
		"dropped":    humanize.Comma(int64(st.Dropped)),
		"skipped":    humanize.Comma(int64(st.Skipped)),
		"joins":      humanize.Comma(int64(st.Joins)),
		"leaves":     humanize.Comma(int64(st.Leaves)),
	}
	if recorder != nil {
		fields["recorded"] = humanize.Comma(int64(recorder.Written()))
	}
	log.WithFields(fields).Info("dronebridge stopped")
	return firstErr
}
