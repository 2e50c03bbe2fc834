package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dronebridge/pkg/config"
)

// Set by build flags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type globalFlags struct {
	configPath string
	verbose    bool
	logFormat  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout io.Writer, stderr io.Writer) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "dronebridge",
		Short: "Drone telemetry bridge",
		Long: `Relays autopilot telemetry to websocket subscribers.

Frames arrive as UDP datagrams (or come from the built-in flight simulator),
are decoded into typed events and broadcast as JSON to every connected client.

Example usage:
  dronebridge serve                 # simulated vehicle on ws://0.0.0.0:8081/
  dronebridge serve --real          # listen for frames on udp 0.0.0.0:14551
  dronebridge emit --dest 127.0.0.1:14551
  dronebridge watch --url ws://127.0.0.1:8081/`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (.toml, .yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose logging")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newServeCmd(&flags, stderr),
		newEmitCmd(&flags, stderr),
		newWatchCmd(stdout),
		newVersionCmd(stdout),
	)
	return root
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "dronebridge %s\n", Version)
			fmt.Fprintf(stdout, "Git Commit: %s\n", GitCommit)
			fmt.Fprintf(stdout, "Build Time: %s\n", BuildTime)
		},
	}
}

// loadConfig reads the config file when one is given and applies the
// global flags that were set explicitly.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = strings.ToLower(flags.logFormat)
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", config.ErrInvalid, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("%w: log.format must be text or json", config.ErrInvalid)
	}
	return logger, nil
}
