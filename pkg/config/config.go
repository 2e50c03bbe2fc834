package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Source SourceConfig `toml:"source" yaml:"source"`
	UDP    UDPConfig    `toml:"udp" yaml:"udp"`
	WS     WSConfig     `toml:"ws" yaml:"ws"`
	Hub    HubConfig    `toml:"hub" yaml:"hub"`
	Sim    SimConfig    `toml:"sim" yaml:"sim"`
	Log    LogConfig    `toml:"log" yaml:"log"`
	Record string       `toml:"record,omitempty" yaml:"record,omitempty"`

	path string
}

type SourceConfig struct {
	// Simulated selects the flight simulator instead of the UDP listener.
	Simulated bool `toml:"simulated" yaml:"simulated"`
}

type UDPConfig struct {
	Addr        string `toml:"addr" yaml:"addr"`
	BufferSize  int    `toml:"buffer_size" yaml:"buffer_size"`
	ReadTimeout string `toml:"read_timeout" yaml:"read_timeout"`
}

type WSConfig struct {
	Addr         string `toml:"addr" yaml:"addr"`
	Path         string `toml:"path" yaml:"path"`
	SendBuf      int    `toml:"send_buf" yaml:"send_buf"`
	WriteTimeout string `toml:"write_timeout" yaml:"write_timeout"`
	PingInterval string `toml:"ping_interval" yaml:"ping_interval"`
}

type HubConfig struct {
	Buffer    int `toml:"buffer" yaml:"buffer"`
	TapBuffer int `toml:"tap_buffer" yaml:"tap_buffer"`
}

type SimConfig struct {
	Interval     string `toml:"interval" yaml:"interval"`
	RestartDelay string `toml:"restart_delay" yaml:"restart_delay"`
	Seed         int64  `toml:"seed" yaml:"seed"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

func Default() Config {
	return Config{
		Source: SourceConfig{Simulated: true},
		UDP: UDPConfig{
			Addr:        "0.0.0.0:14551",
			BufferSize:  2048,
			ReadTimeout: "500ms",
		},
		WS: WSConfig{
			Addr:         "0.0.0.0:8081",
			Path:         "/",
			SendBuf:      256,
			WriteTimeout: "5s",
			PingInterval: "30s",
		},
		Hub: HubConfig{
			Buffer:    256,
			TapBuffer: 100,
		},
		Sim: SimConfig{
			Interval:     "500ms",
			RestartDelay: "5s",
			Seed:         1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, .yaml or .yml.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalid, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Path is the file the config was loaded from, empty for defaults.
func (cfg *Config) Path() string {
	return cfg.path
}

func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.UDP.Addr) == "" {
		return fmt.Errorf("%w: udp.addr is required", ErrInvalid)
	}
	if strings.TrimSpace(cfg.WS.Addr) == "" {
		return fmt.Errorf("%w: ws.addr is required", ErrInvalid)
	}
	if !strings.HasPrefix(cfg.WS.Path, "/") {
		return fmt.Errorf("%w: ws.path must start with /", ErrInvalid)
	}
	if cfg.WS.Path == "/healthz" {
		return fmt.Errorf("%w: ws.path collides with the health endpoint", ErrInvalid)
	}
	if cfg.UDP.BufferSize <= 0 {
		return fmt.Errorf("%w: udp.buffer_size must be > 0", ErrInvalid)
	}
	if cfg.WS.SendBuf <= 0 {
		return fmt.Errorf("%w: ws.send_buf must be > 0", ErrInvalid)
	}
	if cfg.Hub.Buffer <= 0 || cfg.Hub.TapBuffer <= 0 {
		return fmt.Errorf("%w: hub buffers must be > 0", ErrInvalid)
	}

	durations := []struct {
		name  string
		value string
	}{
		{"udp.read_timeout", cfg.UDP.ReadTimeout},
		{"ws.write_timeout", cfg.WS.WriteTimeout},
		{"ws.ping_interval", cfg.WS.PingInterval},
		{"sim.interval", cfg.Sim.Interval},
		{"sim.restart_delay", cfg.Sim.RestartDelay},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%w: %s must be > 0", ErrInvalid, d.name)
		}
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json", ErrInvalid)
	}
	return nil
}

func (cfg *Config) normalize() {
	def := Default()

	if cfg.WS.Path == "" {
		cfg.WS.Path = def.WS.Path
	}
	if cfg.UDP.ReadTimeout == "" {
		cfg.UDP.ReadTimeout = def.UDP.ReadTimeout
	}
	if cfg.WS.WriteTimeout == "" {
		cfg.WS.WriteTimeout = def.WS.WriteTimeout
	}
	if cfg.WS.PingInterval == "" {
		cfg.WS.PingInterval = def.WS.PingInterval
	}
	if cfg.Sim.Interval == "" {
		cfg.Sim.Interval = def.Sim.Interval
	}
	if cfg.Sim.RestartDelay == "" {
		cfg.Sim.RestartDelay = def.Sim.RestartDelay
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Duration parses a validated duration field. Unparseable values fall
// back to zero; Validate rejects them first.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
