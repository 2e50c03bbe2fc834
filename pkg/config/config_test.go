package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Source.Simulated)
	assert.Equal(t, "0.0.0.0:14551", cfg.UDP.Addr)
	assert.Equal(t, "0.0.0.0:8081", cfg.WS.Addr)
	assert.Equal(t, 500*time.Millisecond, Duration(cfg.Sim.Interval))
	assert.Equal(t, 5*time.Second, Duration(cfg.Sim.RestartDelay))
	assert.Empty(t, cfg.Path())
}

func TestLoadTOML(t *testing.T) {
	path := writeTempConfig(t, "bridge.toml", `
record = "flight.jsonl"

[source]
simulated = false

[udp]
addr = "127.0.0.1:14560"

[sim]
interval = "250ms"
seed = 7

[log]
format = "JSON"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Source.Simulated)
	assert.Equal(t, "127.0.0.1:14560", cfg.UDP.Addr)
	assert.Equal(t, 2048, cfg.UDP.BufferSize)
	assert.Equal(t, 250*time.Millisecond, Duration(cfg.Sim.Interval))
	assert.Equal(t, "5s", cfg.Sim.RestartDelay)
	assert.Equal(t, int64(7), cfg.Sim.Seed)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "flight.jsonl", cfg.Record)
	assert.Equal(t, path, cfg.Path())
}

func TestLoadYAML(t *testing.T) {
	path := writeTempConfig(t, "bridge.yml", `
ws:
  addr: 127.0.0.1:9000
  path: /telemetry
hub:
  buffer: 32
sim:
  restart_delay: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Source.Simulated)
	assert.Equal(t, "127.0.0.1:9000", cfg.WS.Addr)
	assert.Equal(t, "/telemetry", cfg.WS.Path)
	assert.Equal(t, 32, cfg.Hub.Buffer)
	assert.Equal(t, 100, cfg.Hub.TapBuffer)
	assert.Equal(t, time.Second, Duration(cfg.Sim.RestartDelay))
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad_interval.yaml": "sim:\n  interval: soon\n",
		"zero_delay.yaml":   "sim:\n  restart_delay: 0s\n",
		"empty_udp.toml":    "[udp]\naddr = \" \"\n",
		"bad_path.yaml":     "ws:\n  path: telemetry\n",
		"health.yaml":       "ws:\n  path: /healthz\n",
		"neg_buf.toml":      "[ws]\nsend_buf = -1\n",
		"format.yaml":       "log:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, name, body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(writeTempConfig(t, "bridge.ini", "x=1"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadParseAndReadErrors(t *testing.T) {
	_, err := Load(writeTempConfig(t, "broken.toml", "[udp\naddr="))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
