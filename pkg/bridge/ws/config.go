package ws

import "time"

type Config struct {
	Addr         string
	Path         string
	SendBuf      int
	WriteTimeout time.Duration
	PingInterval time.Duration
	// Source names the active telemetry source in health reports.
	Source string
}

func DefaultConfig() Config {
	return Config{
		Addr:         "0.0.0.0:8081",
		Path:         "/",
		SendBuf:      256,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		Source:       "sim",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.SendBuf <= 0 {
		c.SendBuf = d.SendBuf
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.Source == "" {
		c.Source = d.Source
	}
	return c
}
