package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"dronebridge/pkg/telemetry"
	"dronebridge/pkg/vehicle"
)

const (
	reconnectDelay = 3 * time.Second
	statusLines    = 5
)

func newWatchCmd(stdout io.Writer) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live vehicle state from a bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p := tea.NewProgram(newWatchModel(url), tea.WithContext(ctx), tea.WithOutput(stdout), tea.WithAltScreen())
			go streamEvents(ctx, websocket.DefaultDialer, url, reconnectDelay, p.Send)

			_, err := p.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:8081/", "Bridge websocket URL")
	return cmd
}

type eventMsg struct{ ev telemetry.Event }

type connMsg struct {
	connected bool
	err       error
}

type tickMsg time.Time

// streamEvents keeps a websocket session to url open, redialing after
// retry, and forwards every decodable event to send.
func streamEvents(ctx context.Context, dialer *websocket.Dialer, url string, retry time.Duration, send func(tea.Msg)) {
	for {
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err == nil {
			send(connMsg{connected: true})
			err = readEvents(ctx, conn, send)
		}
		if ctx.Err() != nil {
			return
		}
		send(connMsg{err: err})

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func readEvents(ctx context.Context, conn *websocket.Conn, send func(tea.Msg)) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := telemetry.Decode(data)
		if err != nil {
			continue
		}
		send(eventMsg{ev: ev})
	}
}

type watchModel struct {
	url       string
	state     *vehicle.State
	connected bool
	lastErr   error
	now       func() time.Time
}

func newWatchModel(url string) watchModel {
	return watchModel{url: url, state: vehicle.NewState(), now: time.Now}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) Init() tea.Cmd {
	return tick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case eventMsg:
		m.state.Apply(msg.ev)
	case connMsg:
		m.connected = msg.connected
		m.lastErr = msg.err
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m watchModel) View() string {
	s := m.state
	var b strings.Builder

	link := "DISCONNECTED"
	if m.connected {
		link = "CONNECTED"
	}
	fmt.Fprintf(&b, "dronebridge  %s  %s\n", m.url, link)
	if !m.connected && m.lastErr != nil {
		fmt.Fprintf(&b, "  %v (retrying every %s)\n", m.lastErr, reconnectDelay)
	}
	b.WriteString("\n")

	armed := "DISARMED"
	if s.Heartbeat.Armed {
		armed = "ARMED"
	}
	mode := s.Heartbeat.Mode
	if mode == "" {
		mode = "-"
	}
	fmt.Fprintf(&b, "Mode      %-10s %s\n", mode, armed)
	fmt.Fprintf(&b, "Position  %.6f, %.6f  alt %.1f m  rel %.1f m\n",
		s.Position.Lat, s.Position.Lon, s.Position.Alt, s.Position.RelativeAlt)
	fmt.Fprintf(&b, "Motion    hdg %.0f°  speed %.1f m/s  climb %.1f m/s  throttle %.0f%%\n",
		s.Position.Heading, s.Position.Speed, s.HUD.ClimbRate, s.HUD.Throttle)
	fmt.Fprintf(&b, "Attitude  roll %.1f°  pitch %.1f°  yaw %.1f°\n", s.Attitude.Roll, s.Attitude.Pitch, s.Attitude.Yaw)
	fmt.Fprintf(&b, "Battery   %.2f V  %.1f A  %d%%\n", s.Battery.Voltage, s.Battery.Current, s.Battery.Remaining)
	fmt.Fprintf(&b, "GPS       %s  %d sats  hdop %.2f\n", orDash(s.GPS.FixTypeName), s.GPS.Satellites, s.GPS.HDOP)
	fmt.Fprintf(&b, "Mission   wp %d  %d/%d received  flight %s\n",
		s.CurrentWP, s.Mission.Len(), s.Mission.Expected(), s.FlightTime)
	fmt.Fprintf(&b, "Track     %s points\n", humanize.Comma(int64(s.Track.Len())))

	if s.LastUpdate.IsZero() {
		b.WriteString("Updated   never\n")
	} else {
		fmt.Fprintf(&b, "Updated   %s (%s events)\n",
			humanize.RelTime(s.LastUpdate, m.now(), "ago", "from now"), humanize.Comma(int64(s.Updates)))
	}

	b.WriteString("\nStatus\n")
	recent := s.RecentStatuses()
	if len(recent) > statusLines {
		recent = recent[:statusLines]
	}
	for _, st := range recent {
		fmt.Fprintf(&b, "  %s  %s\n", st.At.Format("15:04:05"), st.Text)
	}
	b.WriteString("\nq to quit\n")
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
