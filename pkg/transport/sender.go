package transport

import (
	"fmt"
	"net"
)

// Sender writes frames to one UDP destination.
type Sender struct {
	dest string
	conn *net.UDPConn
}

func NewSender(dest string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Sender{dest: dest, conn: conn}, nil
}

func (s *Sender) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	_, err := s.conn.Write(frame)
	return err
}

func (s *Sender) Dest() string {
	return s.dest
}

func (s *Sender) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
