package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrBind is returned when the datagram socket cannot be opened.
var ErrBind = errors.New("bind datagram socket")

// Listener owns one inbound UDP socket.
type Listener struct {
	conn         *net.UDPConn
	bufSize      int
	readTimeout  time.Duration
	errorHandler func(error)
}

type Option func(*Listener)

func WithBufferSize(n int) Option {
	return func(l *Listener) {
		if n > 0 {
			l.bufSize = n
		}
	}
}

// WithReadTimeout bounds each read so cancellation is noticed even when the
// socket is idle.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.readTimeout = d
		}
	}
}

func WithErrorHandler(fn func(error)) Option {
	return func(l *Listener) {
		if fn != nil {
			l.errorHandler = fn
		}
	}
}

// ListenUDP binds addr. A bind failure wraps ErrBind.
func ListenUDP(addr string, opts ...Option) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrBind, addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, addr, err)
	}

	l := &Listener{
		conn:        conn,
		bufSize:     2048,
		readTimeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Addr is the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Serve hands every datagram to handle, in arrival order, until ctx is
// cancelled. The socket is closed when Serve returns. Each payload is a
// fresh copy the handler may keep.
func (l *Listener) Serve(ctx context.Context, handle func([]byte)) error {
	defer l.conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, l.bufSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if l.readTimeout > 0 {
			_ = l.conn.SetReadDeadline(time.Now().Add(l.readTimeout))
		}
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.handleError(err)
			continue
		}
		if n == 0 {
			continue
		}
		handle(append([]byte(nil), buf[:n]...))
	}
}

// Close releases the socket without serving.
func (l *Listener) Close() error {
	return l.conn.Close()
}

func (l *Listener) handleError(err error) {
	if l.errorHandler != nil {
		l.errorHandler(err)
	}
}
