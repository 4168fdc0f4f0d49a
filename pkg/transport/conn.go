package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// ErrConnectionClosed is returned by operations on a closed Conn.
var ErrConnectionClosed = errors.New("connection closed")

// Conn is a framed stream carrying greeting commands and multipart messages.
type Conn struct {
	conn   net.Conn
	framer *Framer
	connID string
	role   log.Role
	logger log.Logger

	closeOnce sync.Once
	closeCh   chan struct{}
	onClose   func(*Conn)
}

// NewConn wraps an established stream. logger may be nil.
func NewConn(nc net.Conn, role log.Role, maxSize uint32, logger log.Logger) *Conn {
	c := &Conn{
		conn:    nc,
		framer:  NewFramer(nc, maxSize),
		connID:  uuid.New().String(),
		role:    role,
		logger:  logger,
		closeCh: make(chan struct{}),
	}
	if logger != nil {
		c.framer.SetLogger(logger, c.connID, role)
	}
	c.logState("", "CONNECTED", "")
	return c
}

// ID returns the unique connection identifier.
func (c *Conn) ID() string { return c.connID }

// LocalAddr returns the local address.
func (c *Conn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// RemoteIP returns the peer IP without the port, or "" if unknown.
func (c *Conn) RemoteIP() string {
	if tcp, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(c.conn.RemoteAddr().String())
	if err != nil {
		return ""
	}
	return host
}

// Done is closed when the connection is closed locally.
func (c *Conn) Done() <-chan struct{} { return c.closeCh }

// SetDeadline bounds all subsequent reads and writes.
func (c *Conn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// SetWriteDeadline bounds subsequent writes only. The zero time clears it.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// SetLinger applies SO_LINGER on TCP streams. Negative means the OS
// default; zero discards unsent data and resets on Close.
func (c *Conn) SetLinger(d time.Duration) error {
	tcp, ok := c.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if d < 0 {
		return tcp.SetLinger(-1)
	}
	return tcp.SetLinger(int(d / time.Second))
}

// WriteCommand sends a greeting command.
func (c *Conn) WriteCommand(cmd any) error {
	data, err := wire.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.write(data)
}

// ReadCommand receives a greeting command.
func (c *Conn) ReadCommand() (any, error) {
	data, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return wire.DecodeCommand(data)
}

// WriteMessage sends a multipart message.
func (c *Conn) WriteMessage(frames [][]byte) error {
	data, err := wire.EncodeMultipart(frames)
	if err != nil {
		return err
	}
	return c.write(data)
}

// ReadMessage receives a multipart message.
func (c *Conn) ReadMessage() ([][]byte, error) {
	data, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return wire.DecodeMultipart(data)
}

func (c *Conn) write(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(data)
}

// Close closes the stream. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
		c.logState("CONNECTED", "DISCONNECTED", "")
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

func (c *Conn) logState(oldState, newState, reason string) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Stamp(log.Event{
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    c.role,
		RemoteAddr:   c.conn.RemoteAddr().String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}))
}

// DialConfig configures Dial.
type DialConfig struct {
	MaxMessageSize uint32
	ConnectTimeout time.Duration
	Logger         log.Logger
}

// Dial opens a TCP connection to address ("host:port").
func Dial(ctx context.Context, address string, cfg DialConfig) (*Conn, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewConn(nc, log.RoleClient, cfg.MaxMessageSize, cfg.Logger), nil
}
