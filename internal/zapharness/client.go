package zapharness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/socket"
)

// Probe timings.
const (
	// BounceFailTimeout is how long a failed connection is given to prove
	// that nothing crosses it.
	BounceFailTimeout = 250 * time.Millisecond
	// BounceTimeout bounds each leg of a successful bounce.
	BounceTimeout = 2 * time.Second
	// DefaultEventTimeout bounds the wait for an expected monitor event.
	DefaultEventTimeout = 3 * time.Second
)

var bounceContent = []byte("12345678ABCDEFGH12345678abcdefgh")

// ClientConfig describes one test client.
type ClientConfig struct {
	// Configure applies the client mechanism (default ConfigureNullClient).
	Configure ConfigureFunc

	// Payload is passed to Configure.
	Payload any

	// Monitor attaches a HandshakeMonitor before connecting.
	Monitor bool

	// Logger receives the client's protocol events.
	Logger log.Logger
}

// Client is a connected test client.
type Client struct {
	Socket  *socket.Socket
	Monitor *HandshakeMonitor
}

// ConnectClient creates a DEALER client, configures it and connects it to
// endpoint. The monitor, when requested, is attached before connecting.
func ConnectClient(sctx *socket.Context, endpoint string, cfg ClientConfig) (*Client, error) {
	if cfg.Configure == nil {
		cfg.Configure = ConfigureNullClient
	}

	s, err := sctx.NewSocket(socket.Dealer)
	if err != nil {
		return nil, Setup(fmt.Errorf("client socket: %w", err))
	}
	c := &Client{Socket: s}
	if err := s.SetLogger(log.OrNoop(cfg.Logger)); err != nil {
		return nil, multierr.Append(Setup(err), c.Close())
	}
	if err := cfg.Configure(s, cfg.Payload); err != nil {
		return nil, multierr.Append(err, c.Close())
	}
	if cfg.Monitor {
		c.Monitor = NewHandshakeMonitor(s)
	}
	if err := s.Connect(endpoint); err != nil {
		return nil, multierr.Append(Setup(fmt.Errorf("connect %s: %w", endpoint, err)), c.Close())
	}
	return c, nil
}

// Close closes the monitor and the socket.
func (c *Client) Close() error {
	var err error
	if c.Monitor != nil {
		err = c.Monitor.Close()
	}
	return multierr.Append(err, c.Socket.Close())
}

// CloseZeroLinger drops anything still queued and closes.
func (c *Client) CloseZeroLinger() error {
	return multierr.Append(c.Socket.SetLinger(0), c.Close())
}

// ExpectBounce sends a two-frame message from client to server and back
// and checks both arrive intact.
func ExpectBounce(server, client *socket.Socket) error {
	msg := [][]byte{bounceContent, bounceContent}
	if err := bounceLeg(client, server, msg); err != nil {
		return fmt.Errorf("client to server: %w", err)
	}
	if err := bounceLeg(server, client, msg); err != nil {
		return fmt.Errorf("server to client: %w", err)
	}
	return nil
}

func bounceLeg(from, to *socket.Socket, msg [][]byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), BounceTimeout)
	defer cancel()
	if err := from.Send(ctx, msg); err != nil {
		return UnexpectedEvent(fmt.Errorf("send: %w", err))
	}
	got, err := to.Recv(ctx)
	if err != nil {
		return UnexpectedEvent(fmt.Errorf("recv: %w", err))
	}
	if len(got) != len(msg) {
		return UnexpectedEvent(fmt.Errorf("%w: %d frames, want %d", ErrBounceMismatch, len(got), len(msg)))
	}
	for i := range msg {
		if !bytes.Equal(got[i], msg[i]) {
			return UnexpectedEvent(fmt.Errorf("%w: frame %d", ErrBounceMismatch, i))
		}
	}
	return nil
}

// ExpectBounceFail checks that nothing crosses between client and server
// within BounceFailTimeout in either direction. Sends that time out are
// expected.
func ExpectBounceFail(server, client *socket.Socket) error {
	msg := [][]byte{bounceContent, bounceContent}
	if err := noBounceLeg(client, server, msg); err != nil {
		return fmt.Errorf("client to server: %w", err)
	}
	if err := noBounceLeg(server, client, msg); err != nil {
		return fmt.Errorf("server to client: %w", err)
	}
	return nil
}

func noBounceLeg(from, to *socket.Socket, msg [][]byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), BounceFailTimeout)
	err := from.Send(ctx, msg)
	cancel()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return Setup(fmt.Errorf("send: %w", err))
	}

	ctx, cancel = context.WithTimeout(context.Background(), BounceFailTimeout)
	defer cancel()
	if _, err := to.Recv(ctx); err == nil {
		return UnexpectedEvent(ErrBounceDelivered)
	} else if !errors.Is(err, context.DeadlineExceeded) {
		return Setup(fmt.Errorf("recv: %w", err))
	}
	return nil
}

// ExpectedEvent names a monitor event. A zero Kind means no check.
type ExpectedEvent struct {
	Kind  socket.EventKind
	Value int
}

// ExpectNewClientBounceFail connects a fresh client, checks nothing
// crosses, checks the client saw exactly one matching event when expected
// names one, and closes the client with zero linger.
func ExpectNewClientBounceFail(sctx *socket.Context, endpoint string, server *socket.Socket, cfg ClientConfig, expected ExpectedEvent) error {
	if expected.Kind != 0 {
		cfg.Monitor = true
	}
	c, err := ConnectClient(sctx, endpoint, cfg)
	if err != nil {
		return err
	}

	err = ExpectBounceFail(server, c.Socket)
	if err == nil && expected.Kind != 0 {
		var n int
		n, err = c.Monitor.ExpectEvent(expected.Kind, expected.Value, true, DefaultEventTimeout)
		if err == nil && n != 1 {
			err = UnexpectedEvent(fmt.Errorf("%w: %d client events, want 1 %s", ErrEventCount, n, describe(expected.Kind, expected.Value)))
		}
	}
	return multierr.Append(err, c.CloseZeroLinger())
}
