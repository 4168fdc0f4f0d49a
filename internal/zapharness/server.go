package zapharness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/socket"
)

// Defaults applied by ServerConfig.
const (
	DefaultServerEndpoint   = "tcp://127.0.0.1:0"
	DefaultHandshakeTimeout = time.Second
	DefaultControlTimeout   = 5 * time.Second
)

// ServerConfig describes the server side of one test.
type ServerConfig struct {
	// Handler configures the ZAP handler. Nil runs without one.
	Handler *HandlerConfig

	// Configure applies the server mechanism (default ConfigureNullServer).
	Configure ConfigureFunc

	// Payload is passed to Configure.
	Payload any

	// RoutingID is the server identity (default "IDENT").
	RoutingID string

	// Endpoint is where the server binds (default tcp://127.0.0.1:0).
	Endpoint string

	// HandshakeTimeout bounds each accepted greeting (default 1s).
	HandshakeTimeout time.Duration

	// Logger receives protocol events from the server and the handler.
	Logger log.Logger

	// Log receives operational messages.
	Log *slog.Logger
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Configure == nil {
		c.Configure = ConfigureNullServer
	}
	if c.RoutingID == "" {
		c.RoutingID = DefaultRoutingID
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultServerEndpoint
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	c.Logger = log.OrNoop(c.Logger)
	if c.Log == nil {
		c.Log = slog.New(slog.DiscardHandler)
	}
	return c
}

// ServerSide is a configured, bound and monitored server endpoint with its
// optional ZAP handler.
type ServerSide struct {
	// Server is the bound endpoint.
	Server *socket.Socket

	// Monitor observes Server's handshakes.
	Monitor *HandshakeMonitor

	// Counter counts requests the handler processed. It stays readable
	// after Close.
	Counter *RequestCounter

	// Endpoint is the resolved address clients connect to.
	Endpoint string

	control *socket.Socket
	task    *handlerTask
	log     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewServerSide binds the control endpoint, starts the handler and waits
// for GO, then configures, binds and monitors the server. On error
// everything created so far is torn down.
func NewServerSide(sctx *socket.Context, cfg ServerConfig) (*ServerSide, error) {
	cfg = cfg.withDefaults()
	ss := &ServerSide{Counter: &RequestCounter{}, log: cfg.Log}

	fail := func(err error) (*ServerSide, error) {
		return nil, multierr.Append(err, ss.Close(false))
	}

	control, err := sctx.NewSocket(socket.Rep)
	if err != nil {
		return fail(Setup(fmt.Errorf("control socket: %w", err)))
	}
	ss.control = control
	if err := control.SetLinger(0); err != nil {
		return fail(Setup(err))
	}
	if err := control.Bind(ControlEndpoint); err != nil {
		return fail(Setup(fmt.Errorf("bind %s: %w", ControlEndpoint, err)))
	}

	if cfg.Handler != nil {
		hcfg := *cfg.Handler
		if hcfg.Logger == nil {
			hcfg.Logger = cfg.Logger
		}
		if hcfg.Log == nil {
			hcfg.Log = cfg.Log
		}
		h, err := NewHandler(sctx, ss.Counter, hcfg)
		if err != nil {
			return fail(err)
		}
		ss.task = startHandlerTask(h, control)

		ctx, cancel := context.WithTimeout(context.Background(), DefaultControlTimeout)
		err = ss.task.awaitReady(ctx)
		cancel()
		if err != nil {
			return fail(err)
		}
	}

	server, err := sctx.NewSocket(socket.Dealer)
	if err != nil {
		return fail(Setup(fmt.Errorf("server socket: %w", err)))
	}
	ss.Server = server
	for _, apply := range []func() error{
		func() error { return server.SetLinger(0) },
		func() error { return server.SetLogger(cfg.Logger) },
		func() error { return server.SetHandshakeTimeout(cfg.HandshakeTimeout) },
		func() error { return server.SetRoutingID(cfg.RoutingID) },
	} {
		if err := apply(); err != nil {
			return fail(Setup(err))
		}
	}
	if err := cfg.Configure(server, cfg.Payload); err != nil {
		return fail(err)
	}

	ss.Monitor = NewHandshakeMonitor(server)
	if err := server.Bind(cfg.Endpoint); err != nil {
		return fail(Setup(fmt.Errorf("bind %s: %w", cfg.Endpoint, err)))
	}
	ss.Endpoint = server.LastEndpoint()
	cfg.Log.Debug("server bound", "endpoint", ss.Endpoint, "handler", cfg.Handler != nil)
	return ss, nil
}

// Close tears the server side down. Pass handlerStopped when the handler
// already terminated on its own (disconnect fault) so no STOP is sent.
// Handler errors surface here. Safe to call more than once.
func (ss *ServerSide) Close(handlerStopped bool) error {
	ss.closeOnce.Do(func() {
		var err error
		if ss.task != nil && !handlerStopped {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultControlTimeout)
			if stopErr := ss.task.stop(ctx); stopErr != nil && !ss.task.exited() {
				err = multierr.Append(err, stopErr)
			}
			cancel()
		}
		if ss.Monitor != nil {
			err = multierr.Append(err, ss.Monitor.Close())
		}
		if ss.Server != nil {
			err = multierr.Append(err, ss.Server.Close())
		}
		if ss.control != nil {
			err = multierr.Append(err, ss.control.Close())
		}
		if ss.task != nil {
			err = multierr.Append(err, ss.task.join())
		}
		ss.closeErr = err
		ss.log.Debug("server closed", "requests", ss.Counter.Load(), "error", err)
	})
	return ss.closeErr
}

// AwaitNoPeers waits until every client connection of the server is gone,
// so the next client is the only one a send can reach.
func (ss *ServerSide) AwaitNoPeers(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for ss.Server.PipeCount() > 0 {
		if time.Now().After(deadline) {
			return UnexpectedEvent(fmt.Errorf("%d peers still connected after %s", ss.Server.PipeCount(), timeout))
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}
