package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mash-protocol/mash-zap/pkg/log"
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Address to listen on, e.g. "127.0.0.1:0".
	Address string

	MaxMessageSize uint32
	Logger         log.Logger

	// OnConnect runs on its own goroutine for every accepted stream and
	// owns the Conn. Stop closes any stream still open.
	OnConnect func(ctx context.Context, conn *Conn)

	// OnError reports accept failures while running.
	OnError func(err error)
}

// Listener accepts TCP streams and hands them to OnConnect.
type Listener struct {
	config ListenerConfig
	ln     net.Listener

	connsMu sync.Mutex
	conns   map[*Conn]struct{}

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Listen binds the address and starts accepting.
func Listen(ctx context.Context, cfg ListenerConfig) (*Listener, error) {
	if cfg.OnConnect == nil {
		return nil, errors.New("OnConnect is required")
	}
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Address, err)
	}

	l := &Listener{
		config: cfg,
		ln:     ln,
		conns:  make(map[*Conn]struct{}),
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.running.Store(true)

	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// ConnectionCount returns the number of open accepted streams.
func (l *Listener) ConnectionCount() int {
	l.connsMu.Lock()
	defer l.connsMu.Unlock()
	return len(l.conns)
}

// Stop closes the listening socket and every accepted stream, then waits
// for all OnConnect callbacks to return.
func (l *Listener) Stop() error {
	if !l.running.CompareAndSwap(true, false) {
		return nil
	}
	l.cancel()
	err := l.ln.Close()

	l.connsMu.Lock()
	conns := make([]*Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.connsMu.Unlock()
	for _, c := range conns {
		c.Close()
	}

	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if !l.running.Load() {
				return
			}
			if l.config.OnError != nil {
				l.config.OnError(fmt.Errorf("accept: %w", err))
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		conn := NewConn(nc, log.RoleServer, l.config.MaxMessageSize, l.config.Logger)
		conn.onClose = l.forget

		l.connsMu.Lock()
		l.conns[conn] = struct{}{}
		l.connsMu.Unlock()

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.config.OnConnect(l.ctx, conn)
		}()
	}
}

func (l *Listener) forget(c *Conn) {
	l.connsMu.Lock()
	delete(l.conns, c)
	l.connsMu.Unlock()
}
