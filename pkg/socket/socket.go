package socket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/mash-protocol/mash-zap/pkg/transport"
)

// Type selects a socket's send and receive pattern.
type Type int

const (
	// Pair talks to a single peer.
	Pair Type = iota
	// Req sends requests round-robin and receives replies.
	Req
	// Rep receives requests and answers each on the pipe it came from.
	Rep
	// Dealer sends round-robin and receives fair-queued.
	Dealer
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Pair:
		return "PAIR"
	case Req:
		return "REQ"
	case Rep:
		return "REP"
	case Dealer:
		return "DEALER"
	default:
		return "UNKNOWN"
	}
}

const inboxSize = 64

// Socket is an endpoint in a Context. Send, Recv and Poller.Wait belong to
// one goroutine at a time; options, Bind, Connect and Close may be called
// from any goroutine.
type Socket struct {
	ctx   *Context
	typ   Type
	inbox chan envelope

	mu        sync.Mutex
	opts      options
	closed    bool
	closedCh  chan struct{}
	pipes     []peer
	next      int
	pipeAdded chan struct{}
	pending   *envelope
	lastFrom  peer
	monitors  []*Monitor

	lastEndpoint string
	binds        map[string]*transport.Listener // tcp binds by endpoint; nil value for inproc
	conns        map[*transport.Conn]struct{}

	wg sync.WaitGroup
}

func newSocket(c *Context, t Type) *Socket {
	return &Socket{
		ctx:       c,
		typ:       t,
		inbox:     make(chan envelope, inboxSize),
		opts:      defaultOptions(),
		closedCh:  make(chan struct{}),
		pipeAdded: make(chan struct{}),
		binds:     make(map[string]*transport.Listener),
		conns:     make(map[*transport.Conn]struct{}),
	}
}

// Type returns the socket type.
func (s *Socket) Type() Type { return s.typ }

// LastEndpoint returns the resolved address of the most recent Bind, with
// any wildcard port filled in.
func (s *Socket) LastEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEndpoint
}

// Bind starts accepting on an inproc:// or tcp:// endpoint. A tcp port of
// 0 or * picks a free port; see LastEndpoint.
func (s *Socket) Bind(endpoint string) error {
	scheme, addr, err := splitEndpoint(endpoint)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	switch scheme {
	case "inproc":
		if err := s.ctx.register(addr, s); err != nil {
			return fmt.Errorf("bind %s: %w", endpoint, err)
		}
		s.mu.Lock()
		s.binds[endpoint] = nil
		s.lastEndpoint = endpoint
		s.mu.Unlock()
		return nil

	default:
		if strings.HasSuffix(addr, ":*") {
			addr = strings.TrimSuffix(addr, "*") + "0"
		}
		opts := s.optionsSnapshot()
		ln, err := transport.Listen(context.Background(), transport.ListenerConfig{
			Address:   addr,
			Logger:    opts.logger,
			OnConnect: s.serveConn,
		})
		if err != nil {
			return fmt.Errorf("bind %s: %w", endpoint, err)
		}
		bound := "tcp://" + ln.Addr().String()

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			ln.Stop()
			return ErrClosed
		}
		s.binds[bound] = ln
		s.lastEndpoint = bound
		s.mu.Unlock()
		return nil
	}
}

// Unbind stops accepting on endpoint. Unbinding an inproc endpoint severs
// its pipes and abandons any queued requests.
func (s *Socket) Unbind(endpoint string) error {
	scheme, addr, err := splitEndpoint(endpoint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	ln, ok := s.binds[endpoint]
	if ok {
		delete(s.binds, endpoint)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unbind %s: %w", endpoint, ErrEndpointNotFound)
	}

	if scheme == "inproc" {
		s.ctx.unregister(addr, s)
		for _, p := range s.pipesFor(endpoint) {
			p.sever()
			s.removePipe(p)
		}
		s.abandonQueued()
		return nil
	}
	return ln.Stop()
}

// Connect attaches the socket to a bound endpoint. TCP connections are
// established and authenticated in the background; watch a Monitor for
// the outcome.
func (s *Socket) Connect(endpoint string) error {
	scheme, addr, err := splitEndpoint(endpoint)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	if scheme == "inproc" {
		target := s.ctx.lookup(addr)
		if target == nil {
			return fmt.Errorf("connect %s: %w", endpoint, ErrEndpointNotFound)
		}
		fwd, back := newInprocPair(endpoint, s, target)
		target.addPipe(back)
		s.addPipe(fwd)
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dialConn(addr, endpoint)
	}()
	return nil
}

// Send delivers a multipart message. Rep sockets answer the last request
// received; other types pick the next live pipe, waiting for one until ctx
// is done.
func (s *Socket) Send(ctx context.Context, frames [][]byte) error {
	if len(frames) == 0 {
		return errors.New("send: empty message")
	}
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		var target peer
		if s.typ == Rep {
			target, s.lastFrom = s.lastFrom, nil
			if target == nil {
				s.mu.Unlock()
				return ErrNoRequest
			}
		} else if len(s.pipes) > 0 {
			s.next %= len(s.pipes)
			target = s.pipes[s.next]
			s.next++
		}
		wait := s.pipeAdded
		s.mu.Unlock()

		if target != nil {
			err := target.deliver(ctx, frames)
			if !errors.Is(err, ErrPipeClosed) || s.typ == Rep {
				return err
			}
			s.removePipe(target)
			continue
		}

		select {
		case <-wait:
		case <-s.closedCh:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Recv returns the next message, waiting until ctx is done.
func (s *Socket) Recv(ctx context.Context) ([][]byte, error) {
	s.mu.Lock()
	env := s.pending
	s.pending = nil
	s.mu.Unlock()

	if env == nil {
		select {
		case e := <-s.inbox:
			env = &e
		case <-s.closedCh:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.typ == Rep {
		s.mu.Lock()
		if s.lastFrom != nil {
			s.lastFrom.detach()
		}
		s.lastFrom = env.from
		s.mu.Unlock()
	}
	return env.msg, nil
}

// SendString sends a single-frame message.
func (s *Socket) SendString(ctx context.Context, text string) error {
	return s.Send(ctx, [][]byte{[]byte(text)})
}

// RecvString receives a message and returns its first frame as text.
func (s *Socket) RecvString(ctx context.Context) (string, error) {
	msg, err := s.Recv(ctx)
	if err != nil {
		return "", err
	}
	return string(msg[0]), nil
}

// Close shuts the socket down: monitors are closed, listeners stopped,
// connections dropped and inproc pipes severed. Safe to call twice.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closedCh)
	for _, m := range s.monitors {
		m.closeLocked()
	}
	s.monitors = nil
	linger := s.opts.linger
	pipes := s.pipes
	s.pipes = nil
	binds := s.binds
	s.binds = map[string]*transport.Listener{}
	conns := make([]*transport.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if linger >= 0 {
			_ = c.SetLinger(linger)
		}
		c.Close()
	}
	var err error
	for endpoint, ln := range binds {
		if ln != nil {
			err = multierr.Append(err, ln.Stop())
			continue
		}
		_, addr, _ := splitEndpoint(endpoint)
		s.ctx.unregister(addr, s)
	}
	for _, p := range pipes {
		if ip, ok := p.(*inprocPipe); ok {
			ip.sever()
		}
	}
	s.abandonQueued()
	s.wg.Wait()
	s.ctx.forget(s)
	return err
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// enqueue puts a message in the inbox. A message accepted after Close is
// abandoned so its sender is not left waiting.
func (s *Socket) enqueue(ctx context.Context, env envelope) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrPipeClosed
	}
	select {
	case s.inbox <- env:
		s.mu.Unlock()
		return nil
	default:
	}
	s.mu.Unlock()

	select {
	case s.inbox <- env:
		if s.isClosed() {
			env.from.detach()
		}
		return nil
	case <-s.closedCh:
		return ErrPipeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandonQueued drops queued and unanswered messages, releasing their
// senders.
func (s *Socket) abandonQueued() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.from.detach()
		s.pending = nil
	}
	if s.lastFrom != nil {
		s.lastFrom.detach()
		s.lastFrom = nil
	}
	s.mu.Unlock()
	for {
		select {
		case env := <-s.inbox:
			env.from.detach()
		default:
			return
		}
	}
}

func (s *Socket) addPipe(p peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if ip, ok := p.(*inprocPipe); ok {
			ip.dead.Store(true)
		}
		return
	}
	s.pipes = append(s.pipes, p)
	close(s.pipeAdded)
	s.pipeAdded = make(chan struct{})
}

func (s *Socket) removePipe(p peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.pipes {
		if other == p {
			s.pipes = append(s.pipes[:i], s.pipes[i+1:]...)
			return
		}
	}
}

func (s *Socket) pipesFor(endpoint string) []*inprocPipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*inprocPipe
	for _, p := range s.pipes {
		if ip, ok := p.(*inprocPipe); ok && ip.endpoint == endpoint {
			out = append(out, ip)
		}
	}
	return out
}

// PipeCount returns the number of live pipes. TCP pipes count only once
// their greeting has succeeded.
func (s *Socket) PipeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pipes)
}

func splitEndpoint(endpoint string) (scheme, addr string, err error) {
	scheme, addr, ok := strings.Cut(endpoint, "://")
	if !ok || addr == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	switch scheme {
	case "inproc", "tcp":
		return scheme, addr, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported transport %q", ErrInvalidEndpoint, scheme)
	}
}
