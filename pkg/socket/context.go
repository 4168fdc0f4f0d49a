package socket

import (
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

// Context owns a set of sockets and the inproc namespace they share.
type Context struct {
	mu      sync.Mutex
	inproc  map[string]*Socket
	sockets map[*Socket]struct{}
	closed  bool

	zapSeq atomic.Uint64
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{
		inproc:  make(map[string]*Socket),
		sockets: make(map[*Socket]struct{}),
	}
}

// NewSocket creates a socket of the given type.
func (c *Context) NewSocket(t Type) (*Socket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrContextClosed
	}
	s := newSocket(c, t)
	c.sockets[s] = struct{}{}
	return s, nil
}

// Close closes every socket still open in the Context.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	open := make([]*Socket, 0, len(c.sockets))
	for s := range c.sockets {
		open = append(open, s)
	}
	c.mu.Unlock()

	var err error
	for _, s := range open {
		err = multierr.Append(err, s.Close())
	}
	return err
}

func (c *Context) register(name string, s *Socket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inproc[name]; ok {
		return ErrEndpointInUse
	}
	c.inproc[name] = s
	return nil
}

func (c *Context) unregister(name string, s *Socket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inproc[name] != s {
		return false
	}
	delete(c.inproc, name)
	return true
}

func (c *Context) lookup(name string) *Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inproc[name]
}

func (c *Context) forget(s *Socket) {
	c.mu.Lock()
	delete(c.sockets, s)
	c.mu.Unlock()
}

// nextZAPSequence returns a fresh request sequence token.
func (c *Context) nextZAPSequence() string {
	return strconv.FormatUint(c.zapSeq.Add(1), 10)
}
