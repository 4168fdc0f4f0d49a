package socket

import (
	"context"
	"errors"
	"reflect"
)

// Poller waits until one of several sockets has a message. Sockets earlier
// in the list win when more than one is ready.
type Poller struct {
	socks []*Socket
}

// NewPoller creates a poller over socks, in priority order.
func NewPoller(socks ...*Socket) *Poller {
	return &Poller{socks: socks}
}

// Wait returns the index of the highest-priority readable socket. The
// message stays queued for that socket's next Recv.
func (p *Poller) Wait(ctx context.Context) (int, error) {
	if len(p.socks) == 0 {
		return -1, errors.New("poller has no sockets")
	}

	cases := make([]reflect.SelectCase, 0, 2*len(p.socks)+1)
	for _, s := range p.socks {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.inbox)})
	}
	for _, s := range p.socks {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.closedCh)})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})

	for {
		for i, s := range p.socks {
			if s.ready() {
				return i, nil
			}
		}

		chosen, value, _ := reflect.Select(cases)
		switch {
		case chosen < len(p.socks):
			env := value.Interface().(envelope)
			p.socks[chosen].stash(env)
		case chosen < 2*len(p.socks):
			return chosen - len(p.socks), ErrClosed
		default:
			return -1, ctx.Err()
		}
	}
}

// ready reports whether a message is waiting, moving it into the pending
// slot if it was still in the inbox.
func (s *Socket) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return true
	}
	select {
	case env := <-s.inbox:
		s.pending = &env
		return true
	default:
		return false
	}
}

func (s *Socket) stash(env envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = &env
		return
	}
	select {
	case s.inbox <- env:
	default:
		env.from.detach()
	}
}
