package socket

import (
	"fmt"
	"sync"
	"time"
)

// EventKind identifies a handshake outcome. Kinds are bit flags so they
// can be combined into a monitor mask.
type EventKind uint32

const (
	EventHandshakeSucceeded EventKind = 1 << iota
	EventHandshakeFailedNoDetail
	EventHandshakeFailedAuth
	EventHandshakeFailedProtocol
)

// HandshakeEvents selects all four handshake outcomes.
const HandshakeEvents = EventHandshakeSucceeded | EventHandshakeFailedNoDetail |
	EventHandshakeFailedAuth | EventHandshakeFailedProtocol

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventHandshakeSucceeded:
		return "HANDSHAKE_SUCCEEDED"
	case EventHandshakeFailedNoDetail:
		return "HANDSHAKE_FAILED_NO_DETAIL"
	case EventHandshakeFailedAuth:
		return "HANDSHAKE_FAILED_AUTH"
	case EventHandshakeFailedProtocol:
		return "HANDSHAKE_FAILED_PROTOCOL"
	default:
		return fmt.Sprintf("EVENT(0x%x)", uint32(k))
	}
}

// ParseEventKind parses an event name as returned by String.
func ParseEventKind(name string) (EventKind, error) {
	for _, k := range []EventKind{
		EventHandshakeSucceeded, EventHandshakeFailedNoDetail,
		EventHandshakeFailedAuth, EventHandshakeFailedProtocol,
	} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// Event is a handshake outcome observed on a socket.
//
// Value depends on Kind: the errno for FailedNoDetail, the numeric ZAP
// status for FailedAuth, the protocol error code for FailedProtocol and
// zero for Succeeded.
type Event struct {
	Kind      EventKind
	Value     int
	Err       error
	Endpoint  string
	Timestamp time.Time
}

func (e Event) String() string {
	if e.Kind == EventHandshakeFailedProtocol {
		return fmt.Sprintf("%s value=0x%x endpoint=%s", e.Kind, e.Value, e.Endpoint)
	}
	return fmt.Sprintf("%s value=%d endpoint=%s", e.Kind, e.Value, e.Endpoint)
}

const monitorBuffer = 128

// Monitor receives the events selected by its mask. Events that find the
// buffer full are dropped.
type Monitor struct {
	mask   EventKind
	events chan Event

	sock      *Socket
	closeOnce sync.Once
}

// Monitor subscribes to the handshake events selected by mask.
func (s *Socket) Monitor(mask EventKind) *Monitor {
	m := &Monitor{
		mask:   mask,
		events: make(chan Event, monitorBuffer),
		sock:   s,
	}
	s.mu.Lock()
	if s.closed {
		m.closeLocked()
	} else {
		s.monitors = append(s.monitors, m)
	}
	s.mu.Unlock()
	return m
}

// Events returns the event channel. It is closed when the monitor or its
// socket is closed.
func (m *Monitor) Events() <-chan Event { return m.events }

// Close unsubscribes the monitor.
func (m *Monitor) Close() error {
	m.sock.mu.Lock()
	defer m.sock.mu.Unlock()
	for i, other := range m.sock.monitors {
		if other == m {
			m.sock.monitors = append(m.sock.monitors[:i], m.sock.monitors[i+1:]...)
			break
		}
	}
	m.closeLocked()
	return nil
}

// closeLocked closes the channel. The socket mutex must be held.
func (m *Monitor) closeLocked() {
	m.closeOnce.Do(func() { close(m.events) })
}
