package zapharness

import (
	"fmt"
	"time"

	"github.com/mash-protocol/mash-zap/pkg/socket"
)

// AnyValue matches every event value in ExpectEvent.
const AnyValue = -1

// QuietPeriod is how long a monitor must stay silent before a sequence of
// repeated events is considered finished.
const QuietPeriod = 250 * time.Millisecond

// HandshakeMonitor observes the handshake events of one socket.
type HandshakeMonitor struct {
	mon *socket.Monitor
}

// NewHandshakeMonitor subscribes to all handshake events of s.
func NewHandshakeMonitor(s *socket.Socket) *HandshakeMonitor {
	return &HandshakeMonitor{mon: s.Monitor(socket.HandshakeEvents)}
}

// NextEvent waits up to timeout for the next event.
func (m *HandshakeMonitor) NextEvent(timeout time.Duration) (socket.Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev, ok := <-m.mon.Events():
		return ev, ok
	case <-timer.C:
		return socket.Event{}, false
	}
}

// DrainExpectingNone reads events until the monitor is quiet for timeout
// and returns those that are not transport noise.
func (m *HandshakeMonitor) DrainExpectingNone(timeout time.Duration) []socket.Event {
	var unexpected []socket.Event
	for {
		ev, ok := m.NextEvent(timeout)
		if !ok {
			return unexpected
		}
		if IsTransportNoise(ev, AnyValue) {
			continue
		}
		unexpected = append(unexpected, ev)
	}
}

// ExpectEvent waits up to timeout for an event of kind with value (or
// AnyValue) and returns the number of matches. Without allowRepeats it
// returns at the first match; with it, it keeps counting until the monitor
// is quiet for QuietPeriod. Transport noise ends the wait without error.
// Any other event is an UnexpectedEvent error.
func (m *HandshakeMonitor) ExpectEvent(kind socket.EventKind, value int, allowRepeats bool, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	count := 0
	for {
		wait := QuietPeriod
		if count == 0 {
			wait = time.Until(deadline)
		}
		ev, ok := m.NextEvent(max(wait, 0))
		if !ok {
			if count > 0 {
				return count, nil
			}
			return 0, UnexpectedEvent(fmt.Errorf("%w: waited %s for %s", ErrNoEvent, timeout, describe(kind, value)))
		}

		if ev.Kind == kind && (value == AnyValue || ev.Value == value) {
			count++
			if !allowRepeats {
				return count, nil
			}
			continue
		}
		if IsTransportNoise(ev, value) {
			return count, nil
		}
		return count, UnexpectedEvent(fmt.Errorf("%w: got %v, want %s", ErrWrongEvent, ev, describe(kind, value)))
	}
}

// Close unsubscribes. Pending events are discarded.
func (m *HandshakeMonitor) Close() error {
	return m.mon.Close()
}

// IsTransportNoise reports whether ev is a disconnect-style failure that
// can race with an orderly shutdown. EPIPE is noise only when the caller
// is not waiting for it.
func IsTransportNoise(ev socket.Event, expected int) bool {
	if ev.Kind != socket.EventHandshakeFailedNoDetail {
		return false
	}
	switch ev.Value {
	case socket.ErrnoPipe:
		return expected != socket.ErrnoPipe
	case socket.ErrnoConnReset, socket.ErrnoConnAborted:
		return true
	default:
		return false
	}
}

func describe(kind socket.EventKind, value int) string {
	if value == AnyValue {
		return kind.String()
	}
	return fmt.Sprintf("%s value=%d", kind, value)
}
