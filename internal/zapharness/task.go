package zapharness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mash-protocol/mash-zap/pkg/socket"
)

const drainWait = 50 * time.Millisecond

// handlerTask runs a Handler in its own goroutine and speaks the control
// protocol with it over the orchestrator's REP socket.
type handlerTask struct {
	control *socket.Socket
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func startHandlerTask(h *Handler, control *socket.Socket) *handlerTask {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(gctx) })

	t := &handlerTask{control: control, cancel: cancel, done: make(chan struct{})}
	go func() {
		err := g.Wait()
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	}()
	return t
}

// Done is closed when the handler has returned.
func (t *handlerTask) Done() <-chan struct{} { return t.done }

func (t *handlerTask) exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *handlerTask) exitErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// awaitReady waits for GO.
func (t *handlerTask) awaitReady(ctx context.Context) error {
	return t.expect(ctx, ControlGo)
}

// stop sends STOP and waits for STOPPED. A handler that already returned
// needs no stopping.
func (t *handlerTask) stop(ctx context.Context) error {
	if t.exited() {
		return t.exitErr()
	}
	if err := t.control.SendString(ctx, ControlStop); err != nil {
		if t.exited() {
			return t.exitErr()
		}
		return fmt.Errorf("send %s: %w", ControlStop, err)
	}
	return t.expect(ctx, ControlStopped)
}

// expect receives one control token. The wait ends early if the handler
// returns without sending it.
func (t *handlerTask) expect(ctx context.Context, want string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	msg, err := t.control.RecvString(ctx)
	if err != nil && t.exited() {
		// Whatever the handler sent before returning is already queued.
		drain, cancelDrain := context.WithTimeout(context.Background(), drainWait)
		msg, err = t.control.RecvString(drain)
		cancelDrain()
		if err != nil {
			if exitErr := t.exitErr(); exitErr != nil {
				return exitErr
			}
			return Protocol(fmt.Errorf("%w before %s", ErrHandlerExited, want))
		}
	}
	if err != nil {
		return fmt.Errorf("await %s: %w", want, err)
	}
	if msg != want {
		return Protocol(fmt.Errorf("%w: got %q, want %q", ErrUnexpectedControl, msg, want))
	}
	return nil
}

// join cancels the handler and waits for it. Cancellation is not reported.
func (t *handlerTask) join() error {
	t.cancel()
	<-t.done
	err := t.exitErr()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
