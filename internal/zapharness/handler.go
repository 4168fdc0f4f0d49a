package zapharness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/mash-protocol/mash-zap/pkg/curve"
	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/socket"
	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// ControlEndpoint is where the orchestrator binds and the handler connects.
const ControlEndpoint = "inproc://handler-control"

// Control tokens.
const (
	ControlGo      = "GO"
	ControlStop    = "STOP"
	ControlStopped = "STOPPED"
)

// DefaultRoutingID is the identity every test server presents.
const DefaultRoutingID = "IDENT"

// HandlerState is the handler's position in its request cycle.
type HandlerState int32

const (
	StateAwaitEvent HandlerState = iota
	StateControlMessage
	StateRequestReceived
	StateValidate
	StateReply
	StateTerminated
)

func (s HandlerState) String() string {
	switch s {
	case StateAwaitEvent:
		return "AWAIT_EVENT"
	case StateControlMessage:
		return "CONTROL_MESSAGE"
	case StateRequestReceived:
		return "REQUEST_RECEIVED"
	case StateValidate:
		return "VALIDATE"
	case StateReply:
		return "REPLY"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Fault selects the deviation from compliant behavior.
	Fault FaultMode

	// ExpectedRoutingID must appear in every request (default "IDENT").
	ExpectedRoutingID string

	// ClientPublicKey is the Z85 public key accepted for CURVE.
	ClientPublicKey string

	// Username and Password are the accepted PLAIN pair
	// (default testuser/testpass).
	Username string
	Password string

	// Logger receives ZAP protocol events.
	Logger log.Logger

	// Log receives operational messages.
	Log *slog.Logger
}

func (c HandlerConfig) withDefaults() HandlerConfig {
	if c.ExpectedRoutingID == "" {
		c.ExpectedRoutingID = DefaultRoutingID
	}
	if c.Username == "" {
		c.Username = TestPlainUsername
	}
	if c.Password == "" {
		c.Password = TestPlainPassword
	}
	c.Logger = log.OrNoop(c.Logger)
	if c.Log == nil {
		c.Log = slog.New(slog.DiscardHandler)
	}
	return c
}

// Handler is a ZAP broker with fault injection. It answers requests on
// the ZAP endpoint and takes lifecycle commands on the control endpoint.
type Handler struct {
	cfg      HandlerConfig
	strategy faultStrategy
	sctx     *socket.Context
	counter  *RequestCounter
	state    atomic.Int32
}

// NewHandler creates a handler. Counter must not be nil.
func NewHandler(sctx *socket.Context, counter *RequestCounter, cfg HandlerConfig) (*Handler, error) {
	if counter == nil {
		return nil, Setup(errors.New("handler needs a request counter"))
	}
	strategy, err := strategyFor(cfg.Fault)
	if err != nil {
		return nil, err
	}
	return &Handler{
		cfg:      cfg.withDefaults(),
		strategy: strategy,
		sctx:     sctx,
		counter:  counter,
	}, nil
}

// State returns the current state.
func (h *Handler) State() HandlerState { return HandlerState(h.state.Load()) }

func (h *Handler) setState(next HandlerState) {
	prev := HandlerState(h.state.Swap(int32(next)))
	if prev == next {
		return
	}
	h.cfg.Logger.Log(log.Stamp(log.Event{
		Layer:     log.LayerZAP,
		Category:  log.CategoryState,
		LocalRole: log.RoleBroker,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityBroker,
			OldState: prev.String(),
			NewState: next.String(),
		},
	}))
}

// Run serves until STOP arrives on the control channel, the disconnect
// fault fires, ctx ends or a protocol violation occurs.
func (h *Handler) Run(ctx context.Context) (err error) {
	control, err := h.sctx.NewSocket(socket.Req)
	if err != nil {
		return Setup(fmt.Errorf("control socket: %w", err))
	}
	defer func() { err = multierr.Append(err, control.Close()) }()
	if err := control.Connect(ControlEndpoint); err != nil {
		return Setup(fmt.Errorf("connect control: %w", err))
	}

	requests, err := h.sctx.NewSocket(socket.Rep)
	if err != nil {
		return Setup(fmt.Errorf("request socket: %w", err))
	}
	if err := requests.Bind(wire.ZAPEndpoint); err != nil {
		requests.Close()
		return Setup(fmt.Errorf("bind %s: %w", wire.ZAPEndpoint, err))
	}

	if err := h.sendControl(ctx, control, ControlGo); err != nil {
		h.release(requests)
		return Setup(err)
	}
	h.cfg.Log.Debug("zap handler started", "fault", h.cfg.Fault.String())

	stopped, disconnected, err := h.serve(ctx, control, requests)
	h.setState(StateTerminated)
	if !disconnected {
		err = multierr.Append(err, h.release(requests))
	}
	if stopped {
		err = multierr.Append(err, h.sendControl(ctx, control, ControlStopped))
	}
	h.cfg.Log.Debug("zap handler terminated", "requests", h.counter.Load(), "error", err)
	return err
}

// serve runs request cycles. It reports whether STOP was received and
// whether the request socket was already abandoned.
func (h *Handler) serve(ctx context.Context, control, requests *socket.Socket) (stopped, disconnected bool, err error) {
	poller := socket.NewPoller(control, requests)
	if h.strategy.skipReceive {
		poller = socket.NewPoller(control)
	}

	for {
		h.setState(StateAwaitEvent)
		idx, err := poller.Wait(ctx)
		if err != nil {
			return false, false, err
		}

		if idx == 0 {
			h.setState(StateControlMessage)
			return h.control(ctx, control)
		}

		h.setState(StateRequestReceived)
		frames, err := requests.Recv(ctx)
		if err != nil {
			return false, false, err
		}
		if h.strategy.disconnect {
			h.cfg.Log.Debug("zap handler abandoning request channel")
			return false, true, h.release(requests)
		}
		if err := h.handle(ctx, requests, frames); err != nil {
			return false, false, err
		}
	}
}

func (h *Handler) control(ctx context.Context, control *socket.Socket) (bool, bool, error) {
	msg, err := control.RecvString(ctx)
	if err != nil {
		return false, false, err
	}
	h.logControl(log.DirectionIn, msg)
	if msg != ControlStop {
		return false, false, Protocol(fmt.Errorf("%w: %q", ErrUnexpectedControl, msg))
	}
	return true, false, nil
}

// handle runs one validate and reply cycle.
func (h *Handler) handle(ctx context.Context, requests *socket.Socket, frames [][]byte) error {
	req, err := wire.ParseZAPRequest(frames)
	if err != nil {
		return Protocol(err)
	}
	h.logRequest(req, len(frames))

	h.setState(StateValidate)
	authenticated, err := h.validate(req)
	if err != nil {
		return err
	}

	h.setState(StateReply)
	if reply := h.strategy.replyFrames(req, authenticated); reply != nil {
		if err := requests.Send(ctx, reply); err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
		h.logReply(reply)
	}
	h.counter.Inc()
	return nil
}

// validate checks the request header and credentials. A false result is
// an authentication failure; an error is a protocol violation.
func (h *Handler) validate(req *wire.ZAPRequest) (bool, error) {
	if req.Version != wire.ZAPVersion {
		return false, Protocol(fmt.Errorf("%w: %q", ErrBadVersion, req.Version))
	}
	if req.RoutingID != h.cfg.ExpectedRoutingID {
		return false, Protocol(fmt.Errorf("%w: %q, want %q", ErrBadRoutingID, req.RoutingID, h.cfg.ExpectedRoutingID))
	}

	switch req.Mechanism {
	case wire.MechanismNull:
		return true, nil
	case wire.MechanismPlain:
		if len(req.Credentials) != 2 {
			return false, Protocol(fmt.Errorf("%w: PLAIN with %d frames", ErrMalformedCredentials, len(req.Credentials)))
		}
		return string(req.Credentials[0]) == h.cfg.Username &&
			string(req.Credentials[1]) == h.cfg.Password, nil
	case wire.MechanismCurve:
		if len(req.Credentials) != 1 || len(req.Credentials[0]) != 32 {
			return false, Protocol(fmt.Errorf("%w: CURVE key", ErrMalformedCredentials))
		}
		key, err := curve.KeyFromBytes(req.Credentials[0])
		if err != nil {
			return false, Protocol(fmt.Errorf("%w: %v", ErrMalformedCredentials, err))
		}
		return key.String() == h.cfg.ClientPublicKey, nil
	default:
		return false, Protocol(fmt.Errorf("%w: %q", ErrUnsupportedMechanism, req.Mechanism))
	}
}

func (h *Handler) sendControl(ctx context.Context, control *socket.Socket, token string) error {
	if err := control.SendString(ctx, token); err != nil {
		return fmt.Errorf("send %s: %w", token, err)
	}
	h.logControl(log.DirectionOut, token)
	return nil
}

func (h *Handler) release(requests *socket.Socket) error {
	return multierr.Append(requests.Unbind(wire.ZAPEndpoint), requests.Close())
}

func (h *Handler) logRequest(req *wire.ZAPRequest, frames int) {
	h.cfg.Logger.Log(log.Stamp(log.Event{
		Direction:  log.DirectionIn,
		Layer:      log.LayerZAP,
		Category:   log.CategoryMessage,
		LocalRole:  log.RoleBroker,
		RemoteAddr: req.Address,
		Mechanism:  req.Mechanism,
		ZAP: &log.ZAPEvent{
			Type:       log.ZAPRequest,
			Sequence:   req.Sequence,
			Domain:     req.Domain,
			RoutingID:  req.RoutingID,
			FrameCount: frames,
		},
	}))
}

func (h *Handler) logReply(frames [][]byte) {
	ev := &log.ZAPEvent{
		Type:       log.ZAPReply,
		Sequence:   string(frames[1]),
		StatusCode: string(frames[2]),
		UserID:     string(frames[4]),
		FrameCount: len(frames),
	}
	if h.cfg.Fault != FaultNone {
		ev.Fault = h.cfg.Fault.String()
	}
	h.cfg.Logger.Log(log.Stamp(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerZAP,
		Category:  log.CategoryMessage,
		LocalRole: log.RoleBroker,
		ZAP:       ev,
	}))
}

func (h *Handler) logControl(dir log.Direction, token string) {
	h.cfg.Logger.Log(log.Stamp(log.Event{
		Direction: dir,
		Layer:     log.LayerZAP,
		Category:  log.CategoryControl,
		LocalRole: log.RoleBroker,
		ZAP:       &log.ZAPEvent{Type: log.ZAPControl, Control: token},
	}))
}
