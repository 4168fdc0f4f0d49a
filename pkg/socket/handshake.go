package socket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mash-protocol/mash-zap/pkg/curve"
	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/transport"
	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// handshakeFailure is a greeting that ended without READY.
type handshakeFailure struct {
	kind  EventKind
	value int
	err   error
	// reply is sent to the peer before closing, if set.
	reply *wire.ErrorCommand
}

func noDetail(errno int, err error) *handshakeFailure {
	return &handshakeFailure{kind: EventHandshakeFailedNoDetail, value: errno, err: err}
}

func protocolFailure(code wire.ProtocolCode, err error) *handshakeFailure {
	return &handshakeFailure{
		kind:  EventHandshakeFailedProtocol,
		value: int(code),
		err:   err,
		reply: &wire.ErrorCommand{Code: code, Reason: code.String()},
	}
}

// serveConn runs the accepting side of a greeting and, on success, the
// receive loop of the resulting pipe.
func (s *Socket) serveConn(ctx context.Context, conn *transport.Conn) {
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	opts := s.optionsSnapshot()
	endpoint := "tcp://" + conn.LocalAddr().String()
	mechanism := opts.serverMechanism()

	userID, fail := s.acceptGreeting(ctx, conn, &opts, mechanism)
	if fail == nil {
		_ = conn.SetDeadline(time.Time{})
		if err := conn.WriteCommand(&wire.ReadyCommand{UserID: userID}); err != nil {
			fail = noDetail(errnoOf(err), err)
		}
	}
	s.finishGreeting(conn, log.RoleServer, mechanism, endpoint, fail)
}

func (s *Socket) acceptGreeting(ctx context.Context, conn *transport.Conn, opts *options, mechanism string) (string, *handshakeFailure) {
	deadline := time.Now().Add(opts.handshakeTimeout)
	_ = conn.SetDeadline(deadline)

	cmd, err := conn.ReadCommand()
	if err != nil {
		if errors.Is(err, wire.ErrInvalidCommand) {
			return "", protocolFailure(wire.ProtocolMalformedCommand, err)
		}
		return "", noDetail(errnoOf(err), err)
	}
	hello, ok := cmd.(*wire.HelloCommand)
	if !ok {
		return "", protocolFailure(wire.ProtocolUnexpectedCommand, fmt.Errorf("expected HELLO, got %T", cmd))
	}
	if hello.Mechanism != mechanism {
		return "", protocolFailure(wire.ProtocolMechanismMismatch,
			fmt.Errorf("peer offered %s, want %s", hello.Mechanism, mechanism))
	}

	var credentials [][]byte
	switch mechanism {
	case wire.MechanismPlain:
		credentials = [][]byte{hello.Username, hello.Password}
	case wire.MechanismCurve:
		if opts.curveSecret == nil {
			return "", noDetail(ErrnoFault, errors.New("curve server has no secret key"))
		}
		clientKey, err := curve.KeyFromBytes(hello.ClientKey)
		if err != nil {
			return "", protocolFailure(wire.ProtocolMalformedCommand, err)
		}
		if err := curve.OpenVouch(hello.Vouch, hello.Nonce, clientKey, *opts.curveSecret); err != nil {
			return "", protocolFailure(wire.ProtocolCryptographic, err)
		}
		credentials = [][]byte{clientKey[:]}
	}

	if !opts.zapRequired(mechanism) {
		return "", nil
	}
	return s.authenticate(ctx, conn, opts, mechanism, credentials, deadline)
}

// authenticate forwards the greeting to the ZAP handler and turns its
// reply into a verdict.
func (s *Socket) authenticate(ctx context.Context, conn *transport.Conn, opts *options, mechanism string, credentials [][]byte, deadline time.Time) (string, *handshakeFailure) {
	handler := s.ctx.lookup(stripScheme(wire.ZAPEndpoint))
	if handler == nil {
		if opts.enforceDomain {
			return "", noDetail(ErrnoFault, errors.New("no ZAP handler bound"))
		}
		return "", nil
	}

	req := &wire.ZAPRequest{
		Version:     wire.ZAPVersion,
		Sequence:    s.ctx.nextZAPSequence(),
		Domain:      opts.zapDomain,
		Address:     conn.RemoteIP(),
		RoutingID:   opts.routingID,
		Mechanism:   mechanism,
		Credentials: credentials,
	}
	slot := newReplySlot()

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := handler.enqueue(ctx, envelope{from: slot, msg: req.Frames()}); err != nil {
		return "", noDetail(errnoOf(err), fmt.Errorf("zap request: %w", err))
	}

	var frames [][]byte
	select {
	case frames = <-slot.reply:
	case <-slot.gone:
		return "", noDetail(ErrnoPipe, errors.New("zap handler went away"))
	case <-s.closedCh:
		return "", noDetail(ErrnoConnAborted, ErrClosed)
	case <-ctx.Done():
		return "", noDetail(ErrnoTimedOut, fmt.Errorf("zap reply: %w", ctx.Err()))
	}

	reply, err := wire.ParseZAPReply(frames, req.Sequence)
	if err != nil {
		code, ok := wire.ProtocolCodeOf(err)
		if !ok {
			code = wire.ProtocolZAPUnspecified
		}
		return "", protocolFailure(code, err)
	}
	if !reply.Accepted() {
		return "", &handshakeFailure{
			kind:  EventHandshakeFailedAuth,
			value: wire.StatusValue(reply.StatusCode),
			err:   fmt.Errorf("zap status %s: %s", reply.StatusCode, reply.StatusText),
			reply: &wire.ErrorCommand{Status: reply.StatusCode, Reason: reply.StatusText},
		}
	}
	return reply.UserID, nil
}

// dialConn runs the connecting side of a greeting and, on success, the
// receive loop of the resulting pipe.
func (s *Socket) dialConn(addr, endpoint string) {
	opts := s.optionsSnapshot()

	ctx, cancel := context.WithTimeout(context.Background(), opts.handshakeTimeout)
	go func() {
		select {
		case <-s.closedCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	conn, err := transport.Dial(ctx, addr, transport.DialConfig{Logger: opts.logger})
	cancel()
	if err != nil {
		if !s.isClosed() {
			s.emit(Event{Kind: EventHandshakeFailedNoDetail, Value: errnoOf(err), Err: err, Endpoint: endpoint}, "", log.RoleClient, "")
		}
		return
	}
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	mechanism := opts.clientMechanism()
	fail := s.offerGreeting(conn, &opts, mechanism)
	s.finishGreeting(conn, log.RoleClient, mechanism, endpoint, fail)
}

func (s *Socket) offerGreeting(conn *transport.Conn, opts *options, mechanism string) *handshakeFailure {
	_ = conn.SetDeadline(time.Now().Add(opts.handshakeTimeout))

	hello := &wire.HelloCommand{Mechanism: mechanism, RoutingID: opts.routingID}
	switch mechanism {
	case wire.MechanismPlain:
		hello.Username = opts.plainUsername
		hello.Password = opts.plainPassword
	case wire.MechanismCurve:
		if opts.curveSecret == nil {
			return noDetail(ErrnoFault, errors.New("curve client has no secret key"))
		}
		public := opts.curvePublic
		if public == nil {
			derived, err := curve.PublicFromSecret(*opts.curveSecret)
			if err != nil {
				return noDetail(ErrnoFault, err)
			}
			public = &derived
		}
		nonce, vouch, err := curve.SealVouch(*opts.curveServerKey, *opts.curveSecret)
		if err != nil {
			return noDetail(ErrnoFault, err)
		}
		hello.ClientKey = public[:]
		hello.Nonce = nonce[:]
		hello.Vouch = vouch
	}

	if err := conn.WriteCommand(hello); err != nil {
		return noDetail(errnoOf(err), err)
	}
	cmd, err := conn.ReadCommand()
	if err != nil {
		if errors.Is(err, wire.ErrInvalidCommand) {
			return protocolFailure(wire.ProtocolMalformedCommand, err)
		}
		return noDetail(errnoOf(err), err)
	}

	switch c := cmd.(type) {
	case *wire.ReadyCommand:
		_ = conn.SetDeadline(time.Time{})
		return nil
	case *wire.ErrorCommand:
		if c.Code != 0 {
			return &handshakeFailure{
				kind:  EventHandshakeFailedProtocol,
				value: int(c.Code),
				err:   wire.NewProtocolError(c.Code, "%s", c.Reason),
			}
		}
		return &handshakeFailure{
			kind:  EventHandshakeFailedAuth,
			value: wire.StatusValue(c.Status),
			err:   fmt.Errorf("rejected with status %s: %s", c.Status, c.Reason),
		}
	default:
		return protocolFailure(wire.ProtocolUnexpectedCommand, fmt.Errorf("expected READY or ERROR, got %T", cmd))
	}
}

// finishGreeting reports the outcome and either serves the new pipe until
// it breaks or closes the connection.
func (s *Socket) finishGreeting(conn *transport.Conn, role log.Role, mechanism, endpoint string, fail *handshakeFailure) {
	if fail != nil {
		if fail.reply != nil {
			_ = conn.WriteCommand(fail.reply)
		}
		conn.Close()
		s.emit(Event{Kind: fail.kind, Value: fail.value, Err: fail.err, Endpoint: endpoint}, conn.ID(), role, mechanism)
		return
	}

	s.emit(Event{Kind: EventHandshakeSucceeded, Endpoint: endpoint}, conn.ID(), role, mechanism)
	p := &tcpPipe{conn: conn, endpoint: endpoint}
	s.addPipe(p)
	s.readLoop(p)
}

func (s *Socket) readLoop(p *tcpPipe) {
	defer func() {
		p.dead.Store(true)
		s.removePipe(p)
		p.conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.closedCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if err := s.enqueue(ctx, envelope{from: p, msg: msg}); err != nil {
			return
		}
	}
}

// track registers a live connection so Close can reach it.
func (s *Socket) track(conn *transport.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Socket) untrack(conn *transport.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// emit fans an event out to the monitors whose mask selects it and mirrors
// it into the protocol log.
func (s *Socket) emit(ev Event, connID string, role log.Role, mechanism string) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	s.mu.Lock()
	logger := s.opts.logger
	for _, m := range s.monitors {
		if m.mask&ev.Kind == 0 {
			continue
		}
		select {
		case m.events <- ev:
		default:
		}
	}
	s.mu.Unlock()

	category := log.CategoryState
	if ev.Kind != EventHandshakeSucceeded {
		category = log.CategoryError
	}
	logger.Log(log.Event{
		Timestamp:    ev.Timestamp,
		ConnectionID: connID,
		Layer:        log.LayerHandshake,
		Category:     category,
		LocalRole:    role,
		RemoteAddr:   ev.Endpoint,
		Mechanism:    mechanism,
		Handshake:    &log.HandshakeEvent{Kind: ev.Kind.String(), Value: ev.Value},
	})
}

func stripScheme(endpoint string) string {
	_, addr, _ := splitEndpoint(endpoint)
	return addr
}
