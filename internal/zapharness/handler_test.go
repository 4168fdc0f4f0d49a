package zapharness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-zap/pkg/curve"
	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/socket"
	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// handlerRig runs a handler with the control channel and a ZAP requester
// on inproc sockets only.
type handlerRig struct {
	sctx      *socket.Context
	control   *socket.Socket
	requester *socket.Socket
	handler   *Handler
	task      *handlerTask
	counter   *RequestCounter
}

func startHandlerRig(t *testing.T, cfg HandlerConfig) *handlerRig {
	t.Helper()
	sctx := socket.NewContext()
	t.Cleanup(func() { sctx.Close() })

	control, err := sctx.NewSocket(socket.Rep)
	require.NoError(t, err)
	require.NoError(t, control.Bind(ControlEndpoint))

	counter := &RequestCounter{}
	h, err := NewHandler(sctx, counter, cfg)
	require.NoError(t, err)
	task := startHandlerTask(h, control)
	require.NoError(t, task.awaitReady(timeoutCtx(t, 2*time.Second)))

	requester, err := sctx.NewSocket(socket.Req)
	require.NoError(t, err)
	require.NoError(t, requester.Connect(wire.ZAPEndpoint))

	rig := &handlerRig{sctx: sctx, control: control, requester: requester, handler: h, task: task, counter: counter}
	t.Cleanup(func() { rig.task.join() })
	return rig
}

func timeoutCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

func (r *handlerRig) ask(t *testing.T, req *wire.ZAPRequest) [][]byte {
	t.Helper()
	require.NoError(t, r.requester.Send(timeoutCtx(t, time.Second), req.Frames()))
	reply, err := r.requester.Recv(timeoutCtx(t, 2*time.Second))
	require.NoError(t, err)
	return reply
}

func (r *handlerRig) askExpectingSilence(t *testing.T, req *wire.ZAPRequest) {
	t.Helper()
	require.NoError(t, r.requester.Send(timeoutCtx(t, time.Second), req.Frames()))
	_, err := r.requester.Recv(timeoutCtx(t, 200*time.Millisecond))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func zapRequest(mechanism string, credentials ...[]byte) *wire.ZAPRequest {
	req := testRequest()
	req.Mechanism = mechanism
	req.Credentials = credentials
	return req
}

func TestHandlerValidation(t *testing.T) {
	client, err := curve.GenerateKeyPair()
	require.NoError(t, err)
	other, err := curve.GenerateKeyPair()
	require.NoError(t, err)

	rig := startHandlerRig(t, HandlerConfig{ClientPublicKey: client.PublicText()})

	tests := []struct {
		name   string
		req    *wire.ZAPRequest
		status string
		userID string
	}{
		{"null", zapRequest(wire.MechanismNull), "200", "anonymous"},
		{"plain accepted", zapRequest(wire.MechanismPlain, []byte("testuser"), []byte("testpass")), "200", "anonymous"},
		{"plain wrong password", zapRequest(wire.MechanismPlain, []byte("testuser"), []byte("nope")), "400", ""},
		{"plain wrong user", zapRequest(wire.MechanismPlain, []byte("admin"), []byte("testpass")), "400", ""},
		{"curve accepted", zapRequest(wire.MechanismCurve, client.Public[:]), "200", "anonymous"},
		{"curve unknown key", zapRequest(wire.MechanismCurve, other.Public[:]), "400", ""},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := rig.ask(t, tt.req)
			require.Len(t, reply, 6)
			assert.Equal(t, "1.0", string(reply[0]))
			assert.Equal(t, tt.req.Sequence, string(reply[1]))
			assert.Equal(t, tt.status, string(reply[2]))
			assert.Equal(t, tt.userID, string(reply[4]))
			assert.Equal(t, int64(i+1), rig.counter.Load())
		})
	}

	require.NoError(t, rig.task.stop(timeoutCtx(t, 2*time.Second)))
	require.NoError(t, rig.task.join())
	assert.Equal(t, StateTerminated, rig.handler.State())
}

func TestHandlerProtocolViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*wire.ZAPRequest)
		want   error
	}{
		{"version", func(r *wire.ZAPRequest) { r.Version = "2.0" }, ErrBadVersion},
		{"routing id", func(r *wire.ZAPRequest) { r.RoutingID = "OTHER" }, ErrBadRoutingID},
		{"mechanism", func(r *wire.ZAPRequest) { r.Mechanism = "GSSAPI" }, ErrUnsupportedMechanism},
		{"plain frames", func(r *wire.ZAPRequest) {
			r.Mechanism = wire.MechanismPlain
			r.Credentials = [][]byte{[]byte("testuser")}
		}, ErrMalformedCredentials},
		{"curve key size", func(r *wire.ZAPRequest) {
			r.Mechanism = wire.MechanismCurve
			r.Credentials = [][]byte{[]byte("short")}
		}, ErrMalformedCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := startHandlerRig(t, HandlerConfig{})
			req := testRequest()
			tt.mutate(req)
			require.NoError(t, rig.requester.Send(timeoutCtx(t, time.Second), req.Frames()))

			select {
			case <-rig.task.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("handler kept running after a protocol violation")
			}
			err := rig.task.join()
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, ErrCatProtocol, CategoryOf(err))
			assert.Zero(t, rig.counter.Load())

			// The stop exchange reports the same failure instead of hanging.
			assert.ErrorIs(t, rig.task.stop(timeoutCtx(t, time.Second)), tt.want)
		})
	}
}

func TestHandlerRejectsUnknownControl(t *testing.T) {
	rig := startHandlerRig(t, HandlerConfig{})
	require.NoError(t, rig.control.SendString(timeoutCtx(t, time.Second), "PAUSE"))

	<-rig.task.Done()
	err := rig.task.join()
	assert.ErrorIs(t, err, ErrUnexpectedControl)
	assert.Equal(t, ErrCatProtocol, CategoryOf(err))
}

func TestHandlerStopReleasesZAPEndpoint(t *testing.T) {
	rig := startHandlerRig(t, HandlerConfig{})
	require.NoError(t, rig.task.stop(timeoutCtx(t, 2*time.Second)))
	require.NoError(t, rig.task.join())

	again, err := rig.sctx.NewSocket(socket.Rep)
	require.NoError(t, err)
	defer again.Close()
	assert.NoError(t, again.Bind(wire.ZAPEndpoint))
}

func TestHandlerDisconnectFault(t *testing.T) {
	rig := startHandlerRig(t, HandlerConfig{Fault: FaultDisconnect})
	rig.askExpectingSilence(t, zapRequest(wire.MechanismNull))

	select {
	case <-rig.task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not terminate")
	}
	require.NoError(t, rig.task.join())
	assert.Zero(t, rig.counter.Load())

	_, err := rig.control.RecvString(timeoutCtx(t, 100*time.Millisecond))
	assert.ErrorIs(t, err, context.DeadlineExceeded, "no STOPPED after disconnect")
}

func TestHandlerDoNotSendFault(t *testing.T) {
	rig := startHandlerRig(t, HandlerConfig{Fault: FaultDoNotSend})
	rig.askExpectingSilence(t, zapRequest(wire.MechanismNull))

	assert.Eventually(t, func() bool { return rig.counter.Load() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, rig.task.stop(timeoutCtx(t, 2*time.Second)))
}

func TestHandlerDoNotRecvFault(t *testing.T) {
	rig := startHandlerRig(t, HandlerConfig{Fault: FaultDoNotRecv})
	rig.askExpectingSilence(t, zapRequest(wire.MechanismNull))

	assert.Zero(t, rig.counter.Load())
	assert.Equal(t, StateAwaitEvent, rig.handler.State())
	require.NoError(t, rig.task.stop(timeoutCtx(t, 2*time.Second)))
}

func TestHandlerStopsWithQueuedRequest(t *testing.T) {
	rig := startHandlerRig(t, HandlerConfig{Fault: FaultDoNotRecv})
	require.NoError(t, rig.requester.Send(timeoutCtx(t, time.Second), zapRequest(wire.MechanismNull).Frames()))
	require.NoError(t, rig.task.stop(timeoutCtx(t, 2*time.Second)))
	assert.Zero(t, rig.counter.Load())
}

func TestHandlerLogsBrokerTraffic(t *testing.T) {
	rec := &log.Recorder{}
	rig := startHandlerRig(t, HandlerConfig{Fault: FaultStatusTemporaryFailure, Logger: rec})
	rig.ask(t, zapRequest(wire.MechanismNull))
	require.NoError(t, rig.task.stop(timeoutCtx(t, 2*time.Second)))

	var controls []string
	var request, reply *log.ZAPEvent
	for _, ev := range rec.Events() {
		if ev.ZAP == nil {
			continue
		}
		assert.Equal(t, log.RoleBroker, ev.LocalRole)
		switch ev.ZAP.Type {
		case log.ZAPControl:
			controls = append(controls, ev.ZAP.Control)
		case log.ZAPRequest:
			request = ev.ZAP
		case log.ZAPReply:
			reply = ev.ZAP
		}
	}

	assert.Equal(t, []string{"GO", "STOP", "STOPPED"}, controls)
	require.NotNil(t, request)
	assert.Equal(t, "IDENT", request.RoutingID)
	assert.Equal(t, 6, request.FrameCount)
	require.NotNil(t, reply)
	assert.Equal(t, "300", reply.StatusCode)
	assert.Equal(t, "temp-failure", reply.Fault)
}

func TestNewHandlerRequiresCounter(t *testing.T) {
	_, err := NewHandler(socket.NewContext(), nil, HandlerConfig{})
	assert.Equal(t, ErrCatSetup, CategoryOf(err))

	_, err = NewHandler(socket.NewContext(), &RequestCounter{}, HandlerConfig{Fault: FaultMode(42)})
	assert.Equal(t, ErrCatSetup, CategoryOf(err))
}
