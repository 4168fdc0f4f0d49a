// Package socket is a small in-process endpoint library with security
// handshakes and ZAP forwarding.
//
// Sockets live in a Context and talk over two transports:
//
//   - inproc://name  channels between sockets of the same Context
//   - tcp://host:port  length-prefixed CBOR frames (pkg/transport)
//
// A TCP connection is usable only after a greeting: the connecting side
// sends HELLO with its mechanism (NULL, PLAIN or CURVE) and credentials,
// the accepting side answers READY or ERROR. When authentication is
// required, the accepting side forwards a request to whatever socket is
// bound at inproc://zeromq.zap.01 and waits for its reply. Every outcome
// is reported on the socket's monitors as one of four handshake events.
//
//	ctx := socket.NewContext()
//	defer ctx.Close()
//
//	srv, _ := ctx.NewSocket(socket.Dealer)
//	_ = srv.SetPlainServer(true)
//	_ = srv.SetZAPDomain("global")
//	_ = srv.Bind("tcp://127.0.0.1:0")
//	mon := srv.Monitor(socket.HandshakeEvents)
//
// There is no reconnection: a connection that fails its handshake is gone.
package socket
