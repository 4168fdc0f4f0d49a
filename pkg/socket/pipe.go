package socket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/mash-zap/pkg/transport"
)

// peer is where a message goes when a socket sends to it.
type peer interface {
	id() string
	deliver(ctx context.Context, msg [][]byte) error
	// detach tells a waiting sender that its message will never be
	// answered.
	detach()
}

// envelope is a received message and the peer to answer it on.
type envelope struct {
	from peer
	msg  [][]byte
}

// inprocPipe delivers into another socket's inbox. Every inproc
// connection is a pair of pipes, each the other's reply address.
type inprocPipe struct {
	pipeID   string
	endpoint string
	dst      *Socket
	back     *inprocPipe
	dead     atomic.Bool
}

func newInprocPair(endpoint string, from, to *Socket) (fwd, back *inprocPipe) {
	fwd = &inprocPipe{pipeID: uuid.NewString(), endpoint: endpoint, dst: to}
	back = &inprocPipe{pipeID: uuid.NewString(), endpoint: endpoint, dst: from}
	fwd.back, back.back = back, fwd
	return fwd, back
}

func (p *inprocPipe) id() string { return p.pipeID }

func (p *inprocPipe) deliver(ctx context.Context, msg [][]byte) error {
	if p.dead.Load() {
		return ErrPipeClosed
	}
	return p.dst.enqueue(ctx, envelope{from: p.back, msg: msg})
}

func (p *inprocPipe) detach() {}

// sever kills both directions and drops the reverse pipe from the far
// socket.
func (p *inprocPipe) sever() {
	p.dead.Store(true)
	p.back.dead.Store(true)
	p.dst.removePipe(p.back)
}

// replySlot is the one-shot reply address of a ZAP request.
type replySlot struct {
	slotID string
	reply  chan [][]byte
	gone   chan struct{}
	once   sync.Once
}

func newReplySlot() *replySlot {
	return &replySlot{
		slotID: uuid.NewString(),
		reply:  make(chan [][]byte, 1),
		gone:   make(chan struct{}),
	}
}

func (r *replySlot) id() string { return r.slotID }

func (r *replySlot) deliver(_ context.Context, msg [][]byte) error {
	select {
	case r.reply <- msg:
		return nil
	default:
		return ErrPipeClosed
	}
}

func (r *replySlot) detach() {
	r.once.Do(func() { close(r.gone) })
}

// tcpPipe sends over an established, authenticated connection.
type tcpPipe struct {
	conn     *transport.Conn
	endpoint string
	dead     atomic.Bool
}

func (p *tcpPipe) id() string { return p.conn.ID() }

func (p *tcpPipe) deliver(ctx context.Context, msg [][]byte) error {
	if p.dead.Load() {
		return ErrPipeClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(deadline)
		defer p.conn.SetWriteDeadline(time.Time{})
	}
	if err := p.conn.WriteMessage(msg); err != nil {
		p.dead.Store(true)
		return ErrPipeClosed
	}
	return nil
}

func (p *tcpPipe) detach() {}
