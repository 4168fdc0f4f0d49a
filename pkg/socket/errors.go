package socket

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/mash-protocol/mash-zap/pkg/transport"
)

var (
	ErrClosed           = errors.New("socket closed")
	ErrContextClosed    = errors.New("context closed")
	ErrInvalidEndpoint  = errors.New("invalid endpoint")
	ErrEndpointInUse    = errors.New("endpoint already bound")
	ErrEndpointNotFound = errors.New("endpoint not bound")
	ErrNoRequest        = errors.New("no request to reply to")
	ErrPipeClosed       = errors.New("pipe closed")
	ErrInvalidOption    = errors.New("invalid option value")
)

// Errno values carried by EventHandshakeFailedNoDetail.
var (
	ErrnoPipe        = int(unix.EPIPE)
	ErrnoConnReset   = int(unix.ECONNRESET)
	ErrnoConnAborted = int(unix.ECONNABORTED)
	ErrnoTimedOut    = int(unix.ETIMEDOUT)
	ErrnoFault       = int(unix.EFAULT)
	ErrnoProto       = int(unix.EPROTO)
)

// errnoOf maps a stream error to the errno a handshake failure reports.
func errnoOf(err error) int {
	var errno syscall.Errno
	switch {
	case err == nil:
		return 0
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrnoTimedOut
	case errors.Is(err, io.EOF), errors.Is(err, transport.ErrFrameTruncated):
		return ErrnoConnReset
	case errors.Is(err, net.ErrClosed), errors.Is(err, transport.ErrConnectionClosed):
		return ErrnoConnAborted
	case errors.Is(err, ErrPipeClosed):
		return ErrnoPipe
	case errors.As(err, &errno):
		return int(errno)
	default:
		return ErrnoProto
	}
}
