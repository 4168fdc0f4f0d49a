package transport

import "time"

// FrameReadWriter provides length-prefixed frame I/O.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

// MessageConn carries greeting commands and multipart messages.
type MessageConn interface {
	ID() string
	RemoteIP() string
	SetDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	WriteCommand(cmd any) error
	ReadCommand() (any, error)
	WriteMessage(frames [][]byte) error
	ReadMessage() ([][]byte, error)
	Close() error
}

var (
	_ FrameReadWriter = (*Framer)(nil)
	_ MessageConn     = (*Conn)(nil)
)
