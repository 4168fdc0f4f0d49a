package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/mash-protocol/mash-zap/pkg/log"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"single byte", []byte{0x42}},
		{"text", []byte("HELLO")},
		{"binary", []byte{0x00, 0xFF, 0x7F, 0x80}},
		{"max size", bytes.Repeat([]byte("y"), DefaultMaxMessageSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFrameWriter(&buf, 0).WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if buf.Len() != LengthPrefixSize+len(tt.payload) {
				t.Errorf("frame size = %d, want %d", buf.Len(), LengthPrefixSize+len(tt.payload))
			}
			got, err := NewFrameReader(&buf, 0).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(got), len(tt.payload))
			}
		})
	}
}

func TestFrameErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf, 8)
	if err := w.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("empty: got %v", err)
	}
	if err := w.WriteFrame(make([]byte, 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversize write: got %v", err)
	}

	prefix := func(n uint32, tail ...byte) *bytes.Reader {
		b := make([]byte, LengthPrefixSize, LengthPrefixSize+len(tail))
		binary.BigEndian.PutUint32(b, n)
		return bytes.NewReader(append(b, tail...))
	}

	tests := []struct {
		name string
		in   io.Reader
		want error
	}{
		{"eof", bytes.NewReader(nil), io.EOF},
		{"short prefix", bytes.NewReader([]byte{0, 0}), ErrFrameTruncated},
		{"zero length", prefix(0), ErrMessageEmpty},
		{"too large", prefix(9), ErrMessageTooLarge},
		{"short payload", prefix(4, 'a', 'b'), ErrFrameTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameReader(tt.in, 8).ReadFrame()
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

// lockedBuffer lets concurrent writers share a bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestFrameWriterConcurrent(t *testing.T) {
	var lb lockedBuffer
	w := NewFrameWriter(&lb, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = w.WriteFrame(bytes.Repeat([]byte{b}, 16))
			}
		}(byte(i))
	}
	wg.Wait()

	r := NewFrameReader(&lb.buf, 0)
	for n := 0; n < 200; n++ {
		frame, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", n, err)
		}
		if !bytes.Equal(frame, bytes.Repeat(frame[:1], 16)) {
			t.Fatalf("frame %d interleaved: %v", n, frame)
		}
	}
}

func TestFramerLogsFrames(t *testing.T) {
	var buf bytes.Buffer
	rec := &log.Recorder{}
	f := NewFramer(&buf, 0)
	f.SetLogger(rec, "conn-1", log.RoleServer)

	big := bytes.Repeat([]byte("z"), MaxLogFrameDataSize+10)
	if err := f.WriteFrame(big); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := f.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	out, in := events[0], events[1]
	if out.Direction != log.DirectionOut || in.Direction != log.DirectionIn {
		t.Errorf("directions = %v, %v", out.Direction, in.Direction)
	}
	if out.ConnectionID != "conn-1" || out.LocalRole != log.RoleServer {
		t.Errorf("unexpected identity: %+v", out)
	}
	if !out.Frame.Truncated || len(out.Frame.Data) != MaxLogFrameDataSize {
		t.Errorf("frame data not truncated: %d bytes", len(out.Frame.Data))
	}
	if out.Frame.Size != LengthPrefixSize+len(big) {
		t.Errorf("frame size = %d", out.Frame.Size)
	}
}
