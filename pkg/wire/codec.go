package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for greeting commands and multipart messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical, // Deterministic key ordering
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsEmpty,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet, // Ignore duplicate keys (last wins)
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeMultipart encodes an ordered list of frames as a CBOR array of byte
// strings. Empty frames are preserved.
func EncodeMultipart(frames [][]byte) ([]byte, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyMessage
	}
	out := make([][]byte, len(frames))
	for i, f := range frames {
		if f == nil {
			f = []byte{}
		}
		out[i] = f
	}
	return Marshal(out)
}

// DecodeMultipart decodes data produced by EncodeMultipart.
func DecodeMultipart(data []byte) ([][]byte, error) {
	var frames [][]byte
	if err := Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("failed to decode multipart message: %w", err)
	}
	if len(frames) == 0 {
		return nil, ErrEmptyMessage
	}
	for i, f := range frames {
		if f == nil {
			frames[i] = []byte{}
		}
	}
	return frames, nil
}

// FramesEqual reports whether two multipart messages carry the same frames.
func FramesEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
