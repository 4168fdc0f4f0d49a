package wire

import (
	"errors"
	"fmt"
)

// ProtocolCode identifies a handshake protocol failure. Values are carried
// in ERROR commands and reported as the value of failed-protocol events.
type ProtocolCode uint32

// Greeting protocol failures.
const (
	ProtocolUnspecified       ProtocolCode = 0x10000000
	ProtocolUnexpectedCommand ProtocolCode = 0x10000001
	ProtocolMalformedCommand  ProtocolCode = 0x10000002
	ProtocolMechanismMismatch ProtocolCode = 0x10000003
	ProtocolCryptographic     ProtocolCode = 0x10000004
)

// ZAP protocol failures.
const (
	ProtocolZAPUnspecified       ProtocolCode = 0x20000000
	ProtocolZAPMalformedReply    ProtocolCode = 0x20000001
	ProtocolZAPBadRequestID      ProtocolCode = 0x20000002
	ProtocolZAPBadVersion        ProtocolCode = 0x20000003
	ProtocolZAPInvalidStatusCode ProtocolCode = 0x20000004
	ProtocolZAPInvalidMetadata   ProtocolCode = 0x20000005
)

// String returns the code name.
func (c ProtocolCode) String() string {
	switch c {
	case ProtocolUnspecified:
		return "UNSPECIFIED"
	case ProtocolUnexpectedCommand:
		return "UNEXPECTED_COMMAND"
	case ProtocolMalformedCommand:
		return "MALFORMED_COMMAND"
	case ProtocolMechanismMismatch:
		return "MECHANISM_MISMATCH"
	case ProtocolCryptographic:
		return "CRYPTOGRAPHIC"
	case ProtocolZAPUnspecified:
		return "ZAP_UNSPECIFIED"
	case ProtocolZAPMalformedReply:
		return "ZAP_MALFORMED_REPLY"
	case ProtocolZAPBadRequestID:
		return "ZAP_BAD_REQUEST_ID"
	case ProtocolZAPBadVersion:
		return "ZAP_BAD_VERSION"
	case ProtocolZAPInvalidStatusCode:
		return "ZAP_INVALID_STATUS_CODE"
	case ProtocolZAPInvalidMetadata:
		return "ZAP_INVALID_METADATA"
	default:
		return fmt.Sprintf("PROTOCOL_0x%08x", uint32(c))
	}
}

var protocolCodes = []ProtocolCode{
	ProtocolUnspecified, ProtocolUnexpectedCommand, ProtocolMalformedCommand,
	ProtocolMechanismMismatch, ProtocolCryptographic,
	ProtocolZAPUnspecified, ProtocolZAPMalformedReply, ProtocolZAPBadRequestID,
	ProtocolZAPBadVersion, ProtocolZAPInvalidStatusCode, ProtocolZAPInvalidMetadata,
}

// ParseProtocolCode parses a code name as returned by String.
func ParseProtocolCode(name string) (ProtocolCode, error) {
	for _, c := range protocolCodes {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown protocol code %q", name)
}

// ProtocolError is a handshake failure with a protocol code.
type ProtocolError struct {
	Code   ProtocolCode
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return "protocol error: " + e.Code.String()
	}
	return fmt.Sprintf("protocol error: %s: %s", e.Code, e.Detail)
}

// NewProtocolError creates a ProtocolError with a formatted detail.
func NewProtocolError(code ProtocolCode, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// ProtocolCodeOf extracts the protocol code from err, if any.
func ProtocolCodeOf(err error) (ProtocolCode, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// Message errors.
var (
	// ErrEmptyMessage indicates a message without frames.
	ErrEmptyMessage = errors.New("message has no frames")

	// ErrMalformedRequest indicates a ZAP request with too few frames.
	ErrMalformedRequest = errors.New("malformed ZAP request")

	// ErrInvalidCommand indicates an undecodable greeting command.
	ErrInvalidCommand = errors.New("invalid greeting command")
)
