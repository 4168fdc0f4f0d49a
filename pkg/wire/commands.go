package wire

import (
	"fmt"
)

// Greeting command types.
const (
	// CmdHello opens a handshake (client to server).
	CmdHello uint8 = 1

	// CmdReady completes a handshake (server to client).
	CmdReady uint8 = 2

	// CmdError aborts a handshake (server to client).
	CmdError uint8 = 255
)

// HelloCommand announces the client's mechanism and credentials.
// CBOR: { 1: cmd, 2: mechanism, 3: routingId, 4: username, 5: password,
// 6: clientKey, 7: nonce, 8: vouch }
type HelloCommand struct {
	Cmd       uint8  `cbor:"1,keyasint"`
	Mechanism string `cbor:"2,keyasint"`
	RoutingID string `cbor:"3,keyasint,omitempty"`
	Username  []byte `cbor:"4,keyasint,omitempty"`
	Password  []byte `cbor:"5,keyasint,omitempty"`
	ClientKey []byte `cbor:"6,keyasint,omitempty"`
	Nonce     []byte `cbor:"7,keyasint,omitempty"`
	Vouch     []byte `cbor:"8,keyasint,omitempty"`
}

// ReadyCommand admits the client.
// CBOR: { 1: cmd, 2: userId }
type ReadyCommand struct {
	Cmd    uint8  `cbor:"1,keyasint"`
	UserID string `cbor:"2,keyasint,omitempty"`
}

// ErrorCommand rejects the client. Exactly one of Status or Code is set:
// Status for an authentication outcome, Code for a protocol failure.
// CBOR: { 1: cmd, 2: status, 3: code, 4: reason }
type ErrorCommand struct {
	Cmd    uint8        `cbor:"1,keyasint"`
	Status string       `cbor:"2,keyasint,omitempty"`
	Code   ProtocolCode `cbor:"3,keyasint,omitempty"`
	Reason string       `cbor:"4,keyasint,omitempty"`
}

// EncodeCommand encodes a greeting command, filling in its type.
func EncodeCommand(cmd any) ([]byte, error) {
	switch c := cmd.(type) {
	case *HelloCommand:
		c.Cmd = CmdHello
	case *ReadyCommand:
		c.Cmd = CmdReady
	case *ErrorCommand:
		c.Cmd = CmdError
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidCommand, cmd)
	}
	return Marshal(cmd)
}

// DecodeCommand decodes a greeting command to its concrete type.
func DecodeCommand(data []byte) (any, error) {
	var header struct {
		Cmd uint8 `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	var cmd any
	switch header.Cmd {
	case CmdHello:
		cmd = &HelloCommand{}
	case CmdReady:
		cmd = &ReadyCommand{}
	case CmdError:
		cmd = &ErrorCommand{}
	default:
		return nil, fmt.Errorf("%w: unknown command type %d", ErrInvalidCommand, header.Cmd)
	}
	if err := Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return cmd, nil
}
