package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the pipe or connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this side is a client, server or broker.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port or inproc name).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Mechanism is the security mechanism in use, if known.
	Mechanism string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	ZAP         *ZAPEvent         `cbor:"11,keyasint,omitempty"` // Broker traffic
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Handshake/broker state
	Handshake   *HandshakeEvent   `cbor:"13,keyasint,omitempty"` // Monitor outcome
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerHandshake is the security greeting layer.
	LayerHandshake Layer = 1
	// LayerZAP is the authentication broker layer.
	LayerZAP Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerHandshake:
		return "HANDSHAKE"
	case LayerZAP:
		return "ZAP"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryControl indicates a broker control message (GO/STOP/STOPPED).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates the local side of the exchange.
type Role uint8

const (
	// RoleClient indicates a connecting endpoint.
	RoleClient Role = 0
	// RoleServer indicates an accepting endpoint.
	RoleServer Role = 1
	// RoleBroker indicates the authentication broker.
	RoleBroker Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	case RoleBroker:
		return "BROKER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// ZAPEvent captures a broker request, reply or control message.
type ZAPEvent struct {
	// Type distinguishes request, reply and control traffic.
	Type ZAPMessageType `cbor:"1,keyasint"`

	// Sequence is the request sequence token.
	Sequence string `cbor:"2,keyasint,omitempty"`

	// Domain is the authentication domain of the request.
	Domain string `cbor:"3,keyasint,omitempty"`

	// RoutingID is the requesting endpoint's identity.
	RoutingID string `cbor:"4,keyasint,omitempty"`

	// StatusCode is the reply status (reply only).
	StatusCode string `cbor:"5,keyasint,omitempty"`

	// UserID is the reply user id (reply only).
	UserID string `cbor:"6,keyasint,omitempty"`

	// FrameCount is the number of frames in the message.
	FrameCount int `cbor:"7,keyasint,omitempty"`

	// Fault names the injected fault that shaped a reply.
	Fault string `cbor:"8,keyasint,omitempty"`

	// Control is the control token (control only).
	Control string `cbor:"9,keyasint,omitempty"`
}

// ZAPMessageType distinguishes broker traffic.
type ZAPMessageType uint8

const (
	// ZAPRequest is a request from an endpoint.
	ZAPRequest ZAPMessageType = 0
	// ZAPReply is a reply from the broker.
	ZAPReply ZAPMessageType = 1
	// ZAPControl is a control channel message.
	ZAPControl ZAPMessageType = 2
)

// String returns the message type name.
func (m ZAPMessageType) String() string {
	switch m {
	case ZAPRequest:
		return "REQUEST"
	case ZAPReply:
		return "REPLY"
	case ZAPControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures handshake and broker lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityHandshake indicates a handshake state change.
	StateEntityHandshake StateEntity = 1
	// StateEntityBroker indicates a broker state change.
	StateEntityBroker StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityHandshake:
		return "HANDSHAKE"
	case StateEntityBroker:
		return "BROKER"
	default:
		return "UNKNOWN"
	}
}

// HandshakeEvent mirrors a monitor event into the protocol log.
type HandshakeEvent struct {
	// Kind is the monitor event name (e.g. "HANDSHAKE_FAILED_AUTH").
	Kind string `cbor:"1,keyasint"`

	// Value is the event value: status code, protocol code or errno.
	Value int `cbor:"2,keyasint,omitempty"`
}

// ErrorEventData captures error details.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is a human-readable error description.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
