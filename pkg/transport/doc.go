// Package transport carries endpoint traffic over TCP.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│  Greeting commands / multipart │
//	├────────────────────────────────┤
//	│      CBOR (pkg/wire)           │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// A connection starts with exactly one HELLO from the connecting side,
// answered by READY or ERROR. After READY both sides exchange multipart
// messages, each encoded as a single frame. The security handshake itself
// lives in pkg/socket; this package only moves frames.
package transport
