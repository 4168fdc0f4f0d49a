// Package wire defines the message formats exchanged by the broker harness.
//
// Two formats live here:
//
//   - ZAP messages: multi-frame requests and replies exchanged between a
//     secured endpoint and its authentication broker over the inproc
//     endpoint ZAPEndpoint.
//   - Greeting commands: CBOR-encoded HELLO, READY and ERROR commands that
//     endpoints exchange on a TCP connection before any user traffic.
//
// # ZAP Request
//
//	┌─────────┬──────────┬────────┬─────────┬──────────┬───────────┬─────────────┐
//	│ "1.0"   │ sequence │ domain │ address │ identity │ mechanism │ credentials │
//	└─────────┴──────────┴────────┴─────────┴──────────┴───────────┴─────────────┘
//
// Credentials: CURVE carries one 32-byte client key, PLAIN carries the
// username and password frames, NULL carries nothing.
//
// # ZAP Reply
//
//	┌─────────┬──────────┬────────┬──────┬─────────┬──────────┐
//	│ "1.0"   │ sequence │ status │ text │ user id │ metadata │
//	└─────────┴──────────┴────────┴──────┴─────────┴──────────┘
//
// Status codes are 200 (success), 300 (temporary failure), 400
// (authentication failure) and 500 (internal error). ParseZAPReply maps
// every deviation from this layout to a ProtocolError code.
package wire
