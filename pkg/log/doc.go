// Package log provides structured protocol logging for the broker harness.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, handshake, ZAP).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog or zap
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//	cfg.Logger = log.NewZapAdapter(zapLogger)
//
//	// For later analysis: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/tmp/zap-run.mlog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(console, file)
//
// # Event Types
//
//   - Transport: Raw frame bytes (FrameEvent)
//   - Handshake: Greeting state changes and monitor outcomes (HandshakeEvent)
//   - ZAP: Broker requests, replies and control tokens (ZAPEvent)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys.
// Reader iterates a file with an optional Filter.
package log
