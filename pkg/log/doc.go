// Package log provides structured liveness-event logging for vigil.
//
// This package defines the Logger interface and Event types for capturing
// connection-liveness events at two layers (transport framing and the
// keepalive scheduler). It is separate from operational logging (slog) -
// event capture provides a complete machine-readable trace of probes,
// acknowledgments, terminations, and state changes for debugging and
// analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	capture, _ := log.NewFileLogger("/var/log/vigil/probes.vlog")
//	cfg.ProtocolLogger = capture
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    capture,
//	)
//
// # Event Types
//
// Events are captured at two layers:
//   - Transport: raw frame bytes (FrameEvent) and control messages
//     ping/pong/close (ControlMsgEvent)
//   - Liveness: tracking state changes (StateChangeEvent) and per-connection
//     failures (ErrorEventData)
//
// # File Format
//
// Log files use CBOR encoding with .vlog extension. The Reader type provides
// decoding and filtering of captured traces.
package log
