// Package probe contains the single-shot liveness probe used by the CLI and
// the watch agent.
//
// # Overview
//
// The probe package provides one bounded, deterministic check of an HTTP
// server: open a TCP connection, write one fixed request, and collect
// whatever comes back until the peer closes the stream or a read idles past
// the configured timeout. Probes accept a context, record per-step
// latencies, and return explicit errors without retries or background
// goroutines.
//
// # Probe Sequence
//
// Run performs the following sequence:
//  1. Optional settle wait (SettleDelay) so a just-started server can bind.
//  2. TCP connect to the target (sets Connected on success).
//  3. One write of the whole request payload (sets Sent on success).
//  4. Receive loop: append chunks in arrival order until the peer closes,
//     a read exceeds ReadTimeout, or the read fails.
//  5. Unconditional connection close, then report finalization.
//
// Inputs & Configuration
//
//   - Config.Host/Port:       target endpoint (defaults to 127.0.0.1:8080).
//   - Config.SettleDelay:     wait before connecting (default zero).
//   - Config.ReadTimeout:     per-read idle bound (default 5s).
//   - Config.Request:         payload override; default is an HTTP/1.1 GET
//     with a Host header and terminating blank line.
//   - Config.RequireResponse: fail the verdict when nothing was received.
//   - Config.ChunkSize:       per-read buffer size (default 1024).
//
// Outputs & Semantics
//
// Run returns a core.Report capturing:
//   - Connected:   true if the TCP connect succeeded.
//   - Sent:        true if the request payload was fully written.
//   - Response:    every received byte, in arrival order, unmodified.
//   - PeerClosed:  the peer ended the exchange with an orderly close.
//   - TimedOut:    a read idled past ReadTimeout (response treated as done).
//   - ReceiveErr:  receive-side failure (e.g. reset); never fatal by itself.
//   - LatenciesMs: per-step timings in ms ("connect", "send", "receive").
//   - Warnings:    non-fatal anomalies collected during the run.
//   - Verdict:     success or failure, matching the returned error.
//
// # Idle Timeout Policy
//
// The probe never parses what it receives, so it cannot know from
// Content-Length or chunked framing when a response "ends". It substitutes
// an explicit policy: a read that idles past ReadTimeout means the peer has
// nothing more to send, and the response is complete as collected. The
// deadline is re-armed before every read, so the timeout bounds each
// individual wait rather than the whole exchange. An orderly close
// short-circuits the wait.
//
// # Error Model
//
// Only pre-receive failures are fatal: *ConnectError when the TCP connect
// fails and *SendError when the payload cannot be written. Receive-side
// trouble (idle timeout, connection reset) is recorded on the report and
// leaves the verdict successful, unless Config.RequireResponse promotes an
// empty response to ErrNoResponse. The report always includes partial
// timings and warnings, whatever the outcome.
//
// # Implementation Notes
//
// The probe enforces deadlines with context-aware dialing and per-read
// SetReadDeadline, avoids global state, and does not spawn background
// goroutines. It is safe to call concurrently.
package probe
