// Package probe implements the single-shot liveness check at the heart of
// zprobe. This file drives one HTTP probe with careful timeouts, clear
// error paths, and precise measurement of per-step latencies.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/monstercameron/zerver-probe/internal/core"
)

// Config controls a single probe execution.
type Config struct {
	// Host is the target hostname or IP. Defaults to DefaultHost.
	Host string

	// Port is the target TCP port (1-65535). Defaults to DefaultPort.
	Port int

	// SettleDelay is how long to wait before the first connection attempt,
	// giving a server started moments earlier time to bind its listening
	// socket. Zero (the default) connects immediately; a harness that
	// launches the server and the probe together typically passes ~1s.
	SettleDelay time.Duration

	// ReadTimeout bounds each individual receive attempt. A read that
	// idles past the window means the peer has nothing more to send and
	// the response is considered complete. If zero, DefaultReadTimeout.
	ReadTimeout time.Duration

	// Request overrides the payload written after connecting. When empty,
	// RequestFor(host, port) is used; for the default target that is the
	// exact DefaultRequest bytes.
	Request []byte

	// RequireResponse, when set, fails the verdict if the receive loop
	// finishes without a single response byte. The default (false) keeps
	// the permissive policy: a run succeeds once connect and send succeed,
	// whatever comes back.
	RequireResponse bool

	// ChunkSize is the per-read buffer size. If zero, DefaultChunkSize.
	ChunkSize int
}

// Sensible defaults for diagnostic probes.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8080
	DefaultReadTimeout = 5 * time.Second
	DefaultChunkSize   = 1024
)

// DefaultRequest is the payload sent to the default target: one well-formed
// HTTP/1.1 GET with a Host header and the terminating blank line. The probe
// never parses the response, so the request only has to be plausible enough
// for an HTTP server to answer it.
var DefaultRequest = []byte("GET / HTTP/1.1\r\nHost: localhost:8080\r\n\r\n")

// Target returns the normalized "host:port" this configuration probes,
// applying the package defaults for unset fields.
func (c Config) Target() string {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// RequestFor builds the default GET payload for a target. The default target
// keeps the exact DefaultRequest bytes; any other target derives its Host
// header from host:port.
func RequestFor(host string, port int) []byte {
	if host == DefaultHost && port == DefaultPort {
		return append([]byte(nil), DefaultRequest...)
	}
	hp := net.JoinHostPort(host, strconv.Itoa(port))
	return []byte("GET / HTTP/1.1\r\nHost: " + hp + "\r\n\r\n")
}

// Run executes one complete connect -> send -> receive -> report cycle:
//  1. Wait out cfg.SettleDelay (aborts early when ctx is canceled).
//  2. TCP connect to host:port.
//  3. Write the whole request payload in one send.
//  4. Accumulate response bytes, in arrival order, until the peer closes,
//     a read idles past ReadTimeout, or the read fails.
//  5. Close the connection (on every exit path) and finalize the report.
//
// The returned error is non-nil exactly when the report verdict is failure:
// a *ConnectError or *SendError for transport failures, ErrNoResponse when
// RequireResponse is set and nothing arrived, or a validation/cancellation
// error before the connect. Receive-side trouble (idle timeout, reset) never
// fails the run; it is recorded on the report instead.
func Run(ctx context.Context, cfg Config) (core.Report, error) {
	var (
		warns     []string
		latencies = make(map[string]int64, 3)
		report    core.Report
	)
	report.ID = uuid.NewString()
	report.StartedAt = time.Now()
	// Pessimistic until the run completes.
	report.Verdict = core.VerdictFailure
	defer func() {
		// Populate report fields that are always set.
		report.LatenciesMs = latencies
		report.Warnings = warns
		report.CompletedAt = time.Now()
	}()

	// Validate and normalize inputs.
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = DefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		err := fmt.Errorf("invalid port %d", port)
		report.Failure = err.Error()
		return report, err
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	report.Target = addr
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	payload := cfg.Request
	if len(payload) == 0 {
		payload = RequestFor(host, port)
	}
	report.Request = append([]byte(nil), payload...)

	// Give a freshly started server time to bind before connecting.
	if cfg.SettleDelay > 0 {
		if err := settle(ctx, cfg.SettleDelay); err != nil {
			report.Failure = err.Error()
			return report, err
		}
	}

	// Setup dialer and perform TCP connect.
	dialer := &net.Dialer{}
	t0 := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	latencies["connect"] = millisSince(t0)
	if err != nil {
		cerr := &ConnectError{Addr: addr, Err: err}
		report.Failure = cerr.Error()
		return report, cerr
	}
	defer conn.Close()
	report.Connected = true

	// Write the whole request as one logical send. net.Conn.Write returns
	// only after the full payload is accepted or an error occurs.
	t0 = time.Now()
	if _, err := conn.Write(payload); err != nil {
		serr := &SendError{Addr: addr, Err: err}
		report.Failure = serr.Error()
		return report, serr
	}
	latencies["send"] = millisSince(t0)
	report.Sent = true

	// Receive until orderly close, idle timeout, or read failure. The
	// deadline is re-armed before every read, so ReadTimeout bounds each
	// individual wait rather than the whole exchange.
	t0 = time.Now()
	buf := make([]byte, chunk)
	var received []byte
	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := conn.Read(buf)
		if n > 0 {
			received = append(received, buf[:n]...)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			// Orderly close: the peer is done sending.
			report.PeerClosed = true
			break
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			// Idle timeout terminates receive: with no length framing to
			// go by, a quiet peer means the response is complete.
			report.TimedOut = true
			break
		}
		// Reset or other transport failure. Terminal for the loop but not
		// for the verdict; connect+send already decided that.
		report.ReceiveErr = err.Error()
		warns = append(warns, "receive aborted: "+err.Error())
		break
	}
	latencies["receive"] = millisSince(t0)
	report.Response = received

	if cfg.RequireResponse && len(received) == 0 {
		report.Failure = ErrNoResponse.Error()
		return report, ErrNoResponse
	}
	report.Verdict = core.VerdictSuccess
	return report, nil
}

// settle waits the pre-connection delay, honoring cancellation.
func settle(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settle wait interrupted: %w", ctx.Err())
	}
}

// millisSince returns the elapsed milliseconds since t0, clamped at zero.
func millisSince(t0 time.Time) int64 {
	diff := time.Since(t0)
	if diff < 0 {
		return 0
	}
	return diff.Milliseconds()
}
