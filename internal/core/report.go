package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Verdict is the final success/failure judgment of one probe run.
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictFailure Verdict = "failure"
)

// Success reports whether the verdict is VerdictSuccess.
func (v Verdict) Success() bool { return v == VerdictSuccess }

// Report is the finalized outcome of a single probe run. Times and latencies
// are captured as observed, without smoothing. The Response field holds every
// byte read, in arrival order; the probe never drops or reorders data on its
// own, so a short Response only means the receive loop terminated.
type Report struct {
	ID        string // unique run identifier (UUID)
	Target    string // "host:port" the probe connected to
	Request   []byte // payload written to the connection
	Response  []byte // accumulated bytes, arrival order
	Connected bool   // TCP connection was established
	Sent      bool   // full request payload was written

	// Receive-loop outcome. At most one of TimedOut/PeerClosed is set; when
	// neither is, ReceiveErr carries the read error that ended the loop.
	TimedOut   bool   // idle timeout terminated the receive loop
	PeerClosed bool   // orderly close (zero-byte read) terminated the loop
	ReceiveErr string // non-fatal read error, empty if none

	Verdict     Verdict
	Failure     string           // human-readable fatal error, empty on success
	LatenciesMs map[string]int64 // per-step timings: "connect", "send", "receive"
	Warnings    []string         // non-fatal anomalies observed during the run
	StartedAt   time.Time
	CompletedAt time.Time
}

// BytesReceived returns the number of response bytes accumulated.
func (r Report) BytesReceived() int { return len(r.Response) }

// Clone returns a deep copy safe to retain without additional locking.
func (r Report) Clone() Report {
	out := r
	out.Request = append([]byte(nil), r.Request...)
	out.Response = append([]byte(nil), r.Response...)
	out.Warnings = append([]string(nil), r.Warnings...)
	if r.LatenciesMs != nil {
		out.LatenciesMs = make(map[string]int64, len(r.LatenciesMs))
		for k, v := range r.LatenciesMs {
			out.LatenciesMs[k] = v
		}
	}
	return out
}

// DisplayText renders raw wire bytes as text for console or JSON display.
// Invalid UTF-8 sequences are replaced with U+FFFD so the result is always
// printable; clean reports whether the input decoded without replacement.
// Display sanitization never alters the stored bytes or the byte count.
func DisplayText(b []byte) (text string, clean bool) {
	if utf8.Valid(b) {
		return string(b), true
	}
	return strings.ToValidUTF8(string(b), "�"), false
}
