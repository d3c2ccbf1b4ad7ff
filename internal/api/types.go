package api

import "time"

// Public JSON types returned by the API. These are intentionally decoupled
// from the internal core types to preserve API stability and allow internal
// refactors without breaking clients.

// StatusResponse is the top-level payload for GET /v1/status.
type StatusResponse struct {
	State       string     `json:"state"`
	StartedAt   string     `json:"started_at"`
	UptimeSec   int64      `json:"uptime_sec"`
	Warnings    []string   `json:"warnings"`
	Watch       WatchView  `json:"watch"`
	Runs        RunsView   `json:"runs"`
	LastReport  ReportView `json:"last_report"`
	GeneratedAt string     `json:"generated_at"`
}

// WatchView describes the periodic watch loop.
type WatchView struct {
	Running    bool   `json:"running"`
	Target     string `json:"target"`
	IntervalMs int64  `json:"interval_ms"`
	Persisting bool   `json:"persisting"`
}

// RunsView counts probe runs since the agent started.
type RunsView struct {
	Total     int64  `json:"total"`
	Failures  int64  `json:"failures"`
	LastRunAt string `json:"last_run_at"`
}

// ReportView summarizes one probe run. Request and response bytes are
// rendered as sanitized text; the clean flag reports whether sanitization
// had to replace anything.
type ReportView struct {
	ID            string           `json:"id"`
	Target        string           `json:"target"`
	Verdict       string           `json:"verdict"`
	Failure       string           `json:"failure"`
	Connected     bool             `json:"connected"`
	Sent          bool             `json:"sent"`
	TimedOut      bool             `json:"timed_out"`
	PeerClosed    bool             `json:"peer_closed"`
	ReceiveError  string           `json:"receive_error"`
	RequestText   string           `json:"request_text"`
	ResponseText  string           `json:"response_text"`
	ResponseClean bool             `json:"response_text_clean"`
	BytesReceived int              `json:"bytes_received"`
	LatenciesMs   map[string]int64 `json:"latencies_ms"`
	Warnings      []string         `json:"warnings"`
	StartedAt     string           `json:"started_at"`
	CompletedAt   string           `json:"completed_at"`
}

// RecordView is one persisted history entry for GET /v1/reports.
type RecordView struct {
	ID            string   `json:"id"`
	Target        string   `json:"target"`
	Verdict       string   `json:"verdict"`
	Failure       string   `json:"failure"`
	Connected     bool     `json:"connected"`
	Sent          bool     `json:"sent"`
	TimedOut      bool     `json:"timed_out"`
	PeerClosed    bool     `json:"peer_closed"`
	ReceiveError  string   `json:"receive_error"`
	ResponseText  string   `json:"response_text"`
	BytesReceived int      `json:"bytes_received"`
	Truncated     bool     `json:"truncated"`
	ConnectMs     int64    `json:"connect_ms"`
	SendMs        int64    `json:"send_ms"`
	ReceiveMs     int64    `json:"receive_ms"`
	Warnings      []string `json:"warnings"`
	StartedAt     string   `json:"started_at"`
	CompletedAt   string   `json:"completed_at"`
}

// ReportsResponse is the payload for GET /v1/reports.
type ReportsResponse struct {
	Reports     []RecordView `json:"reports"`
	Count       int          `json:"count"`
	GeneratedAt string       `json:"generated_at"`
}

// ProbeRequest carries optional overrides for POST /v1/probe. Zero values
// keep the agent's configured settings; RequireResponse is a pointer so
// "unset" and "false" stay distinguishable.
type ProbeRequest struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	SettleMs        int64  `json:"settle_ms"`
	ReadTimeoutMs   int64  `json:"read_timeout_ms"`
	RequireResponse *bool  `json:"require_response"`
	Request         string `json:"request"`
}

// WatchResponse acknowledges POST /v1/start and POST /v1/stop.
type WatchResponse struct {
	Watching   bool   `json:"watching"`
	Target     string `json:"target"`
	IntervalMs int64  `json:"interval_ms,omitempty"`
}

// APIError is a standard error payload.
type APIError struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"` // RFC3339
}

// TimeNow abstracts time for tests; overridden in tests.
var TimeNow = func() time.Time { return time.Now() }
