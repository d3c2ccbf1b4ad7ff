package api

import (
	"time"

	"github.com/monstercameron/zerver-probe/internal/core"
	"github.com/monstercameron/zerver-probe/internal/history"
)

// FromSnapshot converts core.Snapshot to the public StatusResponse.
// It computes uptime based on StartedAt and current wall-clock time.
func FromSnapshot(s core.Snapshot) StatusResponse {
	var started string
	var uptime int64
	if !s.StartedAt.IsZero() {
		started = s.StartedAt.UTC().Format(time.RFC3339)
		uptime = int64(time.Since(s.StartedAt).Seconds())
	}

	var lastRun string
	if !s.Runs.LastRunAt.IsZero() {
		lastRun = s.Runs.LastRunAt.UTC().Format(time.RFC3339)
	}

	// Defensive copies of slices/maps are already present in core.Snapshot,
	// but we still treat them immutably on the API side.
	return StatusResponse{
		State:     string(s.AgentState),
		StartedAt: started,
		UptimeSec: uptime,
		Warnings:  append([]string(nil), s.Warnings...),
		Watch: WatchView{
			Running:    s.Watch.Running,
			Target:     s.Watch.Target,
			IntervalMs: s.Watch.Interval.Milliseconds(),
			Persisting: s.Watch.Persisting,
		},
		Runs: RunsView{
			Total:     s.Runs.Total,
			Failures:  s.Runs.Failures,
			LastRunAt: lastRun,
		},
		LastReport:  FromReport(s.LastReport),
		GeneratedAt: TimeNow().UTC().Format(time.RFC3339),
	}
}

// FromReport converts core.Report to the public ReportView. Raw bytes are
// rendered through core.DisplayText so invalid UTF-8 cannot leak into JSON;
// slice/map fields stay immutable by cloning.
func FromReport(r core.Report) ReportView {
	var started, completed string
	if !r.StartedAt.IsZero() {
		started = r.StartedAt.UTC().Format(time.RFC3339)
	}
	if !r.CompletedAt.IsZero() {
		completed = r.CompletedAt.UTC().Format(time.RFC3339)
	}
	requestText, _ := core.DisplayText(r.Request)
	responseText, clean := core.DisplayText(r.Response)
	return ReportView{
		ID:            r.ID,
		Target:        r.Target,
		Verdict:       string(r.Verdict),
		Failure:       r.Failure,
		Connected:     r.Connected,
		Sent:          r.Sent,
		TimedOut:      r.TimedOut,
		PeerClosed:    r.PeerClosed,
		ReceiveError:  r.ReceiveErr,
		RequestText:   requestText,
		ResponseText:  responseText,
		ResponseClean: clean,
		BytesReceived: r.BytesReceived(),
		LatenciesMs:   cloneLatencies(r.LatenciesMs),
		Warnings:      append([]string(nil), r.Warnings...),
		StartedAt:     started,
		CompletedAt:   completed,
	}
}

// FromRecord converts a persisted history.Record to the public RecordView.
func FromRecord(rec history.Record) RecordView {
	var started, completed string
	if !rec.StartedAt.IsZero() {
		started = rec.StartedAt.UTC().Format(time.RFC3339)
	}
	if !rec.CompletedAt.IsZero() {
		completed = rec.CompletedAt.UTC().Format(time.RFC3339)
	}
	responseText, _ := core.DisplayText(rec.Response)
	return RecordView{
		ID:            rec.ID,
		Target:        rec.Target,
		Verdict:       rec.Verdict,
		Failure:       rec.Failure,
		Connected:     rec.Connected,
		Sent:          rec.Sent,
		TimedOut:      rec.TimedOut,
		PeerClosed:    rec.PeerClosed,
		ReceiveError:  rec.ReceiveErr,
		ResponseText:  responseText,
		BytesReceived: rec.BytesReceived,
		Truncated:     rec.Truncated,
		ConnectMs:     rec.ConnectMs,
		SendMs:        rec.SendMs,
		ReceiveMs:     rec.ReceiveMs,
		Warnings:      rec.WarningList(),
		StartedAt:     started,
		CompletedAt:   completed,
	}
}

func cloneLatencies(in map[string]int64) map[string]int64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
