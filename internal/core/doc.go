// Package core owns the probe report model and the agent's internal state.
//
// Overview
//
// The core package defines Report, the finalized outcome of one probe run
// (verdict, accumulated response bytes, per-step latencies, warnings), and
// State, the agent's mutable lifecycle plus run counters. It provides a
// single concurrency boundary: methods on *State.
//
// Concurrency & Safety
//
// State is safe for concurrent use. Read access is via GetSnapshot(), which
// returns a deep copy suitable for use without further locking. Mutation is
// done via narrow UpdateWatch/RecordReport methods and SetAgentState(), each
// holding the internal lock briefly. Callers must never take the lock
// directly. Report itself is a value; Clone() deep-copies its slices and
// latency map so snapshots never alias live state.
//
// Lifecycle
//
// AgentState reflects the coarse lifecycle:
//   inactive -> starting | active
//   starting -> active | error | inactive
//   active   -> degraded | stopping | error
//   degraded -> active | stopping | error
//   stopping -> inactive | error
//   error    -> inactive | starting
//
// SetAgentState enforces these transitions. On the first transition to Active,
// startedAt is set. Transition to Inactive clears startedAt. Uptime derives
// from startedAt. While the watch loop runs, active/degraded track the most
// recent probe verdict.
//
// Reports
//
// A Report records, for one connect/send/receive cycle: whether the TCP
// connection was established and the payload fully written (the two outcomes
// that decide the verdict), how the receive loop ended (orderly close, idle
// timeout, or a non-fatal read error), the bytes accumulated in arrival
// order, timings, and warnings. RecordReport stores the latest report and
// maintains RunStats. DisplayText renders response bytes for display,
// replacing invalid UTF-8 without touching the stored bytes.
package core
