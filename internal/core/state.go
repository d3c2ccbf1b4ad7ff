package core

import (
	"errors"
	"sync"
	"time"
)

// AgentState represents the lifecycle state of the watch agent.
// The state machine is intentionally small and coarse to keep control
// surface limited and reasoning straightforward. The intended transitions:
//
// inactive -> starting | active
// starting -> active | error | inactive
// active   -> degraded | stopping | error
// degraded -> active | stopping | error
// stopping -> inactive | error
// error    -> inactive | starting
//
// Transitions outside this set are rejected by SetAgentState. While the
// watch loop runs, active means the most recent probe succeeded and
// degraded means it failed; the loop moves between the two as verdicts
// change.
type AgentState string

const (
	StateInactive AgentState = "inactive"
	StateStarting AgentState = "starting"
	StateActive   AgentState = "active"
	StateDegraded AgentState = "degraded"
	StateStopping AgentState = "stopping"
	StateError    AgentState = "error"
)

// WatchSnapshot describes the watch-loop configuration at a point in time.
type WatchSnapshot struct {
	Running    bool          // whether the periodic loop is active
	Target     string        // "host:port" probed by the loop
	Interval   time.Duration // delay between scheduled runs
	Persisting bool          // whether reports are written to history
}

// RunStats counts probe runs observed since the agent started.
type RunStats struct {
	Total     int64     // completed runs, any verdict
	Failures  int64     // runs with a failure verdict
	LastRunAt time.Time // completion time of the most recent run
}

// Snapshot is a threadsafe read model returned to the API layer.
// All nested slices/maps are returned as defensive copies, so callers
// may safely retain the value without additional locking.
type Snapshot struct {
	AgentState AgentState
	StartedAt  time.Time
	Warnings   []string
	Watch      WatchSnapshot
	Runs       RunStats
	LastReport Report
}

// State holds mutable agent state with synchronization.
// Use the provided methods to mutate; callers should never take the lock directly.
type State struct {
	mu         sync.RWMutex
	agent      AgentState
	startedAt  time.Time
	warnings   []string
	watch      WatchSnapshot
	runs       RunStats
	lastReport Report
}

// NewState constructs a default-inactive state.
func NewState() *State {
	return &State{
		agent:    StateInactive,
		warnings: nil,
	}
}

// GetSnapshot returns a deep copy safe for concurrent reads.
func (s *State) GetSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		AgentState: s.agent,
		StartedAt:  s.startedAt,
		Warnings:   append([]string(nil), s.warnings...),
		Watch:      s.watch,
		Runs:       s.runs,
		LastReport: s.lastReport.Clone(),
	}
}

// Uptime returns the wall-clock duration since the agent entered Active state.
// Returns zero if never started. While stopping/degraded, uptime continues
// from the last start; when transitioning to Inactive, uptime resets to zero.
func (s *State) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// SetStartedAt force-sets the startedAt time. This is useful when restoring
// state from persistence. Prefer to rely on SetAgentState which sets it when
// transitioning to Active.
func (s *State) SetStartedAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = t
}

// AppendWarning adds a non-fatal warning to the state.
func (s *State) AppendWarning(msg string) {
	if msg == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

// ClearWarnings removes all accumulated warnings.
func (s *State) ClearWarnings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = nil
}

// UpdateWatch replaces the current watch snapshot with the provided value.
// Callers should pass the complete desired view to avoid partial-state ambiguity.
func (s *State) UpdateWatch(w WatchSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watch = w
}

// RecordReport stores a completed probe report and updates run counters.
// The report is copied defensively.
func (s *State) RecordReport(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastReport = r.Clone()
	s.runs.Total++
	if !r.Verdict.Success() {
		s.runs.Failures++
	}
	if !r.CompletedAt.IsZero() {
		s.runs.LastRunAt = r.CompletedAt
	} else {
		s.runs.LastRunAt = time.Now()
	}
}

// LastReport returns a copy of the most recent report, and whether any
// report has been recorded yet.
func (s *State) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.runs.Total == 0 {
		return Report{}, false
	}
	return s.lastReport.Clone(), true
}

// ErrInvalidTransition is returned when SetAgentState receives an illegal transition.
var ErrInvalidTransition = errors.New("invalid agent state transition")

// SetAgentState transitions the agent to the next state, enforcing a simple
// state machine. On the first transition to Active, startedAt is set. When
// transitioning to Inactive, startedAt is cleared.
//
// Returns ErrInvalidTransition if the (current -> next) edge is not allowed.
func (s *State) SetAgentState(next AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.agent
	if cur == next {
		// Idempotent: no-op
		return nil
	}

	if !allowedTransition(cur, next) {
		return ErrInvalidTransition
	}

	// Handle lifecycle timestamps.
	switch next {
	case StateActive:
		// First activate in a run: set startedAt if zero.
		if s.startedAt.IsZero() {
			s.startedAt = time.Now()
		}

	case StateInactive:
		// Fully reset uptime on full stop.
		s.startedAt = time.Time{}
	}

	s.agent = next
	return nil
}

func allowedTransition(cur, next AgentState) bool {
	switch cur {
	case StateInactive:
		return next == StateStarting || next == StateActive
	case StateStarting:
		return next == StateActive || next == StateError || next == StateInactive
	case StateActive:
		return next == StateDegraded || next == StateStopping || next == StateError
	case StateDegraded:
		return next == StateActive || next == StateStopping || next == StateError
	case StateStopping:
		return next == StateInactive || next == StateError
	case StateError:
		return next == StateInactive || next == StateStarting
	default:
		return false
	}
}

// Reset clears all mutable state back to a fresh NewState, retaining only
// the current AgentState and StartedAt semantics as appropriate. This is
// useful to recover from error conditions while keeping lifecycle context.
//
// If clearLifecycle is true, also resets agent state to Inactive and zeroes
// StartedAt (i.e., full reset).
func (s *State) Reset(clearLifecycle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clearLifecycle {
		s.agent = StateInactive
		s.startedAt = time.Time{}
	}

	s.warnings = nil
	s.watch = WatchSnapshot{}
	s.runs = RunStats{}
	s.lastReport = Report{}
}
