// Package watch schedules probes and funnels every result through the same
// bookkeeping path regardless of what triggered the run.
//
// A Watcher supports two modes that share one pipeline. RunOnce (and Probe,
// its explicit-config variant) executes a single probe on demand; Start
// launches a periodic loop that re-probes the configured target every
// interval until Stop. Concurrent runs against the same target are collapsed
// with singleflight, so an on-demand probe arriving while the scheduled one
// is in flight shares its report instead of doubling up on the target.
//
// While probing the configured target, the watcher also reflects target
// health in the agent lifecycle: a failed run moves an active agent to
// degraded, and the next success moves it back.
package watch
