package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/monstercameron/zerver-probe/internal/core"
	"github.com/monstercameron/zerver-probe/internal/history"
	"github.com/monstercameron/zerver-probe/internal/probe"
)

// DefaultInterval is used when Options.Interval is unset.
const DefaultInterval = 30 * time.Second

// Lifecycle misuse sentinels.
var (
	ErrAlreadyWatching = errors.New("watch loop already running")
	ErrNotWatching     = errors.New("watch loop not running")
)

// Publisher receives every finished report, e.g. to fan it out to live
// subscribers. Implementations must not block.
type Publisher interface {
	Publish(core.Report)
}

// Options configures a Watcher.
type Options struct {
	// Probe is the configuration for the watched target.
	Probe probe.Config

	// Interval is the delay between scheduled runs. DefaultInterval if 0.
	Interval time.Duration

	// Repo persists finished reports. Nil disables persistence.
	Repo history.Repository

	// HistoryTTL prunes persisted reports older than this after each run.
	// Zero keeps everything.
	HistoryTTL time.Duration

	// Publisher fans out finished reports. Nil disables fan-out.
	Publisher Publisher

	// Logger for run outcomes. slog.Default() if nil.
	Logger *slog.Logger
}

// Watcher owns the probe schedule: one-off runs on demand, a periodic loop
// between Start and Stop, and the bookkeeping both share (state updates,
// history writes, live publishing). Concurrent runs against the same target
// are collapsed into one probe whose report every caller receives.
type Watcher struct {
	opts  Options
	state *core.State
	log   *slog.Logger
	group singleflight.Group

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New builds a Watcher around shared agent state.
func New(state *core.State, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{opts: opts, state: state, log: log}
}

// Target returns the normalized "host:port" the watcher is configured for.
func (w *Watcher) Target() string {
	return w.opts.Probe.Target()
}

// Config returns the probe configuration the watcher was built with, as a
// base for per-request overrides.
func (w *Watcher) Config() probe.Config {
	return w.opts.Probe
}

// RunOnce probes the configured target with full bookkeeping.
func (w *Watcher) RunOnce(ctx context.Context) (core.Report, error) {
	return w.Probe(ctx, w.opts.Probe)
}

// Probe runs one probe with cfg. Concurrent calls for the same target share
// a single execution and all receive its report.
func (w *Watcher) Probe(ctx context.Context, cfg probe.Config) (core.Report, error) {
	v, err, _ := w.group.Do(cfg.Target(), func() (interface{}, error) {
		return w.execute(ctx, cfg)
	})
	report, _ := v.(core.Report)
	return report, err
}

func (w *Watcher) execute(ctx context.Context, cfg probe.Config) (core.Report, error) {
	report, err := probe.Run(ctx, cfg)
	w.state.RecordReport(report)
	if err != nil {
		w.log.Error("probe failed",
			"target", report.Target,
			"error", err,
			"connected", report.Connected)
	} else {
		w.log.Info("probe completed",
			"target", report.Target,
			"verdict", string(report.Verdict),
			"bytes", report.BytesReceived(),
			"peer_closed", report.PeerClosed,
			"timed_out", report.TimedOut)
	}

	// Reflect the health of the configured target in the agent state.
	if cfg.Target() == w.opts.Probe.Target() {
		cur := w.state.GetSnapshot().AgentState
		switch {
		case err != nil && cur == core.StateActive:
			_ = w.state.SetAgentState(core.StateDegraded)
		case err == nil && cur == core.StateDegraded:
			_ = w.state.SetAgentState(core.StateActive)
		}
	}

	if w.opts.Repo != nil {
		if serr := w.opts.Repo.Save(report); serr != nil {
			w.log.Error("history write failed", "error", serr)
			w.state.AppendWarning("history write failed: " + serr.Error())
		} else if w.opts.HistoryTTL > 0 {
			cutoff := time.Now().Add(-w.opts.HistoryTTL)
			if n, perr := w.opts.Repo.PruneBefore(cutoff); perr != nil {
				w.log.Error("history prune failed", "error", perr)
			} else if n > 0 {
				w.log.Debug("history pruned", "records", n)
			}
		}
	}

	if w.opts.Publisher != nil {
		w.opts.Publisher.Publish(report)
	}
	return report, err
}

// Start launches the periodic loop. The first run happens immediately, then
// every Interval until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return ErrAlreadyWatching
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	w.stop, w.done = stop, done

	w.state.UpdateWatch(core.WatchSnapshot{
		Running:    true,
		Target:     w.Target(),
		Interval:   w.opts.Interval,
		Persisting: w.opts.Repo != nil,
	})
	w.log.Info("watch loop started", "target", w.Target(), "interval", w.opts.Interval)
	go w.loop(ctx, stop, done)
	return nil
}

func (w *Watcher) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	_, _ = w.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			_, _ = w.RunOnce(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts the periodic loop and waits for any in-flight scheduled run to
// finish.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()
	if stop == nil {
		return ErrNotWatching
	}
	close(stop)
	<-done
	w.state.UpdateWatch(core.WatchSnapshot{})
	w.log.Info("watch loop stopped", "target", w.Target())
	return nil
}

// Watching reports whether the periodic loop is currently running.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop != nil
}
