package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/monstercameron/zerver-probe/internal/api"
	"github.com/monstercameron/zerver-probe/internal/config"
	"github.com/monstercameron/zerver-probe/internal/core"
	"github.com/monstercameron/zerver-probe/internal/history"
	"github.com/monstercameron/zerver-probe/internal/probe"
	"github.com/monstercameron/zerver-probe/internal/watch"
)

func main() {
	app := &cli.App{
		Name:  "zprobe",
		Usage: "single-shot TCP/HTTP liveness probe",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: probe.DefaultHost,
				Usage: "target hostname or IP",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: probe.DefaultPort,
				Usage: "target TCP port",
			},
			&cli.DurationFlag{
				Name:  "settle",
				Value: 0,
				Usage: "wait before the first connection attempt",
			},
			&cli.DurationFlag{
				Name:  "read-timeout",
				Value: probe.DefaultReadTimeout,
				Usage: "idle window per receive attempt",
			},
			&cli.BoolFlag{
				Name:  "require-response",
				Usage: "fail the probe when zero bytes are received",
			},
			&cli.StringFlag{
				Name:  "request",
				Usage: "override the request payload (default: fixed GET for the target)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "emit the report as JSON instead of text",
			},
		},
		Action: runProbe,
		Commands: []*cli.Command{
			{
				Name:  "agent",
				Usage: "run the local watch agent and its control-plane HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "HTTP bind address (default from ZPROBE_LISTEN or " + api.DefaultAddress + ")",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "delay between watch-loop probes",
					},
					&cli.StringFlag{
						Name:  "history",
						Usage: "sqlite file for report history (empty disables persistence)",
					},
					&cli.DurationFlag{
						Name:  "history-ttl",
						Usage: "retention window for stored reports",
					},
					&cli.IntFlag{
						Name:  "shutdown-secs",
						Usage: "graceful shutdown timeout in seconds",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "start the watch loop immediately instead of waiting for /v1/start",
					},
				},
				Action: runAgent,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runProbe performs one connect/send/receive cycle against the target and
// reports the outcome. The process exits 0 only when the verdict is success.
func runProbe(c *cli.Context) error {
	cfg := probe.Config{
		Host:            c.String("host"),
		Port:            c.Int("port"),
		SettleDelay:     c.Duration("settle"),
		ReadTimeout:     c.Duration("read-timeout"),
		RequireResponse: c.Bool("require-response"),
	}
	if raw := c.String("request"); raw != "" {
		cfg.Request = []byte(raw)
	}

	report, err := probe.Run(c.Context, cfg)

	if c.Bool("json") {
		out, merr := json.MarshalIndent(api.FromReport(report), "", "  ")
		if merr != nil {
			return cli.Exit(fmt.Sprintf("zprobe: encode report: %v", merr), 1)
		}
		fmt.Println(string(out))
		if err != nil {
			return cli.Exit("", 1)
		}
		return nil
	}

	printReport(report)
	if err != nil {
		return cli.Exit(fmt.Sprintf("zprobe: %v", err), 1)
	}
	return nil
}

// printReport writes the human-readable probe report: the outgoing request,
// the received bytes rendered as text, the byte count, and the verdict.
func printReport(r core.Report) {
	if len(r.Request) > 0 {
		text, _ := core.DisplayText(r.Request)
		fmt.Printf("request to %s:\n%s\n", r.Target, text)
	}

	if r.Connected && r.Sent {
		fmt.Printf("received %d bytes", r.BytesReceived())
		switch {
		case r.PeerClosed:
			fmt.Println(" (peer closed the connection)")
		case r.TimedOut:
			fmt.Println(" (idle timeout reached)")
		default:
			fmt.Println()
		}
		if r.BytesReceived() > 0 {
			text, clean := core.DisplayText(r.Response)
			fmt.Println(text)
			if !clean {
				fmt.Println("note: response is not valid UTF-8, undecodable bytes shown as replacement runes")
			}
		}
	}

	for _, w := range r.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	if r.Verdict.Success() {
		fmt.Println("verdict: success")
	} else {
		fmt.Printf("verdict: failure (%s)\n", r.Failure)
	}
}

// runAgent starts the control-plane server and blocks until SIGINT/SIGTERM.
// Configuration comes from the environment (see internal/config) with flags
// taking precedence.
func runAgent(c *cli.Context) error {
	cfg := config.Load()
	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("interval") {
		cfg.WatchInterval = c.Duration("interval")
	}
	if c.IsSet("history") {
		cfg.HistoryPath = c.String("history")
	}
	if c.IsSet("history-ttl") {
		cfg.HistoryTTL = c.Duration("history-ttl")
	}
	if c.IsSet("shutdown-secs") {
		cfg.ShutdownTimeout = time.Duration(c.Int("shutdown-secs")) * time.Second
	}

	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)

	// Lifecycle context for the watch loop and websocket fan-out. Cancelled
	// only after the HTTP server has drained.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := core.NewState()
	if err := state.SetAgentState(core.StateStarting); err != nil {
		return cli.Exit(fmt.Sprintf("zprobe: agent state: %v", err), 1)
	}

	var repo history.Repository
	if cfg.HistoryPath != "" {
		db, err := history.OpenAndMigrate(cfg.HistoryPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("zprobe: open history %q: %v", cfg.HistoryPath, err), 1)
		}
		repo = history.NewSQLiteRepository(db)
		logger.Info("history persistence enabled", slog.String("path", cfg.HistoryPath))
	}

	stream := api.NewBroadcaster(logger)

	watcher := watch.New(state, watch.Options{
		Probe:      cfg.ProbeConfig(),
		Interval:   cfg.WatchInterval,
		Repo:       repo,
		HistoryTTL: cfg.HistoryTTL,
		Publisher:  stream,
		Logger:     logger,
	})

	srv := api.NewServer(state, watcher, repo, stream, api.ServerOptions{
		Addr:            cfg.Listen,
		ShutdownTimeout: cfg.ShutdownTimeout,
		BaseContext:     ctx,
		Logger:          logger,
	})

	srv.Start()
	if err := state.SetAgentState(core.StateActive); err != nil {
		logger.Error("agent state", slog.Any("error", err))
	}
	logger.Info("agent started",
		slog.String("listen", cfg.Listen),
		slog.String("target", watcher.Target()),
		slog.String("env", cfg.Env),
	)

	if c.Bool("watch") {
		if cfg.WatchInterval <= 0 {
			logger.Info("watch loop stays off, interval is zero; probes run on demand")
		} else if err := watcher.Start(ctx); err != nil {
			logger.Error("watch start", slog.Any("error", err))
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signals
	logger.Info("received signal, shutting down", slog.String("signal", sig.String()))

	if err := state.SetAgentState(core.StateStopping); err != nil {
		logger.Error("agent state", slog.Any("error", err))
	}
	if watcher.Watching() {
		if err := watcher.Stop(); err != nil {
			logger.Error("watch stop", slog.Any("error", err))
		}
	}
	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("graceful shutdown error", slog.Any("error", err))
	}
	if err := state.SetAgentState(core.StateInactive); err != nil {
		logger.Error("agent state", slog.Any("error", err))
	}
	logger.Info("agent stopped")
	return nil
}

func setupLogger(env string) *slog.Logger {
	var logger *slog.Logger

	switch env {
	case config.EnvDev:
		logger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		logger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		logger = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return logger
}
