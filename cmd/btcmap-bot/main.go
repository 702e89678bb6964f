package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"btcmap-bot/internal/bot"
	"btcmap-bot/internal/btcmap"
	"btcmap-bot/internal/config"
	"btcmap-bot/internal/logger"
	"btcmap-bot/internal/metrics"
	"btcmap-bot/internal/notify"
	"btcmap-bot/internal/store"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("btcmap-bot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath   = fs.String("config", "", "path to YAML config (defaults apply when empty)")
		statePath = fs.String("state", "", "watermark file, overrides state.path")
		verbose   = fs.Bool("verbose", false, "enable debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: btcmap-bot [flags] <community>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		// -h lands here too; usage is already printed.
		return exitUsage
	}
	if fs.NArg() != 1 || fs.Arg(0) == "" {
		fs.Usage()
		return exitUsage
	}
	community := fs.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stdout, "Invalid configuration: %v\n", err)
		return exitFatal
	}
	if *statePath != "" {
		cfg.State.Path = *statePath
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	lg, err := logger.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stdout, "Invalid configuration: %v\n", err)
		return exitFatal
	}
	lg.Debugf("btcmap-bot %s starting", Version)

	st, closeStore, err := buildStore(cfg.State)
	if err != nil {
		fmt.Fprintf(stdout, "Invalid configuration: %v\n", err)
		return exitFatal
	}
	defer closeStore()

	rec := metrics.New()
	notifier := notify.New(
		notify.NewCommandPublisher(cfg.Publish),
		lg,
		notify.WithMetrics(rec),
		notify.WithRetry(cfg.Publish.MaxAttempts, cfg.Publish.Backoff, cfg.Publish.MaxBackoff),
	)
	runner := bot.NewRunner(
		btcmap.NewClient(cfg.API),
		st,
		notifier,
		bot.WithLogger(lg),
		bot.WithMetrics(rec),
		bot.WithReportWriter(stdout),
	)

	_, runErr := runner.Run(ctx, community)
	lg.Debugf("metrics: %s", rec.Dump())
	pushMetrics(lg, rec, cfg.Metrics, community)

	if runErr != nil {
		lg.WithError(runErr).WithField("community", community).Error("run failed")
		fmt.Fprintln(stdout, diagnostic(runErr, community))
		return exitFatal
	}
	return exitOK
}

func buildStore(cfg config.StateConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		s, rc, err := store.NewRedisStoreFromURL(cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = rc.Close() }, nil
	case "file", "":
		return store.NewFileStore(cfg.Path), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend: %s", cfg.Backend)
	}
}

func pushMetrics(lg log.FieldLogger, rec *metrics.Recorder, cfg config.MetricsConfig, community string) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rec.Push(ctx, cfg.PushgatewayURL, cfg.Job, community); err != nil {
		lg.WithError(err).Warn("push metrics")
	}
}

// diagnostic is the one line printed on stdout for a fatal error. Causes stay in the log.
func diagnostic(err error, community string) string {
	return strings.Join(strings.Fields(describe(err, community)), " ")
}

func describe(err error, community string) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Interrupted"
	case errors.Is(err, btcmap.ErrNoBoundaryData):
		return fmt.Sprintf("Community '%s' does not have GeoJSON data", community)
	case errors.Is(err, btcmap.ErrCommunityNotFound):
		return fmt.Sprintf("Community '%s' does not exist", community)
	case errors.Is(err, btcmap.ErrFeedFetch):
		return fmt.Sprintf("Could not fetch events: %v", err)
	case errors.Is(err, btcmap.ErrElementFetch):
		return fmt.Sprintf("Could not fetch element: %v", err)
	case errors.Is(err, bot.ErrLoadWatermark):
		return fmt.Sprintf("Could not load watermark: %v", err)
	case errors.Is(err, bot.ErrCommitWatermark):
		return fmt.Sprintf("Could not save watermark: %v", err)
	default:
		return fmt.Sprintf("Run failed: %v", err)
	}
}
