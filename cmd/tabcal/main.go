package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"tabcal/internal/agenda"
	"tabcal/internal/capture"
	"tabcal/internal/config"
	"tabcal/internal/feed"
	appLog "tabcal/internal/log"
	"tabcal/internal/store"
	"tabcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	date       string
	days       int
	once       bool
	dump       bool
	verbose    bool
}

func main() {
	flags := parseFlags()
	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("tabcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.days > 0 {
		conf.HorizonDays = flags.days
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"source_count", len(conf.Sources),
		"data_dir", conf.DataDir,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	events := store.New(filepath.Join(conf.DataDir, "events"))

	if flags.dump {
		if err := runDump(ctx, conf, events, flags); err != nil {
			appLog.Error("dump failed", err)
			os.Exit(1)
		}
		return
	}

	// Web server.
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- web.StartServer(ctx, conf, events)
	}()

	if flags.once {
		// Single pass: warm the feed cache, capture one preview, exit.
		// The listener needs a moment before capture can hit it.
		time.Sleep(300 * time.Millisecond)
		refreshFeeds(ctx, conf)
		capturePreview(ctx, conf)
		appLog.Info("single pass complete, exiting")
		return
	}

	// Periodic refresh + preview capture.
	sched := cron.New()
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		refreshFeeds(ctx, conf)
		capturePreview(ctx, conf)
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	// Give in-flight handlers a moment before exiting.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("tabcal exiting")
}

// runDump prints the computed week agenda to stdout.
func runDump(ctx context.Context, conf *config.Config, events *store.Store, flags flagConfig) error {
	loc := time.Local
	if conf.Timezone != "" && conf.Timezone != "Local" {
		if l, err := time.LoadLocation(conf.Timezone); err == nil {
			loc = l
		}
	}

	now := time.Now().In(loc)
	start := web.StartOfWeek(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), conf.WeekStart)
	if flags.date != "" {
		d, err := time.ParseInLocation("2006-01-02", flags.date, loc)
		if err != nil {
			return err
		}
		start = d
	}

	week, err := web.ComputeWeek(ctx, conf, events, start, conf.HorizonDays)
	if err != nil {
		return err
	}
	return agenda.Render(os.Stdout, week.Days, now)
}

// refreshFeeds re-fetches every subscribed source so the on-disk cache
// stays warm between requests.
func refreshFeeds(ctx context.Context, conf *config.Config) {
	if len(conf.Sources) == 0 {
		return
	}
	sources := make([]feed.Source, 0, len(conf.Sources))
	for _, sc := range conf.Sources {
		if sc.URL == "" {
			continue
		}
		id := sc.ID
		if id == "" {
			id = sc.URL
		}
		sources = append(sources, feed.Source{ID: id, URL: sc.URL})
	}

	fetcher := feed.NewFetcher(filepath.Join(conf.DataDir, "feed-cache"))
	results, errs := fetcher.FetchAll(ctx, sources)
	appLog.Info("feed refresh complete", "fetched", len(results), "errors", len(errs))
}

// capturePreview screenshots the rendered week grid into the data dir.
// Capture failures are logged, not fatal: the JSON API keeps working
// without Chromium installed.
func capturePreview(ctx context.Context, conf *config.Config) {
	out := filepath.Join(conf.DataDir, "preview.png")
	err := capture.GridPNG(ctx, capture.Options{
		URL:        "http://" + conf.Listen + "/calendar",
		OutputPath: out,
	})
	if err != nil {
		appLog.Error("preview capture failed", err, "output", out)
		return
	}
	appLog.Info("preview captured", "output", out)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.date, "date", "", "Window start date (YYYY-MM-DD) for -dump; default is the current week")
	flag.IntVar(&cfg.days, "days", 0, "Number of days in the window (overrides config if > 0)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh+capture cycle and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "Print the computed week agenda and exit")
	flag.BoolVar(&cfg.verbose, "v", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "tabcal", "config.yaml")
	}
	return "./config.yaml"
}
