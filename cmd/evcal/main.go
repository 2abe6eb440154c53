package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"evcal/internal/auth"
	"evcal/internal/capture"
	"evcal/internal/commands"
	"evcal/internal/config"
	appLog "evcal/internal/log"
	"evcal/internal/source"
	"evcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	debug      bool
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-password":
			os.Exit(commands.HashPassword(os.Args[2:]))
		case "grid":
			os.Exit(runGrid(os.Args[2:]))
		}
	}

	flags := parseFlags()
	os.Exit(run(flags))
}

func run(flags flagConfig) int {
	appLog.Info("evcal starting", "version", version)

	conf, err := loadConfig(flags.configPath, flags.envFile, flags.debug)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"holiday_rules", len(conf.HolidayRules),
		"database", conf.Database.URL != "",
		"capture", conf.Capture.Enabled,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, conf)
	if err != nil {
		appLog.Error("startup failed", err)
		return 1
	}
	defer a.Close()

	var hooks []source.Hook
	if conf.Capture.Enabled {
		hooks = append(hooks, capture.Hook(capture.Options{
			URL:        "http://" + loopback(conf.Listen) + "/calendar",
			OutputPath: conf.Capture.Output,
			Width:      conf.Capture.Width,
			Height:     conf.Capture.Height,
		}))
	}

	sched, err := source.NewScheduler(ctx, conf.RefreshCron, a.loc, a.feeder, hooks...)
	if err != nil {
		appLog.Error("invalid refresh schedule", err)
		return 1
	}

	if flags.once {
		if _, err := a.feeder.RefreshAll(ctx); err != nil {
			appLog.Error("refresh finished with errors", err)
			return 1
		}
		events, holidays := a.store.Counts()
		appLog.Info("refresh complete", "events", events, "holidays", holidays)
		return 0
	}

	var basic auth.BasicAuth
	if conf.BasicAuth != nil {
		basic = auth.BasicAuth{Username: conf.BasicAuth.Username, PasswordHash: conf.BasicAuth.PasswordHash}
	}
	srv := web.NewServer(web.Options{
		Engine:      a.engine,
		Store:       a.store,
		Location:    a.loc,
		Metrics:     a.metrics,
		Auth:        basic,
		PreviewPath: conf.Capture.Output,
		Refresh: func(ctx context.Context) error {
			_, err := a.feeder.RefreshAll(ctx)
			return err
		},
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx, conf.Listen) }()

	// The first refresh runs once the server is up so the capture hook can
	// reach /calendar.
	go func() {
		if err := sched.RunOnce(ctx); err != nil {
			appLog.Warn("initial refresh finished with errors", "error", err)
		}
	}()
	sched.Start()
	appLog.Info("refresh scheduled", "spec", conf.RefreshCron, "next", sched.Next())

	code := 0
	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
		if err := <-serveErr; err != nil {
			appLog.Error("HTTP server shutdown failed", err)
			code = 1
		}
	case err := <-serveErr:
		appLog.Error("HTTP server stopped", err)
		code = 1
	}

	<-sched.Stop().Done()
	appLog.Info("evcal exiting")
	return code
}

func loadConfig(path, envFile string, debug bool) (*config.Config, error) {
	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := conf.LoadEnv(envFile); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	level := appLog.Level(conf.LogLevel)
	if debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	return conf, nil
}

// loopback turns a listen address such as ":8080" or "0.0.0.0:8080" into
// one the capture browser can dial.
func loopback(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/evcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional dotenv file with EVCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh every data source once and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: evcal [flags]\n       evcal hash-password [-user NAME]\n       evcal grid [-month YYYY-MM] [-select D]\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return cfg
}
