package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"daorewards/config"
	"daorewards/core/state"
	"daorewards/native/common"
	"daorewards/observability/logging"
	"daorewards/observability/otel"
	"daorewards/storage"
)

const (
	replayCommand  = "replay"
	queryCommand   = "query"
	migrateCommand = "migrate"
	serveCommand   = "serve"
	defaultConfig  = "./rewardsd.toml"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: rewardsd <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  replay   -scenario <file>   replay a YAML scenario against the store")
	fmt.Fprintln(w, "  query    <what> [flags]     inspect distributions, pending rewards and ownership")
	fmt.Fprintln(w, "  migrate  [-version v]       upgrade the stored contract version")
	fmt.Fprintln(w, "  serve    [-listen addr]     expose Prometheus metrics")
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		usage(stdout)
		return errors.New("command required")
	}
	switch args[0] {
	case replayCommand:
		return runReplay(ctx, args[1:], stdout)
	case queryCommand:
		return runQuery(args[1:], stdout)
	case migrateCommand:
		return runMigrate(ctx, args[1:], stdout)
	case serveCommand:
		return runServe(ctx, args[1:])
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// environment is the process-wide setup shared by every command.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func setup(ctx context.Context, configPath string) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Options{
		Service:    "rewardsd",
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Output:     os.Stderr,
	})
	env := &environment{cfg: cfg, logger: logger, shutdown: func(context.Context) error { return nil }}
	if cfg.Telemetry.Enabled() {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Environment: cfg.Logging.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			return nil, err
		}
		env.shutdown = shutdown
		logger.Info("telemetry enabled",
			slog.String("endpoint", cfg.Telemetry.Endpoint),
			slog.String("headers", cfg.Telemetry.Headers))
	}
	return env, nil
}

func (env *environment) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.shutdown(ctx); err != nil {
		env.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
}

func (env *environment) openApp() (*app, error) {
	db, err := storage.Open(env.cfg.Backend, env.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a, err := newApp(env.cfg, db, env.logger)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			env.logger.Warn("rewardsd: database close failed", slog.String("error", closeErr.Error()))
		}
		return nil, err
	}
	return a, nil
}

func runReplay(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(replayCommand, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the rewardsd config file")
	scenarioPath := fs.String("scenario", "", "YAML scenario to replay")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenarioPath == "" {
		return errors.New("replay: -scenario is required")
	}
	sc, err := LoadScenario(*scenarioPath)
	if err != nil {
		return err
	}

	env, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer env.close()
	a, err := env.openApp()
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.Replay(ctx, sc)
	env.logger.Info("replay finished",
		slog.String("run", report.Run),
		slog.String("scenario", sc.Name),
		slog.Int("steps", len(report.Steps)))
	if encodeErr := writeYAML(stdout, report); encodeErr != nil && err == nil {
		err = encodeErr
	}
	return err
}

func runMigrate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(migrateCommand, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the rewardsd config file")
	version := fs.String("version", "", "Target contract version (defaults to the built-in version)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer env.close()
	env.cfg.AllowMigrate = true
	a, err := env.openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if *version != "" {
		a.rewards.SetVersion(*version)
	}
	owner := common.MessageInfo{Sender: resolveAccount(env.cfg.Owner)}
	err = a.execute(ctx, migrateCommand, common.BlockInfo{}, func() error {
		migrated, err := a.rewards.Migrate(owner)
		if err != nil {
			return err
		}
		if err := a.manager.SetStateVersion(state.StateVersion); err != nil {
			return err
		}
		return writeYAML(stdout, migrated)
	})
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
