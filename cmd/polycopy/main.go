package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polycopy/config"
	"github.com/alejandrodnm/polycopy/internal/adapters/control"
	"github.com/alejandrodnm/polycopy/internal/adapters/gateway"
	"github.com/alejandrodnm/polycopy/internal/adapters/notify"
	"github.com/alejandrodnm/polycopy/internal/adapters/onchain"
	"github.com/alejandrodnm/polycopy/internal/adapters/polymarket"
	"github.com/alejandrodnm/polycopy/internal/adapters/storage"
	"github.com/alejandrodnm/polycopy/internal/application/engine"
	"github.com/alejandrodnm/polycopy/internal/application/executor"
	"github.com/alejandrodnm/polycopy/internal/application/risk"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one poll iteration and exit")
	iterations := flag.Int("iterations", -1, "stop after N iterations (overrides config, 0 = unlimited)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	status := flag.Bool("status", false, "print restored risk status and recent signals, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	closeLog := setupLogger(cfg.Log)
	defer closeLog()

	if *iterations >= 0 {
		cfg.Engine.MaxIterations = *iterations
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *once, *status); err != nil {
		slog.Error("polycopy exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("polycopy stopped cleanly")
}

func run(ctx context.Context, cfg *config.Config, once, statusOnly bool) error {
	sources, err := cfg.TrackedSources()
	if err != nil {
		return err
	}

	slog.Info("polycopy starting",
		"mode", cfg.Engine.Mode,
		"sources", len(sources),
		"interval", cfg.PollInterval(),
		"sizing", cfg.Copy.SizingPolicy,
		"once", once,
	)

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", cfg.Storage.DSN, err)
	}
	defer ledger.Close()

	if cfg.Storage.EventsRetentionDays > 0 || cfg.Storage.PositionsRetentionDays > 0 {
		n, err := ledger.Prune(ctx,
			days(cfg.Storage.EventsRetentionDays), days(cfg.Storage.PositionsRetentionDays))
		if err != nil {
			slog.Warn("ledger prune failed", "err", err)
		} else {
			slog.Info("ledger pruned", "rows", n)
		}
	}

	gate := risk.NewGate(cfg.RiskLimits())
	console := notify.NewConsole()

	exec, err := buildExecutor(ctx, cfg, gate)
	if err != nil {
		return err
	}

	notifier, closeNotify := buildNotifier(ctx, cfg, console)
	defer closeNotify()

	client := polymarket.NewClient(cfg.API.DataBase, cfg.API.GammaBase)

	eng, err := engine.New(engine.Config{
		PollInterval:           cfg.PollInterval(),
		MaxIterations:          cfg.Engine.MaxIterations,
		StopFile:               cfg.Engine.StopFile,
		ReputationRefreshEvery: cfg.Engine.ReputationRefreshEvery,
		PollWorkers:            cfg.Engine.PollWorkers,
		Sizing:                 cfg.Sizing(),
	}, sources, engine.Deps{
		Positions:  client,
		Quotes:     client,
		Reputation: client,
		Gate:       gate,
		Executor:   exec,
		Ledger:     ledger,
		Notifier:   notifier,
	})
	if err != nil {
		return err
	}

	if err := eng.Restore(ctx); err != nil {
		return err
	}

	if statusOnly {
		console.PrintStatus(gate.Status(), eng.Sources())
		recent, err := ledger.Recent(ctx, 20)
		if err != nil {
			return err
		}
		console.PrintRecent(recent)
		return nil
	}

	if cfg.Control.Addr != "" {
		srv := control.New(cfg.Control.Addr, eng, ledger)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				slog.Error("control api stopped", "err", err)
			}
		}()
	}

	if once {
		_, err := eng.RunOnce(ctx)
		if cfg.Notify.Console {
			console.PrintStatus(gate.Status(), eng.Sources())
		}
		return err
	}
	return eng.Run(ctx)
}

// buildExecutor devuelve el simulado o el live según engine.mode.
func buildExecutor(ctx context.Context, cfg *config.Config, gate *risk.Gate) (engine.Executor, error) {
	if cfg.Engine.Mode != config.ModeLive {
		return executor.NewSimulated(gate), nil
	}

	if cfg.Gateway.RPCURL != "" && cfg.Gateway.Wallet != "" {
		wallet, err := onchain.DialWallet(ctx, cfg.Gateway.RPCURL, cfg.Gateway.Wallet)
		if err != nil {
			return nil, err
		}
		defer wallet.Close()

		checkCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()
		if err := wallet.Preflight(checkCtx, cfg.Copy.MaxPositionSize); err != nil {
			return nil, err
		}
	} else {
		slog.Warn("live mode without rpc_url/wallet: skipping wallet preflight")
	}

	placer := gateway.New(cfg.Gateway.URL,
		gateway.WithAPIKey(cfg.Gateway.APIKey),
		gateway.WithTimeout(time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second),
	)
	slog.Warn("LIVE MODE: accepted signals will be sent to the order gateway", "url", cfg.Gateway.URL)
	return executor.NewLive(placer, gate), nil
}

// buildNotifier arma el fan-out con los sinks configurados.
func buildNotifier(ctx context.Context, cfg *config.Config, console *notify.Console) (ports.Notifier, func()) {
	var sinks []ports.Notifier
	closeFn := func() {}

	if cfg.Notify.Console {
		sinks = append(sinks, console)
	}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.RedisAddr != "" {
		bus := notify.NewRedisBus(cfg.Notify.RedisAddr, cfg.Notify.RedisPassword, cfg.Notify.RedisDB,
			cfg.Notify.RedisChannel, cfg.Notify.RedisStream)
		if err := bus.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, bus notifications disabled", "addr", cfg.Notify.RedisAddr, "err", err)
			_ = bus.Close()
		} else {
			sinks = append(sinks, bus)
			closeFn = func() { _ = bus.Close() }
		}
	}

	m := notify.NewMulti(sinks...)
	slog.Info("notifiers configured", "sinks", m.Len())
	return m, closeFn
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
