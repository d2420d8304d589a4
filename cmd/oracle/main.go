package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polyoracle/config"
	"github.com/alejandrodnm/polyoracle/internal/adapters/forecast"
	"github.com/alejandrodnm/polyoracle/internal/adapters/notify"
	"github.com/alejandrodnm/polyoracle/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyoracle/internal/adapters/storage"
	"github.com/alejandrodnm/polyoracle/internal/calibration"
	"github.com/alejandrodnm/polyoracle/internal/execution"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	live := flag.Bool("live", false, "submit real orders to the CLOB (default: paper)")
	once := flag.Bool("once", false, "run one trading cycle and exit")
	report := flag.Bool("report", false, "print performance + calibration + portfolio reports and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
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
	setupLogger(cfg.Log)
	log := slog.Default()

	slog.Info("polyoracle starting",
		"config", *configPath,
		"interval", cfg.TradeInterval(),
		"live", *live,
		"once", *once,
		"report", *report,
	)

	store, err := storage.New(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)

	calibrator := calibration.NewCalibrator(store, log)
	analyzer := calibration.NewAnalyzer(calibration.AnalyzerConfig{
		MinEdge:       cfg.Risk.MinEdge,
		MinConfidence: cfg.Risk.MinConfidence,
		MinLiquidity:  cfg.Risk.MinLiquidity,
	}, log)
	feedback := calibration.NewFeedbackLoop(store, calibrator, log)

	sizer := execution.NewSizer(execution.SizerConfig{
		MinBet:         cfg.Risk.MinBet,
		MaxBet:         cfg.Risk.MaxBet,
		MaxBankrollPct: cfg.Risk.MaxPositionPct,
		KellyFraction:  cfg.Risk.KellyFraction,
	}, log)
	risk := execution.NewRiskManager(execution.RiskConfig{
		MaxDailyLossPct:         cfg.Risk.MaxDailyLossPct,
		MaxOpenPositions:        cfg.Risk.MaxOpenPositions,
		MaxSingleMarketExposure: cfg.Risk.MaxSingleMarketExposure,
	}, log)

	var engine *execution.Engine
	if *live {
		if !cfg.HasCLOBCredentials() {
			slog.Error("live mode requires CLOB credentials — set POLYMARKET_API_KEY/SECRET/PASSPHRASE/ADDRESS")
			os.Exit(1)
		}
		auth, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.API.GammaBase, polymarket.Credentials{
			APIKey:     cfg.API.APIKey,
			Secret:     cfg.API.APISecret,
			Passphrase: cfg.API.APIPassphrase,
			Address:    cfg.API.Address,
		})
		if err != nil {
			slog.Error("failed to create auth client", "err", err)
			os.Exit(1)
		}
		engine = execution.NewLiveEngine(store, sizer, risk, auth, cfg.Risk.InitialBankroll, log)
		slog.Warn("=== LIVE TRADING MODE — REAL MONEY ===", "address", cfg.API.Address)
	} else {
		engine = execution.NewPaperEngine(store, sizer, risk, cfg.Risk.InitialBankroll, log)
	}

	resolver := execution.NewResolver(client, store, store, feedback, cfg.Risk.InitialBankroll, log)
	console := notify.NewConsole()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		runReport(ctx, engine, feedback, store, client, console)
		return
	}

	a := &app{
		markets:    client,
		source:     forecast.NewClient(cfg.API.ForecastBase),
		forecasts:  store,
		calibrator: calibrator,
		analyzer:   analyzer,
		feedback:   feedback,
		engine:     engine,
		resolver:   resolver,
		console:    console,
		mode:       modeLabel(*live),
	}

	if err := a.run(ctx, cfg.TradeInterval(), *once); err != nil {
		slog.Error("trading loop exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polyoracle stopped cleanly")
}

func modeLabel(live bool) string {
	if live {
		return "LIVE"
	}
	return "PAPER"
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
