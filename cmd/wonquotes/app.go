package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/wonquotes/internal/changelog"
	"github.com/fyrsmithlabs/wonquotes/internal/config"
	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/logging"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/oracle"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
	"github.com/fyrsmithlabs/wonquotes/internal/telemetry"
	"github.com/fyrsmithlabs/wonquotes/internal/winprob"
)

const changelogFile = "changelog.jsonl"

// app holds the wired components for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  *prometheus.Registry

	store     *quotes.Store
	engine    *matching.Engine
	history   *history.Aggregator
	estimator *winprob.Estimator
	oracle    *oracle.Oracle

	closers []func() error
}

// newApp loads configuration and wires the store, matching, history,
// estimator and oracle.
func newApp(ctx context.Context, opts *globalOptions) (a *app, err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	a = &app{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	if a.logger, err = newLogger(cfg.Logging, opts.logLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	z := a.logger.Underlying()

	if a.telemetry, err = telemetry.New(ctx, telemetryConfig(cfg.Telemetry), z.Named("telemetry")); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return a.telemetry.Shutdown(context.Background()) })

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	backend, err := quotes.NewBackend(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	changes, err := a.changelog(cfg.Changelog)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	a.store, err = quotes.Open(ctx, backend, quotes.Options{
		MaxRecords:  cfg.Store.MaxRecords,
		DeferWrites: cfg.Store.DeferWrites,
		Logger:      z.Named("store"),
		Metrics:     quotes.NewMetrics(a.registry),
		Changelog:   changes,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	// Store.Close flushes deferred writes, so it runs before telemetry shutdown.
	a.closers = append([]func() error{a.store.Close}, a.closers...)

	a.engine = matching.NewEngine(a.store, matching.WithLogger(z.Named("matching")))
	a.history = history.NewAggregator(a.engine, z.Named("history"))
	a.estimator = winprob.NewEstimator(a.history)

	var rules oracle.RulesSource = oracle.StaticRules(oracle.DefaultRules())
	if cfg.Pricing.RulesPath != "" {
		rules = oracle.NewFileRules(cfg.Pricing.RulesPath, z.Named("rules"))
	}
	a.oracle = oracle.New(a.history,
		oracle.WithRules(rules),
		oracle.WithStats(a.store),
		oracle.WithLogger(z.Named("oracle")),
		oracle.WithMeterProvider(a.telemetry.MeterProvider()),
	)

	a.logger.Debug(ctx, "wonquotes ready",
		zap.String("backend", cfg.Store.Backend),
		zap.String("path", cfg.Store.Path),
		zap.Int("records", a.store.Len()))
	return a, nil
}

// changelog builds the configured audit writers, or nil when disabled.
func (a *app) changelog(cfg config.ChangelogConfig) (changelog.Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var writers []changelog.Writer
	if cfg.Dir != "" {
		fw, err := changelog.NewFileWriter(cfg.Dir, changelogFile)
		if err != nil {
			return nil, fmt.Errorf("changelog: %w", err)
		}
		writers = append(writers, fw)
	}
	if cfg.KafkaBrokers != "" {
		kw := changelog.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, kw.Close)
		writers = append(writers, kw)
	}
	return changelog.NewMultiWriter(writers...), nil
}

// Close releases everything newApp opened, in order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.logger != nil {
		if err := a.logger.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newLogger(cfg config.LoggingConfig, levelOverride string) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	if cfg.Format != "" {
		lc.Format = cfg.Format
	}
	level := cfg.Level
	if levelOverride != "" {
		level = levelOverride
	}
	if level != "" {
		lvl, err := logging.LevelFromString(level)
		if err != nil {
			return nil, err
		}
		lc.Level = lvl
	}
	if lc.Level <= zapcore.DebugLevel {
		lc.Sampling.Enabled = false
	}
	return logging.NewLogger(lc, nil)
}

func telemetryConfig(c config.TelemetryConfig) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = c.Enabled
	tc.Endpoint = c.Endpoint
	tc.Protocol = c.Protocol
	tc.Insecure = c.Insecure
	tc.TLSSkipVerify = c.TLSSkipVerify
	tc.Sampling.Rate = c.SamplingRate
	tc.Metrics.Enabled = c.MetricsEnabled
	if c.ExportInterval > 0 {
		tc.Metrics.ExportInterval = c.ExportInterval
	}
	tc.ServiceVersion = version
	return tc
}
