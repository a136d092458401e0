package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rgehrsitz/rentgo/internal/billing"
	"github.com/rgehrsitz/rentgo/internal/config"
	"github.com/rgehrsitz/rentgo/internal/lock"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/internal/store/sqlstore"
)

// app is the wiring shared by every command that touches the billing store.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	engine   *billing.Engine
	registry *prometheus.Registry
	closers  []io.Closer
}

func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logging.NewLogger(cmd.ErrOrStderr())
	if debugMode, _ := cmd.Flags().GetBool("debug"); debugMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	a := &app{cfg: cfg, log: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx := cmd.Context()
	backend, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []billing.Option{billing.WithMetrics(billing.NewMetrics(a.registry))}
	if cfg.Lock.RedisURL != "" {
		rl, err := lock.DialRedis(ctx, cfg.Lock.RedisURL, cfg.Lock.TTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rl)
		opts = append(opts, billing.WithLocker(rl))
	}

	a.engine = billing.NewEngine(backend, opts...)
	a.engine.SetLogger(logger)
	logger.WithFields(logrus.Fields{
		"driver": cfg.Storage.Driver,
		"redis":  cfg.Lock.RedisURL != "",
	}).Debug("billing engine ready")
	return a, nil
}

func (a *app) openBackend(ctx context.Context) (store.Backend, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverFile:
		return store.NewFileBackend(a.cfg.Storage.DSN), nil
	case config.DriverSQLite, config.DriverPostgres:
		s, err := sqlstore.Open(ctx, a.cfg.Storage.Driver, a.cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", a.cfg.Storage.Driver)
	}
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.WithError(err).Warn("failed to close resource")
		}
	}
	a.closers = nil
}
