// Package app wires the vanish server runtime: config, logging, storage, services and HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"vanish/cmd/identity"
	"vanish/cmd/internal/api"
	"vanish/cmd/internal/auth"
	"vanish/cmd/internal/auth/session"
	"vanish/cmd/internal/drop"
	"vanish/cmd/internal/invite"
	"vanish/cmd/internal/metrics"
	"vanish/cmd/internal/report"
	"vanish/cmd/security/password"
)

// reportSource is a report.Source that may hold resources.
type reportSource interface {
	report.Source
	Close() error
}

type nopCloser struct{ report.Source }

func (nopCloser) Close() error { return nil }

// App is the vanish server runtime.
type App struct {
	cfg Config
	log *slog.Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	registry *prometheus.Registry
	reports  reportSource
	handler  http.Handler
}

// New constructs a fully wired App. With no database URL every store lives in memory.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &App{cfg: cfg, log: log, registry: reg}

	ids, drops, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	h, err := a.wire(ids, drops, m)
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = a.routes(h, m)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (identity.Store, drop.Store, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.memory_store")
		ids := identity.NewMemoryStore()
		drops := drop.NewMemoryStore()
		a.reports = nopCloser{report.NewMemorySource(drops)}
		return ids, drops, nil
	}

	pool, err := NewDBPool(ctx, a.cfg, a.log)
	if err != nil {
		return nil, nil, err
	}
	a.dbPool, a.dbEnabled = pool, true

	ids, err := identity.NewPostgresStore(pool, identity.WithSchema(a.cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	drops, err := drop.NewPostgresStore(pool, drop.WithSchema(a.cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	src, err := report.OpenSQLSource(pool, a.cfg.DBSchema)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	a.reports = src

	a.log.Info("db.enabled.postgres_store", slog.String("schema", a.cfg.DBSchema))
	return ids, drops, nil
}

func (a *App) wire(ids identity.Store, drops drop.Store, m *metrics.Metrics) (*api.Handler, error) {
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	dropCfg, err := drop.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	base := a.cfg.PublicBaseURL
	if base == "" {
		base = runtimeBaseURL(a.cfg.HTTPAddr)
	}
	inv, err := invite.NewService(ids, invite.WithBaseURL(base))
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(ids, session.NewManager(sessCfg, ids), inv,
		auth.WithLogger(a.log),
		auth.WithMetrics(m),
		auth.WithPasswordConfig(pwCfg),
	)
	if err != nil {
		return nil, err
	}

	dropSvc, err := drop.NewService(drops, dropCfg, drop.WithLogger(a.log), drop.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	engine := report.NewEngine(a.reports, nil)
	return api.NewHandler(a.log, api.LoadConfigFromEnv(), dropSvc, authSvc, engine)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP until ctx is canceled or the listener fails, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", slog.String("addr", a.cfg.HTTPAddr), slog.Bool("db_enabled", a.dbEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", slog.Any("err", err))
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", slog.Any("err", err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.reports != nil {
		if err := a.reports.Close(); err != nil {
			a.log.Warn("report.close.fail", slog.Any("err", err))
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

// runtimeBaseURL derives a reachable origin from the listen address for when no public URL is set.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port))
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
