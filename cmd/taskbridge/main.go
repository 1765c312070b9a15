package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	tba2a "github.com/Strob0t/taskbridge/internal/adapter/a2a"
	tbhttp "github.com/Strob0t/taskbridge/internal/adapter/http"
	tbmcp "github.com/Strob0t/taskbridge/internal/adapter/mcp"
	tbnats "github.com/Strob0t/taskbridge/internal/adapter/nats"
	tbotel "github.com/Strob0t/taskbridge/internal/adapter/otel"
	"github.com/Strob0t/taskbridge/internal/adapter/postgres"
	"github.com/Strob0t/taskbridge/internal/adapter/ristretto"
	"github.com/Strob0t/taskbridge/internal/adapter/ws"
	"github.com/Strob0t/taskbridge/internal/config"
	"github.com/Strob0t/taskbridge/internal/logger"
	"github.com/Strob0t/taskbridge/internal/middleware"
	"github.com/Strob0t/taskbridge/internal/port/localtool"
	"github.com/Strob0t/taskbridge/internal/resilience"
	"github.com/Strob0t/taskbridge/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"nats_url", cfg.NATS.URL,
		"remote_tools", len(cfg.Remote.AgentURLs),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTEL, err := tbotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := tbotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Local tools ---

	var tools []localtool.Tool
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")

		papers := postgres.NewPaperStore(pool, cfg.Postgres.QueryTimeout)
		tools = append(tools, service.NewTranslatorTool(papers, cfg.Postgres.QueryTimeout))
	} else {
		slog.Warn("postgres dsn not set, local translator tool disabled")
	}

	// --- Core ---

	breakers := resilience.NewBreakers(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	store := service.NewResultStore()
	registry := service.NewRegistry(store)

	exec := service.NewExecutor(cfg.Remote, breakers, tba2a.NewClient(), store, registry, tools...)
	exec.SetMetrics(metrics)

	sched := service.NewScheduler(cfg.Scheduler.QueueSize, cfg.Scheduler.MaxParallel)
	dispatcher := service.NewDispatcher(sched, exec)
	dispatcher.SetMetrics(metrics)

	consumer := service.NewConsumer(
		tbnats.NewBroker(cfg.NATS),
		dispatcher,
		cfg.NATS.Subject,
		cfg.NATS.ConnectBackoff,
		cfg.NATS.ConsumeBackoff,
	)
	consumer.SetMetrics(metrics)

	pub, err := tbnats.Connect(ctx, cfg.NATS)
	if err != nil {
		return fmt.Errorf("nats publisher: %w", err)
	}
	defer func() { _ = pub.Close() }()

	taskSvc := service.NewTaskService(pub, cfg.NATS.Subject, store, registry, exec, sched, breakers)

	// --- HTTP ---

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	handlers := &tbhttp.Handlers{
		Tasks:    taskSvc,
		Hub:      ws.NewHub(registry),
		Cache:    l1,
		CacheTTL: cfg.Cache.TTL,
	}

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = tbmcp.NewServer(tbmcp.ServerConfig{
			Name:    cfg.MCP.Name,
			Version: cfg.MCP.Version,
			APIKey:  cfg.MCP.APIKey,
		}, tbmcp.ServerDeps{Tasks: taskSvc}).Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(tbhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tbhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(tbotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	tbhttp.MountRoutes(r, handlers, mcpHandler)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- Run ---

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		select {
		case <-sched.Ready():
		case <-gctx.Done():
			return nil
		}
		consumer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
