package main

import (
	"context"
	"encoding/json"
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
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/taskpad/internal/adapter/apiclient"
	tphttp "github.com/Strob0t/taskpad/internal/adapter/http"
	"github.com/Strob0t/taskpad/internal/adapter/litellm"
	"github.com/Strob0t/taskpad/internal/adapter/mcp"
	tpnats "github.com/Strob0t/taskpad/internal/adapter/nats"
	"github.com/Strob0t/taskpad/internal/adapter/natskv"
	"github.com/Strob0t/taskpad/internal/adapter/otel"
	"github.com/Strob0t/taskpad/internal/adapter/postgres"
	"github.com/Strob0t/taskpad/internal/adapter/ristretto"
	"github.com/Strob0t/taskpad/internal/adapter/tiered"
	"github.com/Strob0t/taskpad/internal/adapter/ws"
	"github.com/Strob0t/taskpad/internal/config"
	"github.com/Strob0t/taskpad/internal/logger"
	"github.com/Strob0t/taskpad/internal/middleware"
	"github.com/Strob0t/taskpad/internal/port/assistant"
	"github.com/Strob0t/taskpad/internal/port/cache"
	"github.com/Strob0t/taskpad/internal/port/messagequeue"
	"github.com/Strob0t/taskpad/internal/resilience"
	"github.com/Strob0t/taskpad/internal/service"
)

const (
	idempotencyTTL   = 24 * time.Hour
	shutdownGrace    = 10 * time.Second
	modelRequestCost = 5 // rate-limit tokens for a request that calls the model
)

// legacySunset is advertised on the unversioned routes.
var legacySunset = time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)

func runServe(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"nats", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := otel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTEL(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// Cache: ristretto L1, NATS KV L2 when available.
	l1, err := ristretto.NewMB(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	var (
		queue    messagequeue.Queue
		tasksL2  cache.Cache
		replayL2 cache.Cache
	)
	if cfg.NATS.URL != "" {
		q, err := tpnats.Connect(ctx, cfg.NATS.URL,
			tpnats.WithRetryDelay(cfg.NATS.RetryDelay),
			tpnats.WithStreamMaxAge(cfg.NATS.StreamAge),
		)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = q.Drain() }()
		queue = q

		tasksL2 = openKV(ctx, q, cfg.NATS.KVBucket, cfg.Cache.TTL)
		replayL2 = openKV(ctx, q, cfg.NATS.KVBucket+"-replay", idempotencyTTL)
	} else {
		slog.Info("nats not configured, task events are broadcast in-process")
	}
	// Both tiers share the ristretto L1, so keys are namespaced.
	taskCache := tiered.New(l1, tasksL2, cfg.Cache.L1TTL)
	replayCache := tiered.New(l1, replayL2, 0)

	// --- Services ---

	hub := ws.NewHub(cfg.Server.Origins())
	store := postgres.NewStore(pool)

	taskSvc := service.NewTaskService(store, cache.WithPrefix(taskCache, "tasks:"), cfg.Cache.TTL, queue, hub)
	taskSvc.SetMetrics(metrics)
	authSvc := service.NewAuthService(store, &cfg.Auth)

	llmClient := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Timeout)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
		resilience.WithFailureFilter(litellm.IsOutage),
		resilience.WithStateChange(func(from, to resilience.State) {
			slog.Warn("llm circuit breaker", "from", from.String(), "to", to.String())
		}),
	))
	var completer service.ChatCompleter
	if llmClient.Configured() {
		completer = llmClient
	}
	llmSvc := service.NewLLMService(completer, cfg.LiteLLM)
	llmSvc.SetMetrics(metrics)

	var remote assistant.Remote = llmSvc
	if cfg.Assistant.Endpoint != "" {
		remote = apiclient.NewAssistant(cfg.Assistant.Endpoint, "", cfg.LiteLLM.Timeout)
		slog.Info("assistant sessions use external endpoint", "endpoint", cfg.Assistant.Endpoint)
	}
	sessions := service.NewSessionService(remote, taskSvc, hub, cfg.Assistant.SessionIdleTimeout)
	sessions.SetMetrics(metrics)

	// --- HTTP ---

	handlers := &tphttp.Handlers{
		Tasks:    taskSvc,
		Auth:     authSvc,
		LLM:      llmSvc,
		Sessions: sessions,
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst,
		middleware.WithCost(tphttp.ModelCost(modelRequestCost)))

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(tphttp.Logger)
	r.Use(otel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(tphttp.CORS(cfg.Server.Origins()))
	r.Use(tphttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Auth(authSvc, cfg.Auth.Enabled))

	r.Get("/health", healthHandler(pool, queue, llmClient, taskCache))
	r.Get("/ws", hub.HandleWS)

	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(mcp.ServerConfig{
			Name:    "taskpad",
			Version: "0.1.0",
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{Tasks: taskSvc})
		r.Handle("/mcp", mcpSrv.Handler())
		slog.Info("mcp server enabled", "path", "/mcp")
	}

	r.Group(func(r chi.Router) {
		r.Use(limiter.Handler)
		r.Use(chimw.Timeout(cfg.LiteLLM.Timeout + 5*time.Second))
		tphttp.MountRoutes(r, handlers, tphttp.RouteOptions{
			Idempotency:  middleware.Idempotency(cache.WithPrefix(replayCache, "idem:"), idempotencyTTL),
			LegacySunset: legacySunset,
		})
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.LiteLLM.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- Run ---

	g, gctx := errgroup.WithContext(ctx)
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sessions.RunReaper(gctx, cfg.Assistant.ReapInterval)
	})
	g.Go(func() error {
		return limiter.Run(gctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	})
	if queue != nil {
		relay := service.NewTaskEventRelay(queue, hub)
		g.Go(func() error { return relay.Run(gctx) })
	}

	return g.Wait()
}

// healthHandler reports the reachability of each backing service.
func healthHandler(pool *pgxpool.Pool, queue messagequeue.Queue, llm *litellm.Client, tasks *tiered.Cache) http.HandlerFunc {
	type healthStatus struct {
		Status   string       `json:"status"`
		Postgres string       `json:"postgres"`
		NATS     string       `json:"nats"`
		LiteLLM  string       `json:"litellm"`
		Breaker  string       `json:"llm_breaker"`
		Cache    tiered.Stats `json:"task_cache"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := healthStatus{Status: "ok", Postgres: "up", NATS: "disabled", LiteLLM: "disabled", Breaker: llm.BreakerState(), Cache: tasks.Stats()}
		code := http.StatusOK

		if err := pool.Ping(ctx); err != nil {
			status.Status, status.Postgres = "degraded", "down"
			code = http.StatusServiceUnavailable
		}
		if queue != nil {
			status.NATS = "up"
			if !queue.IsConnected() {
				status.Status, status.NATS = "degraded", "down"
			}
		}
		if llm.Configured() {
			status.LiteLLM = "up"
			if ok, _ := llm.Health(ctx); !ok {
				status.LiteLLM = "down"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// openKV returns a NATS KV backed cache, or nil when the bucket cannot be
// opened so the tier falls back to L1 only.
func openKV(ctx context.Context, q *tpnats.Queue, bucket string, ttl time.Duration) cache.Cache {
	kv, err := q.KeyValue(ctx, bucket, ttl)
	if err != nil {
		slog.Warn("nats kv unavailable, using L1 cache only", "bucket", bucket, "error", err)
		return nil
	}
	return natskv.New(kv)
}
