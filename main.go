package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servicechat/internal/api"
	"servicechat/internal/config"
	"servicechat/internal/observability"
	"servicechat/internal/ratelimit"
	"servicechat/internal/redis"
	"servicechat/internal/router"
	"servicechat/internal/scenario"
	"servicechat/internal/service/ai"
	"servicechat/internal/service/assistant"
	"servicechat/internal/session"
	"servicechat/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("SERVICECHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal("load config", err)
	}
	logger := observability.Init(os.Stdout, cfg.BasicConfig.LogLevel)
	if observability.ParseLevel(cfg.BasicConfig.LogLevel) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt := scenario.DefaultPrompt
	if cfg.Scenarios.PromptFile != "" {
		prompt, err = scenario.LoadPrompt(ctx, cfg.Scenarios.PromptFile)
		if err != nil {
			fatal("load seed prompt", err)
		}
	}
	catalog, err := scenario.NewCatalog(cfg.Scenarios.Names, prompt)
	if err != nil {
		fatal("build scenario catalog", err)
	}

	store := session.NewStore(catalog, session.Options{
		Capacity: cfg.Session.Capacity,
		IdleTTL:  cfg.Session.IdleTTL(),
	})
	store.StartSweeper(ctx, cfg.Session.SweepInterval())

	completer, err := ai.New(ctx, cfg)
	if err != nil {
		fatal("init completion gateway", err)
	}

	dispatcher := worker.NewDispatcher(
		*cfg.Workers.MinWorkers,
		cfg.Workers.MaxWorkers,
		cfg.Workers.QueueSize,
		cfg.Workers.IdleTimeout(),
	)
	defer dispatcher.Close()

	var counter ratelimit.Counter
	if cfg.RateLimit.Backend == "redis" {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			fatal("create redis client", err)
		}
		defer rdb.Close()
		counter = rdb
	}
	limiter, err := ratelimit.New(cfg.RateLimit, counter)
	if err != nil {
		fatal("init rate limiter", err)
	}

	assistantService := assistant.NewService(catalog, store, router.New(catalog), completer, dispatcher, assistant.Options{
		WindowLimit: cfg.Session.WindowLimit,
		ResetScope:  cfg.Session.ResetScope,
		Timeout:     cfg.Completion.Timeout(),
	})
	handlers := api.NewHandler(assistantService, api.Options{
		Limiter:          limiter,
		Workers:          dispatcher,
		ErrorStatusCodes: cfg.BasicConfig.ErrorStatusCodes,
	})

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           api.NewRouter(handlers, cfg.BasicConfig.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening",
			"addr", srv.Addr,
			"scenarios", catalog.Names(),
			"engine", cfg.Completion.Engine,
			"reset_scope", cfg.Session.ResetScope,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server stopped", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Completion.Timeout()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func fatal(msg string, err error) {
	observability.Logger().Error(msg, "error", err)
	os.Exit(1)
}
