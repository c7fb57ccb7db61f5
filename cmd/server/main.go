package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pulseworks.app/conductor/common/id"
	"pulseworks.app/conductor/common/llm"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/common/otel"
	"pulseworks.app/conductor/core/config"
	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/engine"
	"pulseworks.app/conductor/internal/http/middleware"
	httprouter "pulseworks.app/conductor/internal/http/router"
	"pulseworks.app/conductor/internal/notify"
	"pulseworks.app/conductor/internal/platform"
	"pulseworks.app/conductor/internal/service"
	"pulseworks.app/conductor/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "conductor server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Notify.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Notify.Stream)

	producer := notify.NewRedisProducer(redisClient, cfg.Notify.Stream, nil)
	defer producer.Close()

	generatorClient, err := llm.New(llm.Config{
		APIKey:  cfg.GeneratorLLM.APIKey,
		BaseURL: cfg.GeneratorLLM.BaseURL,
		Model:   cfg.GeneratorLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize generator llm client", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	stores := store.NewStores(database.Pool())

	facade := platform.NewFacade(
		stores.Connections(),
		platform.ProvidersFromConfig(cfg.Platforms),
		platform.NewRESTRefresher(cfg.Platforms.RefreshURL, cfg.Platforms.FetchTimeout),
		clock,
	)

	eng := engine.New(
		stores.Versions(), stores.Deliverables(), stores.ExecutionLogs(),
		facade, generatorClient, producer, clock,
		engine.Config{
			GenerationTimeout: cfg.Orchestration.GenerationTimeout,
			SourceLookback:    cfg.Orchestration.SourceLookback,
			MaxTokens:         cfg.GeneratorLLM.MaxTokens,
		},
	)

	services := service.NewServices(stores, eng)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// RunNow is synchronous and bounded by the generation timeout.
		WriteTimeout: cfg.Orchestration.GenerationTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		IsProduction: cfg.IsProduction(),
	})

	return router
}

const banner = `
 ██████╗ ██████╗ ███╗   ██╗██████╗ ██╗   ██╗ ██████╗████████╗ ██████╗ ██████╗
██╔════╝██╔═══██╗████╗  ██║██╔══██╗██║   ██║██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗
██║     ██║   ██║██╔██╗ ██║██║  ██║██║   ██║██║        ██║   ██║   ██║██████╔╝
██║     ██║   ██║██║╚██╗██║██║  ██║██║   ██║██║        ██║   ██║   ██║██╔══██╗
╚██████╗╚██████╔╝██║ ╚████║██████╔╝╚██████╔╝╚██████╗   ██║   ╚██████╔╝██║  ██║
 ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝╚═════╝  ╚═════╝  ╚═════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝
`
