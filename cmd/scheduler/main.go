package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"pulseworks.app/conductor/common/id"
	"pulseworks.app/conductor/common/llm"
	"pulseworks.app/conductor/common/logger"
	"pulseworks.app/conductor/common/otel"
	"pulseworks.app/conductor/core/config"
	"pulseworks.app/conductor/core/db"
	"pulseworks.app/conductor/internal/analyzer"
	"pulseworks.app/conductor/internal/detector"
	"pulseworks.app/conductor/internal/engine"
	"pulseworks.app/conductor/internal/gate"
	"pulseworks.app/conductor/internal/notify"
	"pulseworks.app/conductor/internal/platform"
	"pulseworks.app/conductor/internal/scheduler"
	"pulseworks.app/conductor/internal/service"
	"pulseworks.app/conductor/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeScheduler)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "conductor scheduler starting",
		"env", cfg.Env,
		"tick_interval", cfg.Orchestration.TickInterval)

	// Distinct node ID from the server so both can mint IDs concurrently.
	if err := id.Init(2); err != nil {
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

	gateClient, err := llm.New(llm.Config{
		APIKey:  cfg.GateLLM.APIKey,
		BaseURL: cfg.GateLLM.BaseURL,
		Model:   cfg.GateLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize gate llm client", "error", err)
		os.Exit(1)
	}
	generatorClient, err := llm.New(llm.Config{
		APIKey:  cfg.GeneratorLLM.APIKey,
		BaseURL: cfg.GeneratorLLM.BaseURL,
		Model:   cfg.GeneratorLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize generator llm client", "error", err)
		os.Exit(1)
	}
	analyzerClient, err := llm.New(llm.Config{
		APIKey:  cfg.AnalyzerLLM.APIKey,
		BaseURL: cfg.AnalyzerLLM.BaseURL,
		Model:   cfg.AnalyzerLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize analyzer llm client", "error", err)
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

	// Hourly class: time-sensitive detection. Daily class: slow-moving signals.
	hourlyRunner := detector.NewRunner(facade, []detector.Detector{
		detector.NewCalendarProximity(cfg.Detectors.MeetingLeadWindow, cfg.Detectors.MinExternalAttendees),
	}, clock)
	dailyRunner := detector.NewRunner(facade, []detector.Detector{
		detector.NewInboxSilence(cfg.Detectors.InboxSilenceAfter),
		detector.NewChannelDrift(cfg.Detectors.ChannelQuietAfter),
	}, clock)

	reasoningGate := gate.New(gateClient, stores.Deliverables(), cfg.Orchestration.ReactiveThreshold, cfg.GateLLM.MaxTokens)

	eng := engine.New(
		stores.Versions(), stores.Deliverables(), stores.ExecutionLogs(),
		facade, generatorClient, producer, clock,
		engine.Config{
			GenerationTimeout: cfg.Orchestration.GenerationTimeout,
			SourceLookback:    cfg.Orchestration.SourceLookback,
			MaxTokens:         cfg.GeneratorLLM.MaxTokens,
		},
	)

	patternAnalyzer := analyzer.New(
		analyzerClient, stores.Sessions(), stores.Deliverables(), stores.Ledger(), clock,
		analyzer.Config{
			Window:      cfg.Orchestration.AnalyzerWindow,
			MinSessions: cfg.Orchestration.AnalyzerMinSessions,
			Threshold:   cfg.Orchestration.SuggestionThreshold,
			Cooldown:    cfg.Orchestration.Cooldowns.ConversationPattern,
			MaxTokens:   cfg.AnalyzerLLM.MaxTokens,
		},
	)

	pipeline := scheduler.NewPipeline(
		hourlyRunner, dailyRunner,
		stores.Ledger(), reasoningGate, eng, service.NewTxRunner(database),
		cfg.Orchestration.Cooldowns, clock,
	)

	sched := scheduler.New(stores.Users(), pipeline, patternAnalyzer, clock, cfg.Orchestration)

	sweeper := engine.NewSweeper(stores.Versions(), clock, engine.SweeperConfig{
		Interval: cfg.Orchestration.SweepInterval,
		MaxAge:   cfg.Orchestration.StuckVersionMaxAge,
	})

	go sched.Run(ctx)
	go sweeper.Run(ctx)

	slog.InfoContext(ctx, "scheduler initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down scheduler...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Sweeper first (quick), then the scheduler, which may be mid-tick.
	sweeper.Stop()
	sched.Stop()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

const banner = `
 ██████╗ ██████╗ ███╗   ██╗██████╗ ██╗   ██╗ ██████╗████████╗ ██████╗ ██████╗
██╔════╝██╔═══██╗████╗  ██║██╔══██╗██║   ██║██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗
██║     ██║   ██║██╔██╗ ██║██║  ██║██║   ██║██║        ██║   ██║   ██║██████╔╝
██║     ██║   ██║██║╚██╗██║██║  ██║██║   ██║██║        ██║   ██║   ██║██╔══██╗
╚██████╗╚██████╔╝██║ ╚████║██████╔╝╚██████╔╝╚██████╗   ██║   ╚██████╔╝██║  ██║
 ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝╚═════╝  ╚═════╝  ╚═════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝
`
