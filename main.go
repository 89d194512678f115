package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"styleforge-server/modules/common/config"
	"styleforge-server/modules/common/gemini"
	"styleforge-server/modules/common/kvstore"
	"styleforge-server/modules/common/logger"
	"styleforge-server/modules/common/notify"
	"styleforge-server/modules/generation"
	"styleforge-server/modules/history"
	"styleforge-server/modules/ingest"
	"styleforge-server/modules/studio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("production")
		bootLog.Fatal().Err(err).Msg("❌ Failed to load config")
	}
	log := logger.New(cfg.AppEnv)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("❌ Server stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := kvstore.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := kvstore.Close(kv); err != nil {
			log.Warn().Err(err).Msg("⚠️  Failed to close history backend")
		}
	}()
	log.Info().Str("backend", cfg.HistoryBackend).Msg("✅ History backend ready")

	hist := history.Load(ctx, kv, cfg.HistoryKey, log)

	gen, err := newGenerator(ctx, cfg, log)
	if err != nil {
		return err
	}

	hub := notify.NewHub(log)
	previews := ingest.NewPreviewRegistry("/previews", cfg.PreviewQuality, log)
	pipeline := ingest.NewPipeline(ingest.OptionsFromConfig(cfg), previews, log)

	manager := studio.NewManager(studio.Deps{
		Pipeline:  pipeline,
		Generator: gen,
		History:   hist,
		Hub:       hub,
		Log:       log,
		OrchestratorOptions: []generation.Option{
			generation.WithMaxAttempts(cfg.MaxAttempts),
			generation.WithBackoffBase(cfg.BackoffBase),
		},
	})
	defer manager.CloseAll()

	r := mux.NewRouter()
	r.Use(studio.EnableCORS)
	studio.NewHandler(manager, hist, hub, cfg.MaxRequestBytes, log).RegisterRoutes(r)
	previews.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("🚀 Styleforge server starting")
		log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws?session=<id>", cfg.Port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return manager.RunCleanup(gCtx, cfg.SessionSweepInterval, cfg.SessionIdleTimeout)
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("🛑 Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newGenerator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (generation.Generator, error) {
	switch cfg.Generator {
	case config.GeneratorGemini:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			return nil, err
		}
		return generation.NewGeminiGenerator(client, log), nil
	default:
		log.Info().Float64("overload_rate", cfg.MockOverloadRate).Msg("🧪 Using mock generator")
		return generation.NewMockGenerator(cfg.MockOverloadRate), nil
	}
}
