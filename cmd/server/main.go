package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"segment-correlator/internal/correlator"
	"segment-correlator/internal/platform/config"
	"segment-correlator/internal/platform/logger"
	"segment-correlator/internal/platform/metrics"
	"segment-correlator/internal/player"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	statusURL := config.GetEnv("STATUS_URL", "http://localhost:8000/api/admin/status")
	processedURL := config.GetEnv("PROCESSED_PLAYLIST_URL", "http://localhost:8000/api/stream")
	rawURL := config.GetEnv("RAW_PLAYLIST_URL", "http://localhost:8000/api/raw")
	pollInterval := config.GetEnvDuration("POLL_INTERVAL", correlator.DefaultPollInterval)
	watermarkExpiry := config.GetEnvDuration("WATERMARK_EXPIRY", correlator.DefaultWatermarkExpiry)
	refreshInterval := config.GetEnvDuration("PLAYLIST_REFRESH_INTERVAL", player.DefaultRefreshInterval)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	factory := func(feed correlator.FeedKind) (correlator.Player, error) {
		playlistURL := processedURL
		if feed == correlator.FeedRaw {
			playlistURL = rawURL
		}
		return player.NewMonitor(playlistURL, refreshInterval, log), nil
	}
	fetcher := correlator.NewHTTPStatusFetcher(statusURL, pollInterval)

	engine := correlator.NewEngine(factory, fetcher, correlator.EngineConfig{
		PollInterval:    pollInterval,
		WatermarkExpiry: watermarkExpiry,
	}, log, met)

	if err := engine.Start(context.Background()); err != nil {
		log.Error("engine start failed", "error", err)
		os.Exit(1)
	}

	h := correlator.NewHandler(engine, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { met.SetSnapshotStale(engine.Stale()) }).ServeHTTP(w, req)
	})
	r.Get("/healthz", h.Healthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/timeline", h.GetTimeline)
		r.Get("/status", h.GetStatus)
		r.Post("/deploy", h.Deploy)
		r.Post("/feed/{feed}", h.SwitchFeed)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"status_url", statusURL,
		"poll_interval", pollInterval.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	engine.Stop()
	log.Info("server stopped")
}
