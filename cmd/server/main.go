package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/embedprep/internal/api"
	"github.com/dgallion1/embedprep/internal/config"
	"github.com/dgallion1/embedprep/internal/dataset"
	"github.com/dgallion1/embedprep/internal/generate"
	"github.com/dgallion1/embedprep/internal/logging"
	"github.com/dgallion1/embedprep/internal/pipeline"
	"github.com/dgallion1/embedprep/internal/storage"
	"github.com/dgallion1/embedprep/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if cfg.LogFormat == "" {
		cfg.LogFormat = logging.FormatJSON
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.TelemetryEnabled,
		ServiceName: "embedprep",
		Endpoint:    cfg.OTLPEndpoint,
		Logger:      log,
	})
	if err != nil {
		log.Warn("tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	// Initialize clients.
	gen, err := generate.FromConfig(ctx, cfg, log)
	if err != nil {
		log.Error("generation client", "error", err)
		os.Exit(1)
	}

	var bucket storage.Bucket
	if cfg.GoogleCloudBucket != "" {
		gcs, err := storage.NewGCS(ctx, cfg.GoogleCloudBucket, log)
		if err != nil {
			log.Error("storage client", "error", err)
			os.Exit(1)
		}
		if !gcs.BucketExists(ctx) {
			log.Warn("output bucket not reachable", "bucket", cfg.GoogleCloudBucket)
		}
		defer gcs.Close()
		bucket = gcs
	} else {
		local, err := storage.NewLocal(cfg.OutputDir)
		if err != nil {
			log.Error("output directory", "error", err)
			os.Exit(1)
		}
		bucket = local
	}

	// Initialize pipeline.
	builder := dataset.NewBuilder(gen, generate.NewPrompts(cfg.TemplateDir),
		dataset.WithLogger(log),
		dataset.WithConcurrency(cfg.MaxConcurrentGenerate),
		dataset.WithTemplates(cfg.PairsTemplate, cfg.TripletsTemplate),
	)
	orch := pipeline.NewOrchestrator(cfg, builder, bucket, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, gen, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		gen.Close()
		shutdownTracing(shutdownCtx)
	}()

	log.Info("starting embedprep", "port", cfg.Port, "provider", gen.Provider(), "bucket", bucket.Name())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
