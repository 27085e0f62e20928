package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/skywatch/internal/api"
	"github.com/yegors/skywatch/internal/assessment"
	"github.com/yegors/skywatch/internal/audio"
	"github.com/yegors/skywatch/internal/bus"
	"github.com/yegors/skywatch/internal/collector"
	"github.com/yegors/skywatch/internal/config"
	"github.com/yegors/skywatch/internal/dispatch"
	"github.com/yegors/skywatch/internal/escalation"
	"github.com/yegors/skywatch/internal/extraction"
	"github.com/yegors/skywatch/internal/feed"
	"github.com/yegors/skywatch/internal/metrics"
	"github.com/yegors/skywatch/internal/pipeline"
	"github.com/yegors/skywatch/internal/source"
	"github.com/yegors/skywatch/internal/storage/sqlite"
	"github.com/yegors/skywatch/internal/transcription"
	"github.com/yegors/skywatch/pkg/logger"
)

const defaultConfigPath = "config.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Skywatch starting",
		logger.String("config_path", *configPath),
		logger.String("source_url", cfg.Source.URL),
		logger.Int("sample_rate", cfg.Audio.SampleRate),
		logger.Int("chunk_duration_seconds", cfg.Audio.ChunkDurationSeconds))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared infrastructure
	appMetrics := metrics.NewMetrics()
	msgBus := bus.New(cfg.Bus.HistoryLimit, log)

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	transcriptStorage, err := sqlite.NewTranscriptStorage(db, log)
	if err != nil {
		log.Error("Failed to initialize transcript storage", logger.Error(err))
		os.Exit(1)
	}
	incidentStorage, err := sqlite.NewIncidentStorage(db, log)
	if err != nil {
		log.Error("Failed to initialize incident storage", logger.Error(err))
		os.Exit(1)
	}

	messageFeed := feed.New(cfg.Feed.Path, cfg.Feed.MaxMessages, log)

	// Audio capture
	chunker, err := audio.NewChunker(
		cfg.Audio.SampleRate,
		cfg.Audio.Channels,
		cfg.Audio.BytesPerSample,
		cfg.Audio.ChunkDurationSeconds,
	)
	if err != nil {
		log.Error("Failed to create chunker", logger.Error(err))
		os.Exit(1)
	}

	var mirror *audio.MirrorBuffer
	if cfg.Audio.MirrorToSink {
		mirror = audio.NewMirrorBuffer(ctx, log)
		defer mirror.Close()
	}

	var ingestor *audio.Ingestor
	if mirror != nil {
		ingestor = audio.NewIngestor(chunker, mirror, log)
	} else {
		ingestor = audio.NewIngestor(chunker, nil, log)
	}

	sourceClient := source.NewClient(
		cfg.Source.URL,
		time.Duration(cfg.Source.TimeoutSeconds)*time.Second,
		cfg.Source.MaxRetries,
		log,
	)

	// Collaborator boundaries
	transcriber := transcription.NewClient(transcription.Config{
		OpenAIAPIKey: cfg.Transcription.OpenAIAPIKey,
		Model:        cfg.Transcription.Model,
		Language:     cfg.Transcription.Language,
		Timeout:      time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
	}, log)

	extractor := extraction.NewClient(
		cfg.Extraction.OpenAIAPIKey,
		cfg.Extraction.Model,
		time.Duration(cfg.Extraction.TimeoutSeconds)*time.Second,
		log,
	)

	var assessor assessment.Assessor
	if cfg.Assessment.OpenAIAPIKey != "" {
		assessor = assessment.NewClient(
			cfg.Assessment.OpenAIAPIKey,
			cfg.Assessment.Model,
			time.Duration(cfg.Assessment.TimeoutSeconds)*time.Second,
			log,
		)
	} else {
		log.Warn("No assessment API key configured, using keyword classification")
		assessor = assessment.NewKeywordAssessor()
	}

	// Context and escalation
	coll := collector.New(collector.Config{
		RetentionHours:           cfg.Collector.RetentionHours,
		WindowMinutes:            cfg.Collector.ConsolidationWindowMinutes,
		CandidateLookbackMinutes: cfg.Collector.CandidateLookbackMinutes,
		VolumeThreshold:          cfg.Collector.VolumeCandidateThreshold,
	}, log)

	controller := escalation.NewController(ctx, coll, assessor, msgBus, escalation.Config{
		EvalInterval:      time.Duration(cfg.Escalation.EvalIntervalSeconds) * time.Second,
		LookbackMinutes:   cfg.Collector.CandidateLookbackMinutes,
		WindowMinutes:     cfg.Collector.ConsolidationWindowMinutes,
		MinConfidence:     cfg.Escalation.MinConfidence,
		CriticalThreshold: cfg.Escalation.CriticalThreshold,
		HighThreshold:     cfg.Escalation.HighThreshold,
		MediumThreshold:   cfg.Escalation.MediumThreshold,
		CallTimeout:       time.Duration(cfg.Escalation.CallTimeoutMinutes) * time.Minute,
		EvictionGrace:     time.Duration(cfg.Escalation.EvictionGraceMinutes) * time.Minute,
		MaxIncidentAge:    time.Duration(cfg.Escalation.MaxIncidentAgeMinutes) * time.Minute,
	}, log)

	// Call dispatch
	caller := dispatch.NewClient(
		cfg.Dispatch.BaseURL,
		cfg.Dispatch.APIKey,
		time.Duration(cfg.Dispatch.TimeoutSeconds)*time.Second,
		log,
	)
	dispatch.NewBridge(
		caller,
		dispatch.NewContactBook(cfg.Dispatch.Contacts),
		msgBus,
		cfg.Dispatch.Enabled,
		time.Duration(cfg.Dispatch.TimeoutSeconds)*time.Second,
		log,
	)

	// Pipeline
	pipe := pipeline.New(ctx, pipeline.Deps{
		Source:      sourceClient,
		Ingestor:    ingestor,
		Transcriber: transcriber,
		Extractor:   extractor,
		Collector:   coll,
		Escalation:  controller,
		Bus:         msgBus,
		Transcripts: transcriptStorage,
		Incidents:   incidentStorage,
		Feed:        messageFeed,
		Metrics:     appMetrics,
	}, pipeline.Config{
		SampleRate:          cfg.Audio.SampleRate,
		Channels:            cfg.Audio.Channels,
		QueueCapacity:       cfg.Audio.QueueCapacity,
		StatusInterval:      30 * time.Second,
		TranscriptRetention: time.Duration(cfg.Collector.RetentionHours) * time.Hour,
		CandidateLookback:   cfg.Collector.CandidateLookbackMinutes,
	}, log)

	// HTTP API
	handler := api.NewHandler(
		coll, controller, msgBus, pipe, mirror,
		transcriptStorage, incidentStorage, messageFeed,
		cfg, log,
	)
	router := api.NewRouter(handler, cfg, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	pipe.Start()

	go func() {
		log.Info("HTTP server listening", logger.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", logger.Error(err))
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", logger.Error(err))
	}

	pipe.Stop()

	stats := pipe.Stats()
	log.Info("Final pipeline statistics",
		logger.Int64("chunks", stats.Ingest.Chunks),
		logger.Int64("bytes_read", stats.Ingest.BytesRead),
		logger.Int64("chunks_dropped", stats.QueueDropped),
		logger.Int64("observations", stats.Collector.ObservationsCollected),
		logger.Int("open_incidents", stats.OpenIncidents))

	log.Info("Skywatch stopped")
}
