package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vigilab/sragwatch/internal/agent"
	"github.com/vigilab/sragwatch/internal/charts"
	"github.com/vigilab/sragwatch/internal/config"
	"github.com/vigilab/sragwatch/internal/embeddings"
	"github.com/vigilab/sragwatch/internal/etl"
	"github.com/vigilab/sragwatch/internal/llm"
	"github.com/vigilab/sragwatch/internal/retrieval"
	"github.com/vigilab/sragwatch/internal/search"
	"github.com/vigilab/sragwatch/internal/tools"
	"github.com/vigilab/sragwatch/internal/tracing"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to the YAML config file (or SRAGWATCH_CONFIG)")
		refDate     = flag.String("ref-date", "", "override the reference date (YYYY-MM-DD); default is the latest onset date in the data")
		forceETL    = flag.Bool("force-etl", false, "rebuild the analytic database even if it exists")
		outPath     = flag.String("out", "", "write the report to this file instead of stdout")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address during the run (e.g. :9090)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *refDate, *forceETL, *outPath, *metricsAddr); err != nil {
		logger.Fatal("Run failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, refDate string, forceETL bool, outPath, metricsAddr string) error {
	// Setup faults are fatal before any orchestration starts.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Warn("Metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Data layer: guarantee a queryable dataset exists before orchestration.
	if err := etl.Ensure(ctx, cfg.DataDir, cfg.DBPath, cfg.DictPath, forceETL, logger); err != nil {
		return fmt.Errorf("etl: %w", err)
	}

	db, err := tools.OpenReadOnly(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open analytic database: %w", err)
	}
	defer db.Close()

	if refDate == "" {
		refDate, err = etl.LatestOnsetDate(ctx, db)
		if err != nil {
			return fmt.Errorf("resolve reference date: %w", err)
		}
	}
	logger.Info("Reference date resolved", zap.String("reference_date", refDate))

	// Visualization layer: side artifacts only, never fatal for the run.
	if err := charts.NewPlotter(db, cfg.ImageDir, logger).Render(ctx, refDate); err != nil {
		logger.Warn("Chart rendering failed, continuing without images", zap.Error(err))
	}

	model := llm.NewClient(cfg.OpenAIAPIKey, cfg.Agent.Model, logger)

	var cache embeddings.Cache
	if cfg.Embedding.EnableRedis {
		rc, err := embeddings.NewRedisCache(cfg.Embedding.RedisAddr)
		if err != nil {
			logger.Warn("Redis embedding cache unavailable, using LRU only", zap.Error(err))
		} else {
			cache = rc
		}
	}
	embedder := embeddings.NewService(cfg.OpenAIAPIKey, embeddings.Config{
		DefaultModel: cfg.Embedding.Model,
		Timeout:      cfg.Embedding.Timeout,
		MaxLRU:       cfg.Embedding.MaxLRU,
		CacheTTL:     cfg.Embedding.CacheTTL,
	}, cache, logger)

	sqlTool, err := tools.NewSQLTool(db, model, refDate, cfg.Agent.SQLAttempts, logger)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	newsTool := tools.NewNewsTool(
		search.NewTavily(cfg.TavilyAPIKey, cfg.Retrieval.MaxResults),
		embedder,
		retrieval.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		cfg.Retrieval.TopK,
		logger,
	)

	orch := agent.New(model, tools.NewRegistry(sqlTool, newsTool), logger, agent.Options{
		MaxIterations: cfg.Agent.MaxIterations,
		ModelTimeout:  cfg.Agent.ModelTimeout,
		ToolTimeout:   cfg.Agent.ToolTimeout,
	})

	report, err := orch.Run(ctx, refDate)
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(report), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("Report written", zap.String("path", outPath))
		return nil
	}
	fmt.Println(report)
	return nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

