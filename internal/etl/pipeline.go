package etl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Ensure verifies the analytic environment before a run: if the sqlite
// database already exists nothing happens unless forceRebuild is set.
// Otherwise raw files are downloaded when absent and the processor is run.
// Any failure here is a setup fault: the caller must not start a run.
func Ensure(ctx context.Context, dataDir, dbPath, dictPath string, forceRebuild bool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(dbPath); err == nil && !forceRebuild {
		logger.Info("Analytic database present, skipping ETL", zap.String("db", dbPath))
		return nil
	}
	logger.Info("Analytic database missing or rebuild forced, running ETL")

	raw, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		logger.Info("No raw files found, downloading from OpenDataSUS")
		if err := NewDownloader(dataDir, logger).Run(ctx); err != nil {
			return fmt.Errorf("dataset download: %w", err)
		}
	} else {
		logger.Info("Raw files present, skipping download", zap.Int("files", len(raw)))
	}

	dict, err := LoadDictionary(dictPath)
	if err != nil {
		return err
	}
	if err := NewProcessor(dataDir, dbPath, dict, logger).Run(ctx); err != nil {
		return fmt.Errorf("dataset processing: %w", err)
	}
	return nil
}
