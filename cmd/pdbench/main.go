// Command pdbench trains and compares binary classifiers on the Parkinson's
// voice-measurement dataset and prints the comparison table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/pdbench/config"
	"github.com/YuminosukeSato/pdbench/pipeline"
	"github.com/YuminosukeSato/pdbench/pkg/log"
)

func main() {
	var (
		configPath string
		dataSource string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&dataSource, "data", "", "Dataset URL or local CSV path (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %q: %v\n", configPath, err)
		os.Exit(1)
	}
	if dataSource != "" {
		cfg.Data.Source = dataSource
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := log.Setup(cfg.Logging.Level, cfg.Logging.JSON, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	logger := log.GetLoggerWithName("pdbench")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		logger.Error("Run failed", log.ErrorKey, err)
		stop()
		os.Exit(1)
	}
	for _, f := range res.Failures {
		logger.Warn("Model skipped", log.ModelNameKey, f.Name, log.ErrorKey, f.Err)
	}
	if err := res.Table.Render(os.Stdout); err != nil {
		logger.Error("Failed to render table", log.ErrorKey, err)
		os.Exit(1)
	}
	if res.ArtifactPath != "" {
		logger.Info("Artifact written", log.RunIDKey, res.RunID, "path", res.ArtifactPath)
	}
}
