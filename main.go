package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"derivflow/config"
	"derivflow/logger"
	"derivflow/models"
	"derivflow/processor"
	"derivflow/reader/sentiment"
	"derivflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	runID := uuid.New().String()
	log.WithFields(logger.Fields{
		"service": cfg.Derivflow.Name,
		"version": cfg.Derivflow.Version,
		"env":     config.AppEnvironment(),
		"run_id":  runID,
	}).Info("starting derivflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
	}()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	items, source := processor.New(cfg).Run(ctx)

	doc := &models.Document{
		AsOf:         time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		LookbackDays: cfg.Pipeline.LookbackDays,
		Source:       source,
		Items:        items,
	}

	if cfg.Source.Sentiment.Enabled {
		if s, err := sentiment.NewReader(cfg).Latest(ctx); err != nil {
			log.WithError(err).Warn("Sentiment unavailable")
		} else {
			doc.Sentiment = s
		}
	}

	if err := writer.NewPublisher(cfg).Publish(doc); err != nil {
		log.WithError(err).Error("Failed to publish document")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"items":  len(items),
		"source": source,
		"run_id": runID,
	}).Info("derivflow finished")
}
