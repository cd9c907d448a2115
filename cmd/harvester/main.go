package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/musecrawl/harvester/pkg/artifact"
	"github.com/musecrawl/harvester/pkg/batch"
	"github.com/musecrawl/harvester/pkg/fetch"
	"github.com/musecrawl/harvester/pkg/logging"
	"github.com/musecrawl/harvester/pkg/merge"
	"github.com/musecrawl/harvester/pkg/source"
)

func main() {
	// Optional .env for local runs; absence is fine.
	_ = godotenv.Load()

	logging.Setup(logging.Config{
		Level:  logging.Level(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
		Output: os.Stderr,
	})

	sourcePath := getEnv("HARVEST_SOURCE", "data/urls.json")
	sourceField := getEnv("HARVEST_SOURCE_FIELD", source.DefaultField)
	outputDir := getEnv("HARVEST_OUTPUT_DIR", "data/output_batches")
	prefix := getEnv("HARVEST_ARTIFACT_PREFIX", artifact.DefaultPrefix)
	mergeOut := getEnv("HARVEST_MERGE_OUT", "") // empty disables the merge stage

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.BaseURL = getEnv("HARVEST_BASE_URL", fetchCfg.BaseURL)
	fetchCfg.Suffix = getEnv("HARVEST_URL_SUFFIX", fetchCfg.Suffix)
	fetchCfg.Timeout = getEnvDuration("HARVEST_TIMEOUT", fetchCfg.Timeout)

	cfg := batch.DefaultConfig()
	cfg.BatchSize = getEnvInt("HARVEST_BATCH_SIZE", cfg.BatchSize)
	cfg.Concurrency = getEnvInt("HARVEST_CONCURRENCY", cfg.Concurrency)
	cfg.Cooldown = getEnvDuration("HARVEST_COOLDOWN", cfg.Cooldown)
	cfg.Policy.MaxAttempts = getEnvInt("HARVEST_MAX_ATTEMPTS", cfg.Policy.MaxAttempts)

	ids, err := source.Read(sourcePath, sourceField)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot read identifier source")
	}

	store, err := artifact.New(outputDir, prefix)
	if err != nil {
		log.Fatal().Err(err).Str("dir", outputDir).Msg("Cannot prepare output location")
	}

	worker, err := fetch.New(fetchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot create fetch client")
	}

	coordinator, err := batch.New(cfg, worker, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot create batch coordinator")
	}

	// An interrupt cancels the run between suspension points; artifacts
	// already persisted stay intact and the next run resumes from them.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := coordinator.Run(ctx, ids)
	if err != nil {
		log.Fatal().
			Err(err).
			Int("succeeded", report.Succeeded).
			Int("failed", report.Failed).
			Msg("Harvest run aborted")
	}

	if mergeOut != "" {
		if _, err := merge.Merge(outputDir, prefix, mergeOut); err != nil {
			log.Fatal().Err(err).Msg("Merge failed")
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", value).Msg("Invalid integer in environment")
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", value).Msg("Invalid duration in environment")
	}
	return d
}
