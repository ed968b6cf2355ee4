package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/mtoman/newsfeed/internal/collector"
	"github.com/mtoman/newsfeed/internal/config"
	"github.com/mtoman/newsfeed/internal/ingest"
	"github.com/mtoman/newsfeed/internal/storage"
)

// One-shot ingestion entry point: runs a single collection pass and exits.
// Useful for manual backfills and cron-external scheduling.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}
	cfg := config.Load()

	store, err := storage.New(cfg.DatabaseURL, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	source := collector.NewHackerNewsClient(cfg.SourceBaseURL)
	ingestor := ingest.New(source, store, cfg.IngestLimit)

	created, err := ingestor.Run(context.Background())
	if err != nil {
		log.Fatalf("ingest run failed: %v", err)
	}
	log.Printf("ingest run complete, %d new items", created)
}
