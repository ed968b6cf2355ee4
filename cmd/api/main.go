package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mtoman/newsfeed/internal/api"
	"github.com/mtoman/newsfeed/internal/auth"
	"github.com/mtoman/newsfeed/internal/collector"
	"github.com/mtoman/newsfeed/internal/config"
	"github.com/mtoman/newsfeed/internal/feed"
	"github.com/mtoman/newsfeed/internal/ingest"
	"github.com/mtoman/newsfeed/internal/scheduler"
	"github.com/mtoman/newsfeed/internal/storage"
	"github.com/mtoman/newsfeed/internal/vote"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}
	cfg := config.Load()

	store, err := storage.New(cfg.DatabaseURL, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// Ingestion runs on its own schedule; it shares nothing with request
	// handling except the store.
	source := collector.NewHackerNewsClient(cfg.SourceBaseURL)
	ingestor := ingest.New(source, store, cfg.IngestLimit)
	sched, err := scheduler.New(cfg.CronSpec, "ingest", func(ctx context.Context) error {
		_, err := ingestor.Run(ctx)
		return err
	})
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	feedSvc := feed.New(store, cfg.PageSize)
	votes := vote.New(store, cfg.AllowDuplicateVotes)
	gateway := auth.NewHeaderGateway(store)

	r := gin.Default()
	apiServer := api.NewServer(store, feedSvc, votes, gateway, cfg)
	apiServer.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		log.Printf("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
}
