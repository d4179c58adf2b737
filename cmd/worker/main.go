package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/ask-widget/internal/backend"
	"github.com/suPer8Hu/ask-widget/internal/config"
	"github.com/suPer8Hu/ask-widget/internal/db"
	"github.com/suPer8Hu/ask-widget/internal/logx"
	"github.com/suPer8Hu/ask-widget/internal/messenger"
	"github.com/suPer8Hu/ask-widget/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()
	logx.SetLevel(logx.ParseLevel(cfg.LogLevel))

	if cfg.RabbitURL == "" {
		log.Fatalf("RABBIT_URL is required for the worker")
	}

	gdb := db.Connect(cfg.DBDSN)

	repo := messenger.NewRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	be := backend.NewClient(cfg.BackendURL, cfg.FeedbackBackendURL, cfg.FeedbackTimeout)
	graph := messenger.NewGraphClient(cfg.MessengerGraphURL, cfg.MessengerPageToken)
	worker := messenger.NewWorker(repo, messenger.NewProcessor(be, graph, cfg.MessengerCompanyID))

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("rabbit: %v", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx, worker.Handle); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
