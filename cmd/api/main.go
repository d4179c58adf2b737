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

	"github.com/suPer8Hu/ask-widget/internal/config"
	"github.com/suPer8Hu/ask-widget/internal/db"
	"github.com/suPer8Hu/ask-widget/internal/httpapi"
	"github.com/suPer8Hu/ask-widget/internal/httpapi/handlers"
	"github.com/suPer8Hu/ask-widget/internal/logx"
	"github.com/suPer8Hu/ask-widget/internal/messenger"
	"github.com/suPer8Hu/ask-widget/internal/store/rabbitmq"
	"github.com/suPer8Hu/ask-widget/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	logx.SetLevel(logx.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb := db.Connect(cfg.DBDSN)

	// dedup and rate windows: shared in redis, or local to this process
	var guard messenger.Guard
	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rs.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		defer rs.Close()
		guard = rs.Guard(messenger.DefaultRateWindow, messenger.DefaultDedupTTL)
	} else {
		mg := messenger.NewMemoryGuard(messenger.DefaultRateWindow, messenger.DefaultDedupTTL)
		go mg.Run(ctx, time.Minute)
		guard = mg
	}

	// without a broker, jobs run on the handler's in-process pool
	var publisher messenger.Publisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	h, err := handlers.NewHandler(gdb, cfg, guard, publisher)
	if err != nil {
		log.Fatalf("handler: %v", err)
	}
	defer h.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("api listening on %s backend=%s", cfg.HTTPAddr, cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
