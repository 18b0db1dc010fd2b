package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"classroom/internal/config"
	"classroom/internal/logger"
	"classroom/internal/marking"
	"classroom/internal/queue"
	"classroom/internal/store"
)

// Worker drains queued score rows into the scores collection.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Must("dev").Fatal("config load failed", zap.Error(err))
	}
	log := logger.Must(cfg.Env).Named("worker")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		log.Fatal("worker needs QUEUE_BACKEND=redis, the memory queue is process local")
	}
	if cfg.ScoreMirror != marking.MirrorQueue {
		log.Warn("SCORE_MIRROR is not queue, the api will not publish scores", zap.String("score_mirror", cfg.ScoreMirror))
	}

	startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
	backend, err := store.OpenBackend(startCtx, cfg, log)
	startCancel()
	if err != nil {
		log.Fatal("document store failed", zap.Error(err))
	}
	defer func() { _ = backend.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet, consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log)
	if n, err := q.Len(ctx); err == nil {
		log.Info("worker started", zap.Int64("pending", n))
	}

	if err := marking.Mirror(ctx, q, backend.Docs, time.Now, log); err != nil {
		log.Fatal("score mirror stopped", zap.Error(err))
	}
	log.Info("worker stopped")
}
