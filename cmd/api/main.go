package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/config"
	"classroom/internal/handler"
	"classroom/internal/httpmiddleware"
	"classroom/internal/logger"
	"classroom/internal/marking"
	"classroom/internal/queue"
	"classroom/internal/report"
	"classroom/internal/roster"
	"classroom/internal/session"
	"classroom/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Must("dev").Fatal("config load failed", zap.Error(err))
	}
	log := logger.Must(cfg.Env)
	defer func() { _ = log.Sync() }()

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	ctx := context.Background()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	backend, err := store.OpenBackend(startCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	verifier, err := newVerifier(cfg, backend)
	if err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
		if cfg.ScoreMirror == marking.MirrorQueue {
			log.Warn("memory queue has no consumer in the api process, queued scores stay in memory")
		}
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey, log)
	}

	resolver := roster.NewResolver(roster.NewSheetSource(cfg.StudentsSheetURL, cfg.SheetTimeout), backend.Docs, log)
	sessions := session.NewService(backend.Docs, resolver, session.Config{
		PinSalt:              cfg.PinSalt,
		PinHashCost:          cfg.PinHashCost,
		DefaultWindowMinutes: cfg.DefaultWindowMinutes,
		PublicBaseURL:        cfg.PublicBaseURL,
	}, log)
	repo := attendance.NewRepository(backend.Docs)
	att := attendance.NewService(repo, resolver, cfg.CourseStartDate, cfg.ReportConcurrency, log)
	reports := report.NewService(repo, cfg.ReportConcurrency, log)
	mark, err := marking.NewService(backend.Docs, marking.QueuePublisher{Q: q}, marking.Config{
		RosterURL:      cfg.MarkingRosterURL,
		RosterFile:     cfg.MarkingRosterFile,
		AnswersPath:    cfg.AnswersPath,
		WebhookURL:     cfg.ScoresWebhookURL,
		WebhookTimeout: cfg.WebhookTimeout,
		Fallback:       cfg.WebhookFallback,
		Mirror:         cfg.ScoreMirror,
	}, log)
	if err != nil {
		return err
	}

	var checkinLimiter httpmiddleware.Limiter
	if cfg.CheckinRateLimitPerMin > 0 {
		checkinLimiter = httpmiddleware.NewRedisWindow(redisClient.Client, "classroom:checkin", cfg.CheckinRateLimitPerMin)
	}

	h := handler.New(handler.Deps{
		Sessions:       sessions,
		Roster:         resolver,
		Attendance:     att,
		Reports:        reports,
		Marking:        mark,
		Verifier:       verifier,
		Allowlist:      auth.NewAllowlist(cfg.TeacherEmails),
		GlobalLimiter:  httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		CheckinLimiter: checkinLimiter,
		TrustedProxies: cfg.TrustedProxies,
		Health: []handler.HealthCheck{
			{Name: "redis", Check: redisClient.Healthy},
			{Name: "db", Check: backend.Healthy},
		},
		Log: log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend), zap.String("auth", cfg.AuthMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func newVerifier(cfg config.App, b *store.Backend) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case "jwt":
		return auth.JWTVerifier{Key: cfg.JWTSigningKey, Issuer: cfg.JWTIssuer}, nil
	case "firebase":
		if b.Firebase == nil || b.Firebase.Auth == nil {
			return nil, errors.New("firebase auth client not initialised")
		}
		return auth.FirebaseVerifier{Client: b.Firebase.Auth}, nil
	default:
		return nil, errors.New("AUTH_MODE must be firebase or jwt")
	}
}
