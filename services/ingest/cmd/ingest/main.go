package main

import (
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"promptdeck/internal/ratelimit"
	"promptdeck/internal/usertoken"
	"promptdeck/internal/util"
	"promptdeck/pkg/ai"
	"promptdeck/pkg/batchlog"
	"promptdeck/pkg/storage"
	"promptdeck/pkg/store"
	"promptdeck/services/ingest/internal/app"
	"promptdeck/services/ingest/internal/config"
	"promptdeck/services/ingest/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	promptStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	objectStore, err := storage.NewMinioStore(
		cfg.MinioEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioBucket,
		cfg.MinioPublicBaseURL,
		cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	generator, err := ai.NewGeminiImageClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("failed to init image generator: %v", err)
	}

	batchLog, err := batchlog.NewRedisLog(cfg.RedisAddr, cfg.RedisPassword, time.Duration(cfg.BatchLogTTLHours)*time.Hour)
	if err != nil {
		log.Fatalf("failed to init batch log: %v", err)
	}

	limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "", cfg.RateLimitPerMin, time.Minute)
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}

	verifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:  cfg.JWKSURL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	var trustedProxies *util.TrustedProxies
	if raw := strings.TrimSpace(cfg.TrustedProxyCIDRs); raw != "" {
		trustedProxies, err = util.NewTrustedProxies(strings.Split(raw, ","))
		if err != nil {
			log.Fatalf("failed to parse trusted proxies: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		Store:        promptStore,
		Generator:    generator,
		Publisher:    storage.NewPublisher(objectStore, generator.Model()),
		BatchLog:     batchLog,
		MaxBatchSize: cfg.MaxBatchSize,
		PacingDelay:  time.Duration(cfg.PacingDelayMs) * time.Millisecond,
		RetryPolicy:  ai.NewRetryPolicy(cfg.RetryMaxAttempts, time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond),
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Verifier:       verifier,
		Limiter:        limiter,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 30 * time.Second,
		// A full batch runs synchronously inside the request, so the write
		// timeout must cover pacing and retries for the largest batch.
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("ingest server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
