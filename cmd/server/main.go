package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"problem-radar/internal/api"
	"problem-radar/internal/auth"
	"problem-radar/internal/config"
	"problem-radar/internal/fetcher"
	"problem-radar/internal/logger"
	"problem-radar/internal/pipeline"
	"problem-radar/internal/ratelimit"
	"problem-radar/internal/scorer"
	"problem-radar/internal/store"
	"problem-radar/internal/verify"
	"problem-radar/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.App.Environment, cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	gdb, err := store.Open(cfg.Database.URL, !cfg.IsProduction())
	if err != nil {
		log.Fatal("Failed to connect database", "error", err)
	}
	if cfg.Database.AutoMigrate {
		sqlDB, err := gdb.DB()
		if err != nil {
			log.Fatal("Failed to get sql.DB", "error", err)
		}
		if err := migrations.Run(sqlDB); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
	}
	st := store.New(gdb)

	limiter := ratelimit.New(newRateLimitStore(cfg, st, log), log)

	// Upstream clients
	httpClient := fetcher.DefaultHTTPClient()
	videos := fetcher.NewApifyClient(httpClient, cfg.Apify.BaseURL, cfg.Apify.ActorID, cfg.Apify.Token)
	posts := fetcher.NewRedditClient(httpClient, "", cfg.RapidAPI.Host, cfg.RapidAPI.Key)
	github := fetcher.NewGitHubClient(httpClient, cfg.GitHub.BaseURL, cfg.GitHub.Token)
	trends := fetcher.NewTrendsClient(httpClient, "", cfg.Trends.Geo)
	ai := scorer.New(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, nil)

	svc := pipeline.New(st, videos, posts, ai, log, pipeline.WithTrends(trends))
	verifier := verify.New(github, st, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.App.RefreshInterval > 0 {
		go svc.RunPeriodicRefresh(ctx, cfg.App.RefreshInterval)
	}

	handler := api.NewHandler(st, svc, verifier, limiter, auth.NewVerifier(cfg.Auth.JWTSecret), api.Secrets{
		ApifyToken:  cfg.Apify.Token,
		RapidAPIKey: cfg.RapidAPI.Key,
		LLMAPIKey:   cfg.LLM.APIKey,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.App.Port, "environment", cfg.App.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown failed", "error", err)
	}
}

func newRateLimitStore(cfg *config.Config, st *store.Store, log *logger.Logger) ratelimit.Store {
	switch cfg.RateLimit.Backend {
	case "redis":
		log.Info("Rate limiting with redis", "addr", cfg.RateLimit.RedisAddr)
		return ratelimit.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr}), time.Now)
	case "memory":
		log.Warn("Rate limiting in process memory; counts are not shared between instances")
		return ratelimit.NewMemoryStore(time.Now)
	default:
		return ratelimit.NewPostgresStore(st.DB())
	}
}
