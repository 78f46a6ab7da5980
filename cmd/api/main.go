package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"hotelbook/internal/adapters/auth"
	server "hotelbook/internal/adapters/http_server"
	natsad "hotelbook/internal/adapters/nats"
	"hotelbook/internal/adapters/objectstore"
	"hotelbook/internal/adapters/observability"
	redisad "hotelbook/internal/adapters/redis"
	"hotelbook/internal/app"
	"hotelbook/internal/domain"
	"hotelbook/internal/shared"
	"hotelbook/internal/storage/mongodb"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// document store
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := mongodb.Connect(startCtx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	repo := mongodb.New(client.Database(cfg.MongoDB))
	if err := repo.EnsureIndexes(startCtx); err != nil {
		log.Warn().Err(err).Msg("ensure indexes failed")
	}
	log.Info().Str("db", cfg.MongoDB).Msg("database connection ok")

	// object store
	store, err := objectstore.New(objectstore.Options{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
		PublicURL: cfg.MinIOPublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("object store init failed")
	}
	if err := store.EnsureBucket(startCtx); err != nil {
		log.Fatal().Err(err).Msg("object store bucket check failed")
	}

	// optional cache
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer func() { _ = rc.Close() }()
		if err := rc.Ping(startCtx); err != nil {
			log.Warn().Err(err).Msg("redis ping failed, continuing")
		}
		cache = rc
	}

	// optional events
	var events domain.EventPublisher
	if cfg.NATSURL != "" {
		pub, err := natsad.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, events disabled")
		} else {
			defer pub.Close()
			events = pub
		}
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("token verifier init failed")
	}

	search := app.NewSearchService(repo, cache, cfg.SearchCacheTTL)
	listings := app.NewListingService(repo, app.NewImageUploader(store, cfg.UploadRPS), cache, events, cfg.CacheTTL)

	// http
	srv := server.New(server.Options{
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: []string{cfg.FrontendURL},
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Search: search, Listings: listings}, server.RequireAuth(verifier, cfg.CookieName))

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
