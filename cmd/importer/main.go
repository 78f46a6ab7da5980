package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"hotelbook/internal/adapters/imagefetch"
	"hotelbook/internal/adapters/objectstore"
	"hotelbook/internal/adapters/observability"
	"hotelbook/internal/app"
	"hotelbook/internal/shared"
	"hotelbook/internal/storage/mongodb"
)

func main() {
	if failed := run(); failed > 0 {
		os.Exit(1)
	}
}

// run performs one import and returns the number of failed seeds.
func run() int64 {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("file", cfg.ImportFile).
		Int("workers", cfg.ImportWorkers).
		Int("fetch_rps", cfg.FetchRPS).
		Msg("importer starting")

	raw, err := os.ReadFile(cfg.ImportFile)
	if err != nil {
		log.Fatal().Err(err).Msg("read import file failed")
	}
	var seeds []app.SeedListing
	if err := json.Unmarshal(raw, &seeds); err != nil {
		log.Fatal().Err(err).Msg("decode import file failed")
	}

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := mongodb.Connect(startCtx, cfg.MongoURI)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	log.Info().Msg("db ping ok")
	repo := mongodb.New(client.Database(cfg.MongoDB))

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

	listings := app.NewListingService(repo, app.NewImageUploader(store, cfg.UploadRPS), nil, nil, cfg.CacheTTL)
	imp := app.NewImportService(listings, imagefetch.New(cfg.FetchRPS), cfg.ImportWorkers)

	rep := imp.Import(ctx, seeds)
	log.Info().Int64("created", rep.Created).Int64("failed", rep.Failed).Msg("import completed")
	return rep.Failed
}
