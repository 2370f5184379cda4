package main

import (
	"context"
	"fmt"
	"log/slog"

	gcs "cloud.google.com/go/storage"

	"github.com/coldvault-io/coldvault/internal/catalogue"
	"github.com/coldvault-io/coldvault/internal/config"
	"github.com/coldvault-io/coldvault/internal/metastore"
	"github.com/coldvault-io/coldvault/internal/objectstore"
)

// newObjectStore builds an objectstore.Store over the configured
// bucket, using Application Default Credentials for GCS authentication.
func newObjectStore(ctx context.Context, cfg *config.Config) (*objectstore.Store, func(), error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("object store: creating GCS client: %w", err)
	}

	cleanup := func() { _ = client.Close() }

	return objectstore.New(client, cfg.BucketName), cleanup, nil
}

// newMetadataStore opens the Badger-backed metadata store at the path
// named by MetadataTable (reused as a directory path, not a table name,
// since the embedded store has no separate table concept).
func newMetadataStore(cfg *config.Config) (*metastore.Store, error) {
	badgerCfg := metastore.DefaultConfig()
	badgerCfg.Path = cfg.MetadataTable

	store, err := metastore.Open(badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("metadata store: %w", err)
	}

	return store, nil
}

// newCatalogue opens the local SQLite catalogue at cfg.CataloguePath.
func newCatalogue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*catalogue.Catalogue, error) {
	cat, err := catalogue.Open(ctx, cfg.CataloguePath, logger)
	if err != nil {
		return nil, fmt.Errorf("catalogue: %w", err)
	}

	return cat, nil
}
