// Package app wires configuration, persistence, caching and the object
// store into a sync engine for the command line tools and the server.
package app

import (
	"fmt"

	"github.com/andresuchdata/gcs-media-sync/internal/cache"
	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/repository/postgres"
	"github.com/andresuchdata/gcs-media-sync/internal/rewrite"
	"github.com/andresuchdata/gcs-media-sync/internal/storage"
	"github.com/andresuchdata/gcs-media-sync/internal/syncer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const resolverCacheSize = 4096

type App struct {
	Config   *config.Config
	DB       *postgres.DB
	Repo     *postgres.MediaRepository
	Records  *cache.CachedRecordStore
	Engine   *syncer.Engine
	Resolver *rewrite.Resolver
}

// New connects to the database and builds the engine. Storage metrics are
// registered on reg, or the default registry when nil.
func New(cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a, err := build(cfg, db, reg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, db *postgres.DB, reg prometheus.Registerer) (*App, error) {
	repo := postgres.NewMediaRepository(db)

	recordCache, err := cache.NewRecordCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("record cache unavailable, reading records from the database")
		recordCache = cache.NewNoopRecordCache()
	}
	records := cache.NewCachedRecordStore(repo, recordCache)

	opener, err := storage.NewOpener(cfg.Sync)
	if err != nil {
		return nil, err
	}
	observer, err := storage.NewPrometheusObserver("", reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register storage metrics: %w", err)
	}
	opener = storage.InstrumentOpener(opener, observer)

	var opts []syncer.Option
	if cfg.Cache.Enabled {
		locker, err := cache.NewRedisLocker(cfg.Cache)
		if err != nil {
			log.Warn().Err(err).Msg("redis lock unavailable, using in-process item locks")
		} else {
			opts = append(opts, syncer.WithLocker(locker))
		}
	}
	engine := syncer.New(cfg.Sync, repo, records, opener, opts...)

	resolver := rewrite.NewResolver(cfg.Sync, repo, records, resolverCacheSize, cfg.Sync.URLCacheTTL)

	return &App{
		Config:   cfg,
		DB:       db,
		Repo:     repo,
		Records:  records,
		Engine:   engine,
		Resolver: resolver,
	}, nil
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
