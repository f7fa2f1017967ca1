package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tierlist/internal/adapters/cache"
	"github.com/okian/tierlist/internal/adapters/fetch"
	"github.com/okian/tierlist/internal/adapters/provider"
	"github.com/okian/tierlist/internal/adapters/repository"
	"github.com/okian/tierlist/internal/config"
	"github.com/okian/tierlist/pkg/logger"
)

// Components are the long-lived dependencies built from process config.
type Components struct {
	Store     repository.Store
	Cache     cache.Store
	Fetcher   *fetch.Client
	Providers []provider.Provider
	Refresher *Refresher
}

// Build opens the store and cache and assembles providers and the refresher.
// The caller owns the returned Components and must Close them.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	store, err := repository.Open(ctx, repository.Backend(cfg.DatabaseBackend), cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cs, err := OpenCache(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	client := fetch.New(cs,
		fetch.WithRateLimit(cfg.UpstreamRPS, 1),
		fetch.WithLogger(logger.Get().Named("fetch")),
	)
	providers := Providers(cfg, client)

	return &Components{
		Store:     store,
		Cache:     cs,
		Fetcher:   client,
		Providers: providers,
		Refresher: NewRefresher(store, providers),
	}, nil
}

// Close releases the store and the cache.
func (c *Components) Close() error {
	return errors.Join(c.Store.Close(), c.Cache.Close())
}

// OpenCache returns the configured cache backend.
func OpenCache(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.CacheBackend == "redis" {
		return cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return cache.NewMemoryStore(), nil
}

// Providers returns one provider per mode. The dungeon provider follows
// DungeonSource; mock mode makes every provider read fixtures.
func Providers(cfg *config.Config, f provider.Fetcher) []provider.Provider {
	opts := []provider.Option{provider.WithMockMode(cfg.MockMode, cfg.FixtureDir)}

	raid := provider.NewWarcraftLogsRaid(f, provider.WarcraftLogsSettings{
		BaseURL:      cfg.WCLBaseURL,
		ClientID:     cfg.WCLClientID,
		ClientSecret: cfg.WCLClientSecret,
		ZoneID:       cfg.WCLZoneID,
		Difficulty:   cfg.WCLDifficulty,
		Pages:        cfg.WCLRaidPages,
	}, opts...)

	var dungeon provider.Provider
	if cfg.DungeonSource == provider.SourceRaiderIO {
		dungeon = provider.NewRaiderIO(f, provider.RaiderIOSettings{
			BaseURL: cfg.RaiderIOBaseURL,
			Pages:   cfg.RaiderIOPages,
		}, opts...)
	} else {
		dungeon = provider.NewWarcraftLogsMythicPlus(f, provider.WarcraftLogsSettings{
			BaseURL:      cfg.WCLBaseURL,
			ClientID:     cfg.WCLClientID,
			ClientSecret: cfg.WCLClientSecret,
			ZoneID:       cfg.WCLMythicZoneID,
			Difficulty:   cfg.WCLMythicDifficult,
			Bracket:      cfg.WCLMythicBracket,
			Pages:        cfg.WCLMythicPages,
		}, opts...)
	}
	return []provider.Provider{dungeon, raid}
}
