// Package provider normalizes upstream ranking payloads into performance entries.
package provider

import (
	"context"
	"errors"

	"github.com/okian/tierlist/internal/adapters/fetch"
	"github.com/okian/tierlist/internal/domain/model"
	"github.com/okian/tierlist/pkg/logger"
)

// Source names recorded in snapshot metadata.
const (
	SourceWarcraftLogs           = "warcraftlogs"
	SourceWarcraftLogsMythicPlus = "warcraftlogs_mythic_plus"
	SourceRaiderIO               = "raiderio"
)

// Fixture file names inside the fixture directory.
const (
	FixtureMythicPlus = "mythic-plus.json"
	FixtureRaid       = "raid.json"
)

// Sentinel errors.
var (
	ErrMissingCredentials = errors.New("required provider credentials are missing")
	ErrFixture            = errors.New("invalid fixture")
)

// Provider fetches the performance entries of one mode from one upstream.
type Provider interface {
	Name() string
	Mode() model.Mode
	FetchEntries(ctx context.Context, cfg model.AppConfig) ([]model.PerformanceEntry, error)
}

// Fetcher performs cached JSON requests.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string, req fetch.Request) ([]byte, error)
}

// Option configures a provider.
type Option func(*base)

// base holds the settings shared by every provider.
type base struct {
	mock       bool
	fixtureDir string
	log        logger.Logger
}

func newBase(name string, opts []Option) base {
	b := base{fixtureDir: "fixtures", log: logger.Get().Named(name)}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithMockMode makes the provider read fixtures from dir instead of calling upstream.
func WithMockMode(enabled bool, dir string) Option {
	return func(b *base) {
		b.mock = enabled
		if dir != "" {
			b.fixtureDir = dir
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

func requireCredentials(values ...string) error {
	for _, v := range values {
		if v == "" {
			return ErrMissingCredentials
		}
	}
	return nil
}
