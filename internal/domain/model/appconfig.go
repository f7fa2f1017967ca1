package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// AppConfigID is the primary key of the singleton AppConfig row.
const AppConfigID = 1

var validate = validator.New()

// TierRange maps an inclusive normalized-score range to a tier.
type TierRange struct {
	Tier     Tier    `json:"tier" validate:"required,oneof=S A_PLUS A B_PLUS B C"`
	MinScore float64 `json:"minScore" validate:"min=0,max=100"`
	MaxScore float64 `json:"maxScore" validate:"min=0,max=100"`
}

// MythicPlusConfig tunes dungeon-mode scoring.
type MythicPlusConfig struct {
	TopN            int     `json:"topN" validate:"min=1,max=5000"`
	TimedBonus      float64 `json:"timedBonus" validate:"min=0,max=10"`
	OvertimePenalty float64 `json:"overtimePenalty" validate:"min=-10,max=0"`
	MinSampleSize   int     `json:"minSampleSize" validate:"min=1"`
}

// RaidConfig tunes raid-mode scoring.
type RaidConfig struct {
	TopN          int     `json:"topN" validate:"min=1,max=5000"`
	Percentile    float64 `json:"percentile" validate:"min=0.5,max=0.999"`
	MinSampleSize int     `json:"minSampleSize" validate:"min=1"`
}

// FetchConfig tunes upstream access.
type FetchConfig struct {
	CacheTTLSeconds  int `json:"cacheTtlSeconds" validate:"min=0"`
	RetryCount       int `json:"retryCount" validate:"min=0,max=10"`
	RetryBaseDelayMS int `json:"retryBaseDelayMs" validate:"min=1,max=60000"`
	APIConcurrency   int `json:"apiConcurrency" validate:"min=1,max=32"`
}

// CacheTTL returns the cache TTL as a duration.
func (f FetchConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLSeconds) * time.Second
}

// RetryBaseDelay returns the retry base delay as a duration.
func (f FetchConfig) RetryBaseDelay() time.Duration {
	return time.Duration(f.RetryBaseDelayMS) * time.Millisecond
}

// AppConfig holds the tunable scoring parameters. It is read fresh at the
// start of every refresh run and passed by value into the pure domain functions.
type AppConfig struct {
	Tiers      []TierRange      `json:"tiers" validate:"required,min=1,dive"`
	MythicPlus MythicPlusConfig `json:"mythicPlus"`
	Raid       RaidConfig       `json:"raid"`
	Fetch      FetchConfig      `json:"fetch"`
}

// DefaultAppConfig returns the configuration used when none is stored.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Tiers: []TierRange{
			{Tier: TierS, MinScore: 95, MaxScore: 100},
			{Tier: TierAPlus, MinScore: 90, MaxScore: 94.99},
			{Tier: TierA, MinScore: 80, MaxScore: 89.99},
			{Tier: TierBPlus, MinScore: 70, MaxScore: 79.99},
			{Tier: TierB, MinScore: 60, MaxScore: 69.99},
			{Tier: TierC, MinScore: 0, MaxScore: 59.99},
		},
		MythicPlus: MythicPlusConfig{
			TopN:            200,
			TimedBonus:      0.25,
			OvertimePenalty: -0.25,
			MinSampleSize:   20,
		},
		Raid: RaidConfig{
			TopN:          200,
			Percentile:    0.95,
			MinSampleSize: 20,
		},
		Fetch: FetchConfig{
			CacheTTLSeconds:  900,
			RetryCount:       4,
			RetryBaseDelayMS: 500,
			APIConcurrency:   4,
		},
	}
}

// Validate checks field bounds and that every tier range is ordered.
func (c *AppConfig) Validate() error {
	if issues := c.Issues(); len(issues) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAppConfig, issues)
	}
	return nil
}

// Issues returns human-readable validation failures, empty when valid.
func (c *AppConfig) Issues() []string {
	var issues []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			issues = append(issues, fmt.Sprintf("%s failed %q (param %s)", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}
	for i, t := range c.Tiers {
		if t.MinScore > t.MaxScore {
			issues = append(issues, fmt.Sprintf("tiers[%d]: minScore %.2f exceeds maxScore %.2f", i, t.MinScore, t.MaxScore))
		}
	}
	return issues
}

// ParseAppConfig decodes and validates a JSON AppConfig.
func ParseAppConfig(raw []byte) (AppConfig, error) {
	var c AppConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return AppConfig{}, fmt.Errorf("%w: %v", ErrInvalidAppConfig, err)
	}
	if err := c.Validate(); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}
