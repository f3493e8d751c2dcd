// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/atmx/merchant-engine/internal/clock"
	"github.com/atmx/merchant-engine/internal/market"
)

// ErrInvalid wraps every rejected configuration value.
var ErrInvalid = errors.New("config: invalid value")

// Config holds application configuration.
type Config struct {
	Port          string
	RedisURL      string // empty selects the in-memory stats cache
	StatsCacheTTL time.Duration

	Seed          uint64
	StartingCash  decimal.Decimal
	CostOfLiving  decimal.Decimal
	StartSpeed    clock.Speed
	StartDate     time.Time
	FrameInterval time.Duration
	Catalog       []market.Spec

	// StrictInvariants makes ledger consistency violations panic.
	StrictInvariants bool

	LogFormat string // json|text
	LogLevel  slog.Level
}

// Load reads a .env file if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse(os.Getenv)
}

// Parse builds a Config from getenv, applying defaults for unset keys.
// All invalid keys are reported together.
func Parse(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:             p.str("PORT", "8080"),
		RedisURL:         p.str("REDIS_URL", ""),
		StatsCacheTTL:    p.duration("STATS_CACHE_TTL", 30*time.Second),
		Seed:             p.uintVal("SEED", 42),
		StartingCash:     p.decimalVal("STARTING_CASH", decimal.NewFromInt(100)),
		CostOfLiving:     p.decimalVal("COST_OF_LIVING", decimal.NewFromInt(2)),
		StartSpeed:       p.speed("START_SPEED", clock.Normal),
		StartDate:        p.date("START_DATE", time.Date(1500, time.January, 1, 0, 0, 0, 0, time.UTC)),
		FrameInterval:    p.duration("FRAME_INTERVAL", 250*time.Millisecond),
		Catalog:          p.catalog("COMMODITIES"),
		StrictInvariants: p.boolVal("STRICT_INVARIANTS", false),
		LogFormat:        p.oneOf("LOG_FORMAT", "json", "json", "text"),
		LogLevel:         p.level("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.FrameInterval <= 0 {
		p.fail("FRAME_INTERVAL", "must be positive")
	}
	if cfg.CostOfLiving.IsNegative() {
		p.fail("COST_OF_LIVING", "must not be negative")
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parser collects one error per bad key.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key, msg string) {
	p.errs = append(p.errs, fmt.Errorf("%w: %s %s", ErrInvalid, key, msg))
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(p.str(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	p.fail(key, fmt.Sprintf("must be one of %s", strings.Join(allowed, "|")))
	return def
}

func (p *parser) uintVal(key string, def uint64) uint64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.fail(key, "must be an unsigned integer")
		return def
	}
	return n
}

func (p *parser) boolVal(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, "must be a boolean")
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, "must be a duration such as 250ms")
		return def
	}
	return d
}

func (p *parser) decimalVal(key string, def decimal.Decimal) decimal.Decimal {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, "must be a decimal number")
		return def
	}
	return d
}

func (p *parser) speed(key string, def clock.Speed) clock.Speed {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || !clock.Speed(n).Valid() {
		p.fail(key, "must be a speed level 1-5")
		return def
	}
	return clock.Speed(n)
}

func (p *parser) date(key string, def time.Time) time.Time {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		p.fail(key, "must be a date YYYY-MM-DD")
		return def
	}
	return t
}

func (p *parser) catalog(key string) []market.Spec {
	v := p.str(key, "")
	if v == "" {
		return market.DefaultCatalog()
	}
	specs, err := market.ParseCatalog(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err))
		return nil
	}
	return specs
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, "must be debug|info|warn|error")
		return def
	}
	return l
}
