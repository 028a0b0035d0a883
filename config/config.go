// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the twapd daemon configuration.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/shopspring/decimal"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/executor"
	"github.com/luxfi/twap/fixedpoint"
	"github.com/luxfi/twap/pair"
	"github.com/luxfi/twap/state"
)

// Defaults applied by Default and kept by Load for omitted fields.
const (
	DefaultLogLevel     = "info"
	DefaultHTTPAddr     = "127.0.0.1:9650"
	DefaultBotInterval  = 5 * time.Second
	DefaultBotBatch     = 16
	DefaultDelaySeconds = 60
)

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the daemon configuration.
type Config struct {
	LogLevel      string         `json:"logLevel,omitempty"`
	HTTPAddr      string         `json:"httpAddr,omitempty"`
	BotAddress    common.Address `json:"botAddress"`
	BotInterval   Duration       `json:"botInterval,omitempty"`
	BotBatch      int            `json:"botBatch,omitempty"`
	WrappedNative common.Address `json:"wrappedNative,omitempty"`
	Database      DatabaseConfig `json:"database"`
	Queue         QueueConfig    `json:"queue"`
	Pairs         []PairConfig   `json:"pairs"`
}

// DatabaseConfig selects the state backend.
type DatabaseConfig struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// QueueConfig parameterises submission and settlement.
type QueueConfig struct {
	DelaySeconds uint64 `json:"delaySeconds"`
	MaxGasLimit  uint64 `json:"maxGasLimit,omitempty"`
	BaseCost     uint64 `json:"baseCost,omitempty"`
}

// PairConfig describes a pair created at startup. Prices are decimal token1
// per token0 in whole units.
type PairConfig struct {
	Token0       common.Address  `json:"token0"`
	Token1       common.Address  `json:"token1"`
	Decimals0    uint8           `json:"decimals0"`
	Decimals1    uint8           `json:"decimals1"`
	CurveFile    string          `json:"curveFile"`
	Price        decimal.Decimal `json:"price"`
	MinPrice     decimal.Decimal `json:"minPrice"`
	MaxPrice     decimal.Decimal `json:"maxPrice"`
	EpochSeconds uint64          `json:"epochSeconds,omitempty"`
	Feed         *FeedConfig     `json:"feed,omitempty"`
}

// FeedConfig binds a reference TWAP pool to the pair at startup. The pool
// holds Price from time zero and reports Liquidity, an integer.
type FeedConfig struct {
	Address   common.Address  `json:"address"`
	Price     decimal.Decimal `json:"price"`
	Liquidity decimal.Decimal `json:"liquidity"`
}

// Verify checks the feed entry.
func (f *FeedConfig) Verify() error {
	if f.Address == (common.Address{}) {
		return fmt.Errorf("feed: %w", errs.ErrAddressZero)
	}
	price, err := ToWad(f.Price)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if price.IsZero() {
		return fmt.Errorf("feed: %w", errs.ErrZeroPrice)
	}
	liq, err := f.LiquidityInt()
	if err != nil {
		return err
	}
	if liq.IsZero() {
		return fmt.Errorf("%w: feed has no liquidity", errs.ErrInvalidConfig)
	}
	return nil
}

// LiquidityInt returns Liquidity as an integer.
func (f *FeedConfig) LiquidityInt() (*uint256.Int, error) {
	if f.Liquidity.IsNegative() || !f.Liquidity.IsInteger() {
		return nil, fmt.Errorf("%w: feed liquidity %s", errs.ErrInvalidConfig, f.Liquidity)
	}
	v, overflow := uint256.FromBig(f.Liquidity.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: feed liquidity %s", errs.ErrOverflow, f.Liquidity)
	}
	return v, nil
}

// Default returns a configuration with every default set and no pairs.
func Default() Config {
	return Config{
		LogLevel:    DefaultLogLevel,
		HTTPAddr:    DefaultHTTPAddr,
		BotInterval: Duration(DefaultBotInterval),
		BotBatch:    DefaultBotBatch,
		Database:    DatabaseConfig{Type: state.Memory},
		Queue: QueueConfig{
			DelaySeconds: DefaultDelaySeconds,
			BaseCost:     executor.DefaultBaseCost,
		},
	}
}

// Load reads a JSON file over the defaults and verifies it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes JSON over the defaults and verifies the result. Unknown
// fields are rejected.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errs.ErrInvalidConfig, err)
	}
	if err := c.Verify(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Verify checks the configuration for internal consistency.
func (c *Config) Verify() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", errs.ErrInvalidConfig, c.LogLevel)
	}
	if c.BotInterval <= 0 {
		return fmt.Errorf("%w: bot interval must be positive", errs.ErrInvalidConfig)
	}
	if c.BotBatch < 0 {
		return fmt.Errorf("%w: bot batch %d", errs.ErrInvalidConfig, c.BotBatch)
	}
	switch c.Database.Type {
	case state.Memory:
	case state.Badger:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: badger database needs a path", errs.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: database type %q", errs.ErrInvalidConfig, c.Database.Type)
	}
	if c.Queue.MaxGasLimit != 0 && c.Queue.MaxGasLimit < c.Queue.BaseCost {
		return fmt.Errorf("%w: max gas limit %d below base cost %d", errs.ErrInvalidConfig, c.Queue.MaxGasLimit, c.Queue.BaseCost)
	}

	seen := make(map[common.Address]struct{}, len(c.Pairs))
	for i := range c.Pairs {
		p := &c.Pairs[i]
		if err := p.Verify(); err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		t0, t1, _ := pair.SortTokens(p.Token0, p.Token1)
		addr := pair.AddressOf(t0, t1)
		if _, ok := seen[addr]; ok {
			return fmt.Errorf("pair %d: %w", i, errs.ErrPairExists)
		}
		seen[addr] = struct{}{}
	}
	return nil
}

// Verify checks one pair entry.
func (p *PairConfig) Verify() error {
	if _, _, err := pair.SortTokens(p.Token0, p.Token1); err != nil {
		return err
	}
	if p.Decimals0 > fixedpoint.MaxDecimals || p.Decimals1 > fixedpoint.MaxDecimals {
		return fmt.Errorf("%w: %d/%d", errs.ErrInvalidDecimals, p.Decimals0, p.Decimals1)
	}
	if p.CurveFile == "" {
		return fmt.Errorf("%w: curve file required", errs.ErrInvalidConfig)
	}
	price, err := ToWad(p.Price)
	if err != nil {
		return err
	}
	if price.IsZero() {
		return errs.ErrZeroPrice
	}
	min, err := ToWad(p.MinPrice)
	if err != nil {
		return err
	}
	max, err := ToWad(p.MaxPrice)
	if err != nil {
		return err
	}
	if !(min.IsZero() && max.IsZero()) && (min.IsZero() || min.Gt(max)) {
		return fmt.Errorf("%w: [%s, %s]", errs.ErrInvalidBounds, p.MinPrice, p.MaxPrice)
	}
	if p.Feed != nil {
		return p.Feed.Verify()
	}
	return nil
}

// HasBounds reports whether the entry restricts feed prices.
func (p *PairConfig) HasBounds() bool {
	return !p.MaxPrice.IsZero()
}

// ToWad converts a decimal amount to an 18-decimal fixed-point integer. It
// fails for negative values, sub-WAD precision and values beyond 256 bits.
func ToWad(d decimal.Decimal) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative value %s", errs.ErrInvalidConfig, d)
	}
	scaled := d.Shift(fixedpoint.WADDecimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", errs.ErrInvalidConfig, d, fixedpoint.WADDecimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %s", errs.ErrOverflow, d)
	}
	return v, nil
}
