// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/twap/api"
	"github.com/luxfi/twap/config"
	"github.com/luxfi/twap/curve"
	"github.com/luxfi/twap/delay"
	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/executor"
	"github.com/luxfi/twap/feed"
	"github.com/luxfi/twap/metrics"
	"github.com/luxfi/twap/state"
)

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return config.Config{}, err
	}
	if v := c.String(logLevelFlag.Name); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String(httpAddrFlag.Name); v != "" {
		cfg.HTTPAddr = v
	}
	if v := c.String(botFlag.Name); v != "" {
		if !common.IsHexAddress(v) {
			return config.Config{}, fmt.Errorf("%w: bot address %q", errs.ErrInvalidConfig, v)
		}
		cfg.BotAddress = common.HexToAddress(v)
	}
	return cfg, cfg.Verify()
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.BotAddress == (common.Address{}) {
		return fmt.Errorf("%w: bot address required", errs.ErrInvalidConfig)
	}
	logger := newLogger(cfg.LogLevel)

	store, err := state.Open(cfg.Database.Type, cfg.Database.Path, event.NewLogSink(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	d, err := delay.New(delay.Config{
		DelaySeconds:  cfg.Queue.DelaySeconds,
		MaxGasLimit:   cfg.Queue.MaxGasLimit,
		BaseCost:      cfg.Queue.BaseCost,
		WrappedNative: cfg.WrappedNative,
	}, store, delay.WithLogger(logger), delay.WithMetrics(m))
	if err != nil {
		return err
	}
	if err := setupPairs(c.Context, d, cfg.Pairs, logger); err != nil {
		return err
	}

	bot := executor.NewBot(d, cfg.BotAddress, time.Duration(cfg.BotInterval), cfg.BotBatch, logger)
	server := api.New(d, m.Handler(), logger)

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error { return bot.Run(ctx) })
	g.Go(func() error { return server.ListenAndServe(ctx, cfg.HTTPAddr) })
	logger.Info("twapd started", "pairs", len(cfg.Pairs), "delay", cfg.Queue.DelaySeconds, "bot", cfg.BotAddress.Hex())
	return g.Wait()
}

// setupPairs creates every configured pair and brings its oracle live at
// the configured manual price.
func setupPairs(ctx context.Context, d *delay.Delay, pairs []config.PairConfig, logger log.Logger) error {
	for i, pc := range pairs {
		params, err := curve.LoadFile(pc.CurveFile)
		if err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		addr, err := d.CreatePair(pc.Token0, pc.Token1, pc.Decimals0, pc.Decimals1)
		if err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		if err := d.SetParameters(addr, params); err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		if pc.HasBounds() {
			min, _ := config.ToWad(pc.MinPrice)
			max, _ := config.ToWad(pc.MaxPrice)
			if err := d.SetPriceBounds(addr, min, max); err != nil {
				return fmt.Errorf("pair %d: %w", i, err)
			}
		}
		if err := d.SetEpoch(addr, pc.EpochSeconds); err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		price, _ := config.ToWad(pc.Price)
		if err := d.SetPrice(addr, price); err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		if pc.Feed != nil {
			if err := bindFeed(ctx, d, addr, pc); err != nil {
				return fmt.Errorf("pair %d: %w", i, err)
			}
			logger.Info("feed bound", "pair", addr.Hex(), "feed", pc.Feed.Address.Hex(), "price", pc.Feed.Price.String())
		}
		logger.Info("pair ready", "pair", addr.Hex(), "price", pc.Price.String(), "curve", pc.CurveFile)
	}
	return nil
}

// bindFeed registers a reference pool holding the configured feed price
// and binds it to the pair's oracle.
func bindFeed(ctx context.Context, d *delay.Delay, addr common.Address, pc config.PairConfig) error {
	price, err := config.ToWad(pc.Feed.Price)
	if err != nil {
		return err
	}
	liq, err := pc.Feed.LiquidityInt()
	if err != nil {
		return err
	}
	pool := feed.NewPool(pc.Feed.Address, pc.Decimals0, pc.Decimals1, liq)
	pool.Observe(0, price)
	return d.SetPriceFeed(ctx, addr, pool)
}

func checkAction(c *cli.Context) error {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	for i, pc := range cfg.Pairs {
		params, err := curve.LoadFile(pc.CurveFile)
		if err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		fmt.Fprintf(c.App.Writer, "pair %d: %s/%s bid=%d ask=%d price=%s\n",
			i, pc.Token0.Hex(), pc.Token1.Hex(), len(params.Bid), len(params.Ask), pc.Price)
	}
	fmt.Fprintf(c.App.Writer, "config ok: %d pairs, delay %ds, %s database\n", len(cfg.Pairs), cfg.Queue.DelaySeconds, cfg.Database.Type)
	return nil
}
