// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
)

// Runner executes every unlocked order at the head of the queue.
type Runner interface {
	ExecuteReady(ctx context.Context, bot common.Address, max int) ([]Result, error)
}

// Bot polls a Runner on a fixed interval and collects the gas payments
// under its address.
type Bot struct {
	runner   Runner
	addr     common.Address
	interval time.Duration
	batch    int
	log      log.Logger
}

// NewBot returns a bot executing at most batch orders per tick.
func NewBot(runner Runner, addr common.Address, interval time.Duration, batch int, logger log.Logger) *Bot {
	if logger == nil {
		logger = log.New("component", "bot")
	}
	return &Bot{runner: runner, addr: addr, interval: interval, batch: batch, log: logger}
}

// Tick runs one batch and returns the number of orders executed.
func (b *Bot) Tick(ctx context.Context) (int, error) {
	results, err := b.runner.ExecuteReady(ctx, b.addr, b.batch)
	for _, r := range results {
		if r.Success {
			b.log.Debug("order settled", "id", r.ID, "kind", r.Kind.String(), "gasSpent", r.GasSpent)
			continue
		}
		b.log.Info("order failed", "id", r.ID, "kind", r.Kind.String(), "error", string(r.ErrorData), "retained", r.Retained)
	}
	return len(results), err
}

// Run ticks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.log.Info("executor bot started", "addr", b.addr.Hex(), "interval", b.interval.String())
	for {
		select {
		case <-ctx.Done():
			b.log.Info("executor bot stopped")
			return nil
		case <-ticker.C:
			if _, err := b.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				b.log.Warn("execute batch failed", "error", err)
			}
		}
	}
}
