// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package delay

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/executor"
	"github.com/luxfi/twap/metrics"
	"github.com/luxfi/twap/state"
)

var _ executor.Runner = (*Delay)(nil)

// Execute settles order id and pays bot for the gas. Only ordering,
// existence and time lock violations return an error; a failed settlement
// is a committed Result with Success false.
func (d *Delay) Execute(ctx context.Context, id uint64, bot common.Address) (executor.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.execute(ctx, id, bot)
}

func (d *Delay) execute(ctx context.Context, id uint64, bot common.Address) (executor.Result, error) {
	start := time.Now()
	tx := d.store.Begin()
	res, err := d.exec.Execute(ctx, tx, id, bot, d.now())
	if err != nil {
		tx.Abort()
		return executor.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return executor.Result{}, err
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case res.Retained:
		outcome = metrics.OutcomeRetained
	case !res.Success:
		outcome = metrics.OutcomeFailed
	}
	d.metrics.ObserveExecution(res.Kind.String(), outcome, res.GasSpent, time.Since(start))
	d.setDepthLocked()
	d.log.Debug("order executed",
		"id", id,
		"outcome", outcome,
		"gasSpent", res.GasSpent,
		"botPayment", res.BotPayment.Dec(),
		"ethRefund", res.EthRefund.Dec(),
	)
	return res, nil
}

// ExecuteReady settles consecutive unlocked orders from the head of the
// queue, at most max of them when max is positive.
func (d *Delay) ExecuteReady(ctx context.Context, bot common.Address, max int) ([]executor.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var results []executor.Result
	for max <= 0 || len(results) < max {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		var (
			id    uint64
			ready bool
		)
		err := d.store.View(func(st state.StateDB) error {
			id = d.queue.LastProcessed(st) + 1
			ready = d.exec.Ready(st, id, d.now())
			return nil
		})
		if err != nil {
			return results, err
		}
		if !ready {
			break
		}
		res, err := d.execute(ctx, id, bot)
		if err != nil {
			if errors.Is(err, errs.ErrOrderLocked) || errors.Is(err, errs.ErrOutOfOrder) {
				break
			}
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RetryRefund re-attempts the token refund of an order retained after a
// failed refund.
func (d *Delay) RetryRefund(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := d.update(func(tx *state.Tx) error {
		return d.exec.RetryRefund(tx, id)
	})
	if err != nil {
		d.log.Info("refund retry failed", "id", id, "error", err)
		return err
	}
	d.log.Info("refund retried", "id", id)
	return nil
}

func (d *Delay) setDepth() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.setDepthLocked()
}

func (d *Delay) setDepthLocked() {
	_ = d.store.View(func(st state.StateDB) error {
		d.metrics.QueueDepth.Set(float64(d.queue.Pending(st)))
		return nil
	})
}
