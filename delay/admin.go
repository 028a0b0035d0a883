// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package delay

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/curve"
	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/feed"
	"github.com/luxfi/twap/oracle"
	"github.com/luxfi/twap/pair"
	"github.com/luxfi/twap/state"
)

// CreatePair creates the pool of two tokens and its oracle. Decimals follow
// the argument order. A pair already present in the store is registered
// as is, so a daemon restarted on a persistent store picks up its pools
// and their queued orders.
func (d *Delay) CreatePair(tokenA, tokenB common.Address, decimalsA, decimalsB uint8) (common.Address, error) {
	token0, token1, err := pair.SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	decimals0, decimals1 := decimalsA, decimalsB
	if token0 != tokenA {
		decimals0, decimals1 = decimalsB, decimalsA
	}
	addr := pair.AddressOf(token0, token1)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pairs.Pair(addr); ok {
		return common.Address{}, fmt.Errorf("%w: %s", errs.ErrPairExists, addr.Hex())
	}
	p := pair.New(addr, oracle.New(addr, d.feeds))
	var restored bool
	err = d.store.Update(func(tx *state.Tx) error {
		s := p.Load(tx)
		if s.Token0 == (common.Address{}) {
			return p.Initialize(tx, token0, token1, decimals0, decimals1)
		}
		if s.Decimals0 != decimals0 || s.Decimals1 != decimals1 {
			return fmt.Errorf("%w: stored decimals %d/%d", errs.ErrInvalidDecimals, s.Decimals0, s.Decimals1)
		}
		restored = true
		return nil
	})
	if err != nil {
		return common.Address{}, err
	}
	if err := d.pairs.Register(p); err != nil {
		return common.Address{}, err
	}
	msg := "pair created"
	if restored {
		msg = "pair restored"
	}
	d.log.Info(msg, "pair", addr.Hex(), "token0", token0.Hex(), "token1", token1.Hex())
	return addr, nil
}

// admin runs an oracle mutation of one pair and records its outcome.
func (d *Delay) admin(op string, addr common.Address, fn func(tx *state.Tx, o *oracle.Oracle) error) error {
	p, err := d.pair(addr)
	if err != nil {
		return err
	}
	err = d.update(func(tx *state.Tx) error {
		return fn(tx, p.Oracle())
	})
	if err != nil {
		d.metrics.OracleUpdates.WithLabelValues("rejected").Inc()
		d.log.Info("oracle admin rejected", "op", op, "pair", addr.Hex(), "error", err)
		return err
	}
	d.log.Debug("oracle admin applied", "op", op, "pair", addr.Hex())
	return nil
}

// SetParameters installs the bid and ask curves of an unconfigured oracle.
func (d *Delay) SetParameters(addr common.Address, params curve.Params) error {
	return d.admin("setParameters", addr, func(tx *state.Tx, o *oracle.Oracle) error {
		return o.SetParameters(tx, params)
	})
}

// SetPriceFeed binds an external TWAP source to the pair's oracle and takes
// its price over the last epoch.
func (d *Delay) SetPriceFeed(ctx context.Context, addr common.Address, f feed.PriceFeed) error {
	d.feeds.Register(f)
	return d.admin("setPriceFeed", addr, func(tx *state.Tx, o *oracle.Oracle) error {
		return o.SetFeed(ctx, tx, f, d.now())
	})
}

// SetPriceBounds restricts feed prices to [min, max].
func (d *Delay) SetPriceBounds(addr common.Address, min, max *uint256.Int) error {
	return d.admin("setPriceBounds", addr, func(tx *state.Tx, o *oracle.Oracle) error {
		return o.SetPriceBounds(tx, min, max)
	})
}

// SetPrice sets a manual price, unbinding any feed.
func (d *Delay) SetPrice(addr common.Address, price *uint256.Int) error {
	return d.admin("setPrice", addr, func(tx *state.Tx, o *oracle.Oracle) error {
		return o.SetPrice(tx, price, d.now())
	})
}

// SetEpoch sets the minimum interval between feed samples.
func (d *Delay) SetEpoch(addr common.Address, seconds uint64) error {
	return d.admin("setEpoch", addr, func(tx *state.Tx, o *oracle.Oracle) error {
		o.SetEpoch(tx, seconds)
		return nil
	})
}
