// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package feed defines the external time-weighted price capability the
// oracle samples, and an in-memory reference pool that implements it.
package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
)

// PriceFeed is an external TWAP source. Prices are WAD-scaled token1 per
// token0 in whole units.
type PriceFeed interface {
	Address() common.Address
	Decimals() (uint8, uint8)
	Liquidity(ctx context.Context) (*uint256.Int, error)
	TimeWeightedPrice(ctx context.Context, from, to uint64) (*uint256.Int, error)
}

// Resolver maps a bound feed address back to its implementation.
type Resolver interface {
	Feed(addr common.Address) (PriceFeed, bool)
}

// Registry is a concurrency-safe Resolver.
type Registry struct {
	mu    sync.RWMutex
	feeds map[common.Address]PriceFeed
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[common.Address]PriceFeed)}
}

// Register adds f under its own address.
func (r *Registry) Register(f PriceFeed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[f.Address()] = f
}

// Feed implements Resolver.
func (r *Registry) Feed(addr common.Address) (PriceFeed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feeds[addr]
	return f, ok
}

type observation struct {
	at    uint64
	price *uint256.Int
}

// Pool is a piecewise-constant price history. The price observed at time t
// holds until the next observation.
type Pool struct {
	addr      common.Address
	decimals0 uint8
	decimals1 uint8

	mu           sync.RWMutex
	liquidity    *uint256.Int
	observations []observation
}

var _ PriceFeed = (*Pool)(nil)

// NewPool returns a pool with no history.
func NewPool(addr common.Address, decimals0, decimals1 uint8, liquidity *uint256.Int) *Pool {
	return &Pool{
		addr:      addr,
		decimals0: decimals0,
		decimals1: decimals1,
		liquidity: new(uint256.Int).Set(liquidity),
	}
}

func (p *Pool) Address() common.Address  { return p.addr }
func (p *Pool) Decimals() (uint8, uint8) { return p.decimals0, p.decimals1 }

// Liquidity returns the in-range liquidity of the pool.
func (p *Pool) Liquidity(ctx context.Context) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(uint256.Int).Set(p.liquidity), nil
}

// SetLiquidity replaces the liquidity figure.
func (p *Pool) SetLiquidity(v *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liquidity = new(uint256.Int).Set(v)
}

// Observe records price from time at onward. Observations at or after at
// are replaced.
func (p *Pool) Observe(at uint64, price *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := sort.Search(len(p.observations), func(i int) bool { return p.observations[i].at >= at })
	p.observations = append(p.observations[:i], observation{at: at, price: new(uint256.Int).Set(price)})
}

// priceAt returns the observation in force at t. Caller holds the lock.
func (p *Pool) priceAt(t uint64) (*uint256.Int, int) {
	i := sort.Search(len(p.observations), func(i int) bool { return p.observations[i].at > t })
	if i == 0 {
		return nil, -1
	}
	return p.observations[i-1].price, i - 1
}

// TimeWeightedPrice averages the price over [from, to]. A zero-length window
// returns the price in force at to.
func (p *Pool) TimeWeightedPrice(ctx context.Context, from, to uint64) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if from > to {
		return nil, fmt.Errorf("%w: window [%d, %d]", errs.ErrInvalidSource, from, to)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	start, idx := p.priceAt(from)
	if start == nil {
		return nil, fmt.Errorf("%w: no observation at %d", errs.ErrInvalidSource, from)
	}
	if from == to {
		end, _ := p.priceAt(to)
		return new(uint256.Int).Set(end), nil
	}

	sum := new(uint256.Int)
	cursor := from
	price := start
	for i := idx + 1; i <= len(p.observations); i++ {
		next := to
		if i < len(p.observations) && p.observations[i].at < to {
			next = p.observations[i].at
		}
		span := new(uint256.Int).Mul(price, uint256.NewInt(next-cursor))
		if _, overflow := sum.AddOverflow(sum, span); overflow {
			return nil, errs.ErrOverflow
		}
		cursor = next
		if cursor == to {
			break
		}
		price = p.observations[i].price
	}
	return sum.Div(sum, uint256.NewInt(to-from)), nil
}
