// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle keeps the per-pair price and bid/ask curve and converts
// trades on one reserve into trades on the other.
//
// Prices are WAD-scaled token1 per token0 in whole units. The raw exchange
// rate on a side is Price*f(Price)/WAD, and an amount dx of token0 maps to
// dx * rate * 10^d1 / (WAD * 10^d0) of token1.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/curve"
	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/feed"
	"github.com/luxfi/twap/fixedpoint"
	"github.com/luxfi/twap/state"
)

// Status is the oracle lifecycle stage.
type Status uint8

const (
	Uninitialized Status = iota
	Configured
	Live
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Live:
		return "live"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// State is the stored oracle record.
type State struct {
	Status     Status
	Price      *uint256.Int
	MinPrice   *uint256.Int
	MaxPrice   *uint256.Int
	LastUpdate uint64
	Epoch      uint64
	Feed       common.Address
	Decimals0  uint8
	Decimals1  uint8
}

var oraclePrefix = []byte("oracle")

// Slot keys.
var (
	keyStatus     = state.Key(oraclePrefix, []byte("status"))
	keyPrice      = state.Key(oraclePrefix, []byte("price"))
	keyMinPrice   = state.Key(oraclePrefix, []byte("min"))
	keyMaxPrice   = state.Key(oraclePrefix, []byte("max"))
	keyLastUpdate = state.Key(oraclePrefix, []byte("last"))
	keyEpoch      = state.Key(oraclePrefix, []byte("epoch"))
	keyFeed       = state.Key(oraclePrefix, []byte("feed"))
	keyDecimals   = state.Key(oraclePrefix, []byte("decimals"))
	keyCount      = state.Key(oraclePrefix, []byte("count"))

	pointPrefix = []byte("point")
	coefPrefix  = []byte("coef")
)

// Oracle is the price oracle of one pair.
type Oracle struct {
	addr  common.Address
	pair  common.Address
	feeds feed.Resolver
}

// New returns the oracle bound to pair. feeds resolves feed addresses at
// update time.
func New(pair common.Address, feeds feed.Resolver) *Oracle {
	return &Oracle{
		addr:  state.Address(oraclePrefix, pair.Bytes()),
		pair:  pair,
		feeds: feeds,
	}
}

// Address is the slot owner of the oracle state.
func (o *Oracle) Address() common.Address { return o.addr }

// Pair is the pair the oracle prices.
func (o *Oracle) Pair() common.Address { return o.pair }

// Init records the decimals of the pair's tokens.
func (o *Oracle) Init(st state.StateDB, decimals0, decimals1 uint8) error {
	if decimals0 > fixedpoint.MaxDecimals || decimals1 > fixedpoint.MaxDecimals {
		return fmt.Errorf("%w: %d/%d", errs.ErrInvalidDecimals, decimals0, decimals1)
	}
	var h common.Hash
	h[30], h[31] = decimals0, decimals1
	st.SetState(o.addr, keyDecimals, h)
	return nil
}

// Load reads the oracle record.
func (o *Oracle) Load(st state.StateDB) State {
	dec := st.GetState(o.addr, keyDecimals)
	return State{
		Status:     Status(state.Uint64FromHash(st.GetState(o.addr, keyStatus))),
		Price:      o.u256(st, keyPrice),
		MinPrice:   o.u256(st, keyMinPrice),
		MaxPrice:   o.u256(st, keyMaxPrice),
		LastUpdate: state.Uint64FromHash(st.GetState(o.addr, keyLastUpdate)),
		Epoch:      state.Uint64FromHash(st.GetState(o.addr, keyEpoch)),
		Feed:       state.AddressFromHash(st.GetState(o.addr, keyFeed)),
		Decimals0:  dec[30],
		Decimals1:  dec[31],
	}
}

func (o *Oracle) u256(st state.StateDB, key common.Hash) *uint256.Int {
	return state.Uint256FromHash(st.GetState(o.addr, key))
}

func (o *Oracle) setStatus(st state.StateDB, s Status) {
	st.SetState(o.addr, keyStatus, state.HashFromUint64(uint64(s)))
}

func (o *Oracle) commit(st state.StateDB, price *uint256.Int, now uint64) {
	st.SetState(o.addr, keyPrice, state.HashFromUint256(price))
	st.SetState(o.addr, keyLastUpdate, state.HashFromUint64(now))
	st.Emit(event.PriceUpdated{Pair: o.pair, Price: new(uint256.Int).Set(price), Timestamp: now})
}

// SetParameters validates and stores the curve. An uninitialized oracle
// becomes Configured.
func (o *Oracle) SetParameters(st state.StateDB, params curve.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	o.storePoints(st, curve.Bid, params.Bid)
	o.storePoints(st, curve.Ask, params.Ask)
	if o.Load(st).Status == Uninitialized {
		o.setStatus(st, Configured)
	}
	return nil
}

// Layout per side: count slot, then per point a meta slot (exponent and
// sign) and a coefficient slot.
func (o *Oracle) storePoints(st state.StateDB, side curve.Side, points []curve.Point) {
	sideKey := []byte{byte(side)}
	st.SetState(o.addr, state.Key(keyCount.Bytes(), sideKey), state.HashFromUint64(uint64(len(points))))
	for i, pt := range points {
		idx := state.Uint64Bytes(uint64(i))
		var meta common.Hash
		meta[31] = byte(int8(pt.Exponent))
		if pt.Negative {
			meta[30] = 1
		}
		st.SetState(o.addr, state.Key(pointPrefix, sideKey, idx), meta)
		st.SetState(o.addr, state.Key(coefPrefix, sideKey, idx), state.HashFromUint256(pt.Coefficient))
	}
}

func (o *Oracle) loadPoints(st state.StateDB, side curve.Side) []curve.Point {
	sideKey := []byte{byte(side)}
	n := state.Uint64FromHash(st.GetState(o.addr, state.Key(keyCount.Bytes(), sideKey)))
	points := make([]curve.Point, 0, n)
	for i := uint64(0); i < n; i++ {
		idx := state.Uint64Bytes(i)
		meta := st.GetState(o.addr, state.Key(pointPrefix, sideKey, idx))
		points = append(points, curve.Point{
			Exponent:    int(int8(meta[31])),
			Negative:    meta[30] == 1,
			Coefficient: o.u256(st, state.Key(coefPrefix, sideKey, idx)),
		})
	}
	return points
}

// Parameters returns the stored curve.
func (o *Oracle) Parameters(st state.StateDB) curve.Params {
	return curve.Params{
		Bid: o.loadPoints(st, curve.Bid),
		Ask: o.loadPoints(st, curve.Ask),
	}
}

// SetPrice sets a manual price and unbinds any feed. Bounds do not apply to
// manual prices.
func (o *Oracle) SetPrice(st state.StateDB, price *uint256.Int, now uint64) error {
	if price.IsZero() {
		return errs.ErrZeroPrice
	}
	if o.Load(st).Status == Uninitialized {
		return errs.ErrNotConfigured
	}
	st.SetState(o.addr, keyFeed, common.Hash{})
	o.commit(st, price, now)
	o.setStatus(st, Live)
	return nil
}

// SetPriceBounds restricts feed-sourced prices to [min, max].
func (o *Oracle) SetPriceBounds(st state.StateDB, min, max *uint256.Int) error {
	if min.IsZero() || min.Gt(max) {
		return fmt.Errorf("%w: [%s, %s]", errs.ErrInvalidBounds, min.Dec(), max.Dec())
	}
	st.SetState(o.addr, keyMinPrice, state.HashFromUint256(min))
	st.SetState(o.addr, keyMaxPrice, state.HashFromUint256(max))
	return nil
}

// SetEpoch sets the minimum interval between feed samples.
func (o *Oracle) SetEpoch(st state.StateDB, seconds uint64) {
	st.SetState(o.addr, keyEpoch, state.HashFromUint64(seconds))
}

// SetFeed binds an external TWAP source and takes its price over the last
// epoch as the initial price.
func (o *Oracle) SetFeed(ctx context.Context, st state.StateDB, f feed.PriceFeed, now uint64) error {
	s := o.Load(st)
	if s.Status == Uninitialized {
		return errs.ErrNotConfigured
	}
	liq, err := f.Liquidity(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidSource, err)
	}
	if liq.IsZero() {
		return fmt.Errorf("%w: %s has no liquidity", errs.ErrInvalidSource, f.Address().Hex())
	}
	if d0, d1 := f.Decimals(); d0 != s.Decimals0 || d1 != s.Decimals1 {
		return fmt.Errorf("%w: feed decimals %d/%d, pair %d/%d",
			errs.ErrInvalidSource, d0, d1, s.Decimals0, s.Decimals1)
	}
	from := uint64(0)
	if now > s.Epoch {
		from = now - s.Epoch
	}
	price, err := o.sample(ctx, s, f, from, now)
	if err != nil {
		return err
	}
	st.SetState(o.addr, keyFeed, state.HashFromAddress(f.Address()))
	o.commit(st, price, now)
	o.setStatus(st, Live)
	return nil
}

func (o *Oracle) sample(ctx context.Context, s State, f feed.PriceFeed, from, to uint64) (*uint256.Int, error) {
	price, err := f.TimeWeightedPrice(ctx, from, to)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidSource, err)
	}
	if price.IsZero() {
		return nil, errs.ErrZeroPrice
	}
	if !s.MaxPrice.IsZero() && (price.Lt(s.MinPrice) || price.Gt(s.MaxPrice)) {
		return nil, fmt.Errorf("%w: %s not in [%s, %s]",
			errs.ErrPriceOutOfBounds, price.Dec(), s.MinPrice.Dec(), s.MaxPrice.Dec())
	}
	return price, nil
}

// UpdatePrice samples the bound feed when an epoch has passed since the
// last checkpoint. It reports whether the price changed hands.
func (o *Oracle) UpdatePrice(ctx context.Context, st state.StateDB, now uint64) (*uint256.Int, bool, error) {
	s := o.Load(st)
	if s.Status != Live {
		return nil, false, errs.ErrOracleNotLive
	}
	if s.Feed == (common.Address{}) || now < s.LastUpdate || now-s.LastUpdate < s.Epoch {
		return s.Price, false, nil
	}
	f, ok := o.feeds.Feed(s.Feed)
	if !ok {
		return nil, false, fmt.Errorf("%w: feed %s not registered", errs.ErrInvalidSource, s.Feed.Hex())
	}
	price, err := o.sample(ctx, s, f, s.LastUpdate, now)
	if err != nil {
		return nil, false, err
	}
	o.commit(st, price, now)
	return price, true, nil
}

// Price returns the current price of a live oracle.
func (o *Oracle) Price(st state.StateDB) (*uint256.Int, error) {
	s := o.Load(st)
	if s.Status != Live {
		return nil, errs.ErrOracleNotLive
	}
	return s.Price, nil
}
