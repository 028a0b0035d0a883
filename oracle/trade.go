// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/twap/curve"
	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/fixedpoint"
	"github.com/luxfi/twap/state"
)

// ratio returns num/den such that dy = dx*num/den for the given side.
func (o *Oracle) ratio(st state.StateDB, side curve.Side) (num, den *uint256.Int, err error) {
	s := o.Load(st)
	if s.Status != Live {
		return nil, nil, errs.ErrOracleNotLive
	}
	mult, err := o.Parameters(st).Evaluate(side, s.Price)
	if err != nil {
		return nil, nil, err
	}
	rate, err := fixedpoint.MulDiv(s.Price, mult, fixedpoint.WAD)
	if err != nil {
		return nil, nil, err
	}
	if num, err = fixedpoint.Mul(rate, fixedpoint.Exp10(s.Decimals1)); err != nil {
		return nil, nil, err
	}
	if den, err = fixedpoint.Mul(fixedpoint.WAD, fixedpoint.Exp10(s.Decimals0)); err != nil {
		return nil, nil, err
	}
	if num.IsZero() {
		return nil, nil, fmt.Errorf("%w: %s rate rounds to zero", errs.ErrNonPositiveCurve, side)
	}
	return num, den, nil
}

// TradeX returns the token1 reserve after token0 moves from xBefore to
// xAfter. Token0 in is priced on the bid side and rounds down; token0 out
// is priced on the ask side and rounds up.
func (o *Oracle) TradeX(st state.StateDB, xAfter, xBefore, yBefore *uint256.Int) (*uint256.Int, error) {
	if !xAfter.Lt(xBefore) {
		dx := new(uint256.Int).Sub(xAfter, xBefore)
		num, den, err := o.ratio(st, curve.Bid)
		if err != nil {
			return nil, err
		}
		dy, err := fixedpoint.MulDiv(dx, num, den)
		if err != nil {
			return nil, err
		}
		if !dy.IsZero() && !dy.Lt(yBefore) {
			return nil, fmt.Errorf("%w: token1 out %s, reserve %s", errs.ErrInsufficientLiquidity, dy.Dec(), yBefore.Dec())
		}
		return dy.Sub(yBefore, dy), nil
	}

	dx := new(uint256.Int).Sub(xBefore, xAfter)
	num, den, err := o.ratio(st, curve.Ask)
	if err != nil {
		return nil, err
	}
	dy, err := fixedpoint.MulDivUp(dx, num, den)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Add(yBefore, dy)
}

// TradeY returns the token0 reserve after token1 moves from yBefore to
// yAfter. Token1 out means token0 in, priced on the bid side and rounded
// up; token1 in means token0 out, priced on the ask side and rounded down.
func (o *Oracle) TradeY(st state.StateDB, yAfter, xBefore, yBefore *uint256.Int) (*uint256.Int, error) {
	if yAfter.Lt(yBefore) {
		dy := new(uint256.Int).Sub(yBefore, yAfter)
		num, den, err := o.ratio(st, curve.Bid)
		if err != nil {
			return nil, err
		}
		dx, err := fixedpoint.MulDivUp(dy, den, num)
		if err != nil {
			return nil, err
		}
		return fixedpoint.Add(xBefore, dx)
	}

	dy := new(uint256.Int).Sub(yAfter, yBefore)
	num, den, err := o.ratio(st, curve.Ask)
	if err != nil {
		return nil, err
	}
	dx, err := fixedpoint.MulDiv(dy, den, num)
	if err != nil {
		return nil, err
	}
	if !dx.IsZero() && !dx.Lt(xBefore) {
		return nil, fmt.Errorf("%w: token0 out %s, reserve %s", errs.ErrInsufficientLiquidity, dx.Dec(), xBefore.Dec())
	}
	return dx.Sub(xBefore, dx), nil
}
