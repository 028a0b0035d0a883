// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package curve evaluates the bid/ask price curves that replace a
// constant-product formula. Each side is f(p) = sum(c_i * p^e_i).
package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/fixedpoint"
)

// Side selects which half of the curve prices a trade.
type Side uint8

const (
	// Bid prices trades where the pool receives token0.
	Bid Side = iota
	// Ask prices trades where the pool gives token0.
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Limits on configured points.
const (
	MaxExponent = 8
	MaxPoints   = 16
)

// MaxCoefficient is 1e18 in WAD.
var MaxCoefficient = new(uint256.Int).Mul(fixedpoint.WAD, fixedpoint.WAD)

// Point is one term c * p^e of a curve.
type Point struct {
	Exponent    int
	Coefficient *uint256.Int // WAD
	Negative    bool
}

// Params holds both sides of a pair's curve.
type Params struct {
	Bid []Point
	Ask []Point
}

// Flat returns a curve with constant multipliers on each side.
func Flat(bid, ask *uint256.Int) Params {
	return Params{
		Bid: []Point{{Exponent: 0, Coefficient: new(uint256.Int).Set(bid)}},
		Ask: []Point{{Exponent: 0, Coefficient: new(uint256.Int).Set(ask)}},
	}
}

// Points returns the terms for side.
func (p Params) Points(side Side) []Point {
	if side == Bid {
		return p.Bid
	}
	return p.Ask
}

// Validate checks the configuration limits of both sides.
func (p Params) Validate() error {
	for _, side := range []Side{Bid, Ask} {
		points := p.Points(side)
		if len(points) == 0 {
			return fmt.Errorf("%w: %s side is empty", errs.ErrInvalidCurve, side)
		}
		if len(points) > MaxPoints {
			return fmt.Errorf("%w: %s side has %d points, max %d", errs.ErrInvalidCurve, side, len(points), MaxPoints)
		}
		for i, pt := range points {
			if pt.Exponent < -MaxExponent || pt.Exponent > MaxExponent {
				return fmt.Errorf("%w: %s[%d] exponent %d out of range", errs.ErrInvalidCurve, side, i, pt.Exponent)
			}
			if pt.Coefficient == nil || pt.Coefficient.Gt(MaxCoefficient) {
				return fmt.Errorf("%w: %s[%d] coefficient out of range", errs.ErrInvalidCurve, side, i)
			}
		}
	}
	return nil
}

// Evaluate returns the WAD multiplier of side at a WAD price.
func (p Params) Evaluate(side Side, price *uint256.Int) (*uint256.Int, error) {
	pos := new(uint256.Int)
	neg := new(uint256.Int)
	for _, pt := range p.Points(side) {
		pw, err := fixedpoint.Pow(price, pt.Exponent)
		if err != nil {
			return nil, fmt.Errorf("%s curve at %s: %w", side, price.Dec(), err)
		}
		term, err := fixedpoint.MulDiv(pt.Coefficient, pw, fixedpoint.WAD)
		if err != nil {
			return nil, fmt.Errorf("%s curve at %s: %w", side, price.Dec(), err)
		}
		acc := pos
		if pt.Negative {
			acc = neg
		}
		if _, overflow := acc.AddOverflow(acc, term); overflow {
			return nil, fmt.Errorf("%s curve at %s: %w", side, price.Dec(), errs.ErrOverflow)
		}
	}
	if pos.Cmp(neg) <= 0 {
		return nil, fmt.Errorf("%w: %s side at price %s", errs.ErrNonPositiveCurve, side, price.Dec())
	}
	return pos.Sub(pos, neg), nil
}

// Clone deep-copies the parameters.
func (p Params) Clone() Params {
	cp := func(src []Point) []Point {
		out := make([]Point, len(src))
		for i, pt := range src {
			out[i] = Point{Exponent: pt.Exponent, Negative: pt.Negative}
			if pt.Coefficient != nil {
				out[i].Coefficient = new(uint256.Int).Set(pt.Coefficient)
			}
		}
		return out
	}
	return Params{Bid: cp(p.Bid), Ask: cp(p.Ask)}
}
