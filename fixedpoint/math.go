// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedpoint implements the deterministic integer arithmetic used by
// every amount and price computation. Prices are WAD values (18 decimals).
package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/twap/errs"
)

// WADDecimals is the precision of prices and curve coefficients.
const WADDecimals = 18

// MaxDecimals bounds token decimals so 10^d always fits comfortably.
const MaxDecimals = 36

var (
	// WAD is 1.0 in 18-decimal fixed point.
	WAD = uint256.NewInt(1_000_000_000_000_000_000)

	one = uint256.NewInt(1)
)

// MulDiv returns floor(a*b/d) using a 512-bit intermediate product.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, errs.ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, fmt.Errorf("%w: %s*%s/%s", errs.ErrOverflow, a.Dec(), b.Dec(), d.Dec())
	}
	return z, nil
}

// MulDivUp returns ceil(a*b/d) using a 512-bit intermediate product.
func MulDivUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDiv(a, b, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(a, b, d).IsZero() {
		return z, nil
	}
	return Add(z, one)
}

// Sqrt is the integer square root by Newton's method seeded at y/2+1.
// Sqrt(0) == 0 and Sqrt(y) == 1 for 0 < y <= 3.
func Sqrt(y *uint256.Int) *uint256.Int {
	if y.IsZero() {
		return new(uint256.Int)
	}
	if y.Cmp(uint256.NewInt(3)) <= 0 {
		return uint256.NewInt(1)
	}
	z := new(uint256.Int).Set(y)
	// y/2+1 cannot overflow for y > 3
	x := new(uint256.Int).Rsh(y, 1)
	x.Add(x, one)
	for x.Lt(z) {
		z.Set(x)
		// x = (y/x + x) / 2
		next := new(uint256.Int).Div(y, x)
		next.Add(next, x)
		x.Rsh(next, 1)
	}
	return z
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, errs.ErrOverflow
	}
	return z, nil
}

// Add returns a+b or ErrOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, errs.ErrOverflow
	}
	return z, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, fmt.Errorf("%w: %s-%s", errs.ErrUnderflow, a.Dec(), b.Dec())
	}
	return new(uint256.Int).Sub(a, b), nil
}

// Min returns a copy of the smaller value.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}

// Pow raises a WAD base to an integer exponent, result in WAD.
// Negative exponents return WAD^2 / base^|exp|.
func Pow(base *uint256.Int, exp int) (*uint256.Int, error) {
	if exp == 0 {
		return new(uint256.Int).Set(WAD), nil
	}
	neg := exp < 0
	if neg {
		exp = -exp
	}

	result := new(uint256.Int).Set(WAD)
	b := new(uint256.Int).Set(base)
	var err error
	for exp > 0 {
		if exp&1 == 1 {
			if result, err = MulDiv(result, b, WAD); err != nil {
				return nil, err
			}
		}
		exp >>= 1
		if exp > 0 {
			if b, err = MulDiv(b, b, WAD); err != nil {
				return nil, err
			}
		}
	}

	if !neg {
		return result, nil
	}
	if result.IsZero() {
		return nil, errs.ErrDivisionByZero
	}
	return MulDiv(WAD, WAD, result)
}

// Exp10 returns 10^n for n <= MaxDecimals+WADDecimals.
func Exp10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// Scale converts amount between decimal precisions, truncating when
// precision is lost.
func Scale(amount *uint256.Int, from, to uint8) (*uint256.Int, error) {
	switch {
	case from == to:
		return new(uint256.Int).Set(amount), nil
	case from < to:
		return Mul(amount, Exp10(to-from))
	default:
		return new(uint256.Int).Div(amount, Exp10(from-to)), nil
	}
}
