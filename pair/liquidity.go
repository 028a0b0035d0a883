// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/fixedpoint"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

// Mint issues LP tokens to `to` for the tokens deposited since the last
// sync. The first deposit issues sqrt(a0*a1); later deposits issue the
// smaller of the two proportional shares.
func (p *Pair) Mint(st state.StateDB, to common.Address) (*uint256.Int, error) {
	if to == (common.Address{}) {
		return nil, fmt.Errorf("mint: %w", errs.ErrAddressZero)
	}
	s := p.Load(st)
	bal0, bal1 := p.balances(st, s)
	amount0 := excess(bal0, s.Reserve0)
	amount1 := excess(bal1, s.Reserve1)

	var liquidity *uint256.Int
	if s.TotalSupply.IsZero() {
		product, err := fixedpoint.Mul(amount0, amount1)
		if err != nil {
			return nil, err
		}
		liquidity = fixedpoint.Sqrt(product)
	} else {
		if s.Reserve0.IsZero() || s.Reserve1.IsZero() {
			return nil, errs.ErrInsufficientLiquidity
		}
		l0, err := fixedpoint.MulDiv(amount0, s.TotalSupply, s.Reserve0)
		if err != nil {
			return nil, err
		}
		l1, err := fixedpoint.MulDiv(amount1, s.TotalSupply, s.Reserve1)
		if err != nil {
			return nil, err
		}
		liquidity = fixedpoint.Min(l0, l1)
	}
	if liquidity.IsZero() {
		return nil, errs.ErrInsufficientLiquidityMinted
	}

	if err := token.Mint(st, p.addr, to, liquidity); err != nil {
		return nil, err
	}
	s.Reference0 = new(uint256.Int).Add(s.Reference0, amount0)
	s.Reference1 = new(uint256.Int).Add(s.Reference1, amount1)
	s.Reserve0 = new(uint256.Int).Add(s.Reserve0, amount0)
	s.Reserve1 = new(uint256.Int).Add(s.Reserve1, amount1)
	if err := p.write(st, s); err != nil {
		return nil, err
	}

	st.Emit(event.Mint{Pair: p.addr, Amount0: amount0, Amount1: amount1, Liquidity: liquidity, To: to})
	st.Emit(event.Sync{Pair: p.addr, Reserve0: s.Reserve0, Reserve1: s.Reserve1})
	return liquidity, nil
}

// Burn redeems the LP tokens held by the pair for a pro-rata share of the
// reserves. Fees and references shrink in proportion.
func (p *Pair) Burn(st state.StateDB, to common.Address) (*uint256.Int, *uint256.Int, error) {
	if to == (common.Address{}) {
		return nil, nil, fmt.Errorf("burn: %w", errs.ErrAddressZero)
	}
	s := p.Load(st)
	liquidity := token.BalanceOf(st, p.addr, p.addr)
	if s.TotalSupply.IsZero() || liquidity.IsZero() {
		return nil, nil, errs.ErrInsufficientLiquidityBurned
	}

	var amounts, feeCuts [2]*uint256.Int
	reserves := [2]*uint256.Int{s.Reserve0, s.Reserve1}
	fees := [2]*uint256.Int{s.Fee0, s.Fee1}
	for i := range reserves {
		var err error
		if amounts[i], err = fixedpoint.MulDiv(liquidity, reserves[i], s.TotalSupply); err != nil {
			return nil, nil, err
		}
		if feeCuts[i], err = fixedpoint.MulDiv(liquidity, fees[i], s.TotalSupply); err != nil {
			return nil, nil, err
		}
	}
	if amounts[0].IsZero() && amounts[1].IsZero() {
		return nil, nil, errs.ErrInsufficientLiquidityBurned
	}

	if err := token.Burn(st, p.addr, p.addr, liquidity); err != nil {
		return nil, nil, err
	}
	if err := token.Transfer(st, s.Token0, p.addr, to, amounts[0]); err != nil {
		return nil, nil, err
	}
	if err := token.Transfer(st, s.Token1, p.addr, to, amounts[1]); err != nil {
		return nil, nil, err
	}

	s.Reserve0 = new(uint256.Int).Sub(s.Reserve0, amounts[0])
	s.Reserve1 = new(uint256.Int).Sub(s.Reserve1, amounts[1])
	s.Fee0 = new(uint256.Int).Sub(s.Fee0, feeCuts[0])
	s.Fee1 = new(uint256.Int).Sub(s.Fee1, feeCuts[1])
	s.Reference0 = new(uint256.Int).Sub(s.Reference0, new(uint256.Int).Sub(amounts[0], feeCuts[0]))
	s.Reference1 = new(uint256.Int).Sub(s.Reference1, new(uint256.Int).Sub(amounts[1], feeCuts[1]))
	if err := p.write(st, s); err != nil {
		return nil, nil, err
	}

	st.Emit(event.Burn{Pair: p.addr, Amount0: amounts[0], Amount1: amounts[1], Liquidity: liquidity, To: to})
	st.Emit(event.Sync{Pair: p.addr, Reserve0: s.Reserve0, Reserve1: s.Reserve1})
	return amounts[0], amounts[1], nil
}
