// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/fixedpoint"
	"github.com/luxfi/twap/pair"
	"github.com/luxfi/twap/queue"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

// settlement carries one order through its kind-specific steps.
type settlement struct {
	e     *Executor
	st    state.StateDB
	o     queue.Order
	p     *pair.Pair
	meter *Meter
	res   *Result
}

func (e *Executor) settle(ctx context.Context, st state.StateDB, o queue.Order, meter *Meter, now uint64, res *Result) error {
	p, ok := e.pairs.Pair(o.Pair)
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrPairNotFound, o.Pair.Hex())
	}
	s := &settlement{e: e, st: st, o: o, p: p, meter: meter, res: res}

	switch o.Kind {
	case queue.Buy:
		if err := s.updateOracle(ctx, now); err != nil {
			return err
		}
		return s.buy()
	case queue.Sell:
		if err := s.updateOracle(ctx, now); err != nil {
			return err
		}
		return s.sell()
	case queue.Deposit:
		if err := s.updateOracle(ctx, now); err != nil {
			return err
		}
		return s.deposit()
	case queue.Withdraw:
		return s.withdraw()
	default:
		return fmt.Errorf("%w: unknown order kind %s", errs.ErrInvalidAmount, o.Kind)
	}
}

func (s *settlement) updateOracle(ctx context.Context, now uint64) error {
	if err := s.meter.Charge(GasOracleUpdate); err != nil {
		return err
	}
	_, _, err := s.p.Oracle().UpdatePrice(ctx, s.st, now)
	return err
}

func (s *settlement) transfer(tok, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := s.meter.Charge(GasTokenTransfer); err != nil {
		return err
	}
	return token.Transfer(s.st, tok, from, to, amount)
}

// leftover returns input the settlement did not use. A transfer the
// recipient's token refuses is recorded as owed and the settlement stands.
func (s *settlement) leftover(tok common.Address, amount *uint256.Int) error {
	err := s.transfer(tok, s.e.cfg.Escrow, s.o.Recipient, amount)
	if err == nil || !errs.Is(err, errs.Transfer) {
		return err
	}
	s.res.Owed = append(s.res.Owed, Holding{Token: tok, Amount: new(uint256.Int).Set(amount), reason: err.Error()})
	return nil
}

// unwraps reports whether output in tok is delivered as native value.
func (s *settlement) unwraps(tok common.Address) bool {
	return s.o.UnwrapNative && s.e.cfg.WrappedNative != (common.Address{}) && tok == s.e.cfg.WrappedNative
}

// outputTo is where a pair pays tok: the escrow when it must be unwrapped
// first, the recipient otherwise.
func (s *settlement) outputTo(tok common.Address) common.Address {
	if s.unwraps(tok) {
		return s.e.cfg.Escrow
	}
	return s.o.Recipient
}

// deliver forwards output parked in escrow. Wrapped native is unwrapped
// and pushed; a rejected push leaves the value recorded as stuck.
func (s *settlement) deliver(tok common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if !s.unwraps(tok) {
		return s.transfer(tok, s.e.cfg.Escrow, s.o.Recipient, amount)
	}
	if err := s.meter.Charge(GasUnwrap); err != nil {
		return err
	}
	if err := token.Unwrap(s.st, tok, s.e.cfg.Escrow, amount); err != nil {
		return err
	}
	if err := s.meter.Charge(GasNativeTransfer); err != nil {
		return err
	}
	if err := token.SendNative(s.st, s.e.cfg.Escrow, s.o.Recipient, amount); err != nil {
		s.st.Emit(event.UnwrapFailed{ID: s.o.ID, To: s.o.Recipient, Amount: new(uint256.Int).Set(amount)})
		s.e.recordStuck(s.st, s.o.Recipient, amount)
		s.res.Stuck.Add(s.res.Stuck, amount)
	}
	return nil
}

// swap pays out amountOut of tokenOut after the input reached the pair.
func (s *settlement) swap(tokenOut common.Address, amountOut *uint256.Int) error {
	token0, _ := s.p.Tokens(s.st)
	out0, out1 := new(uint256.Int), new(uint256.Int)
	if tokenOut == token0 {
		out0 = amountOut
	} else {
		out1 = amountOut
	}
	if err := s.meter.Charge(GasSwap); err != nil {
		return err
	}
	if err := s.p.Swap(s.st, out0, out1, s.outputTo(tokenOut)); err != nil {
		return err
	}
	if s.unwraps(tokenOut) {
		return s.deliver(tokenOut, amountOut)
	}
	return nil
}

// buy pays the oracle-required input, at most AmountIn, for exactly
// AmountOut and returns the unused input.
func (s *settlement) buy() error {
	required, err := s.p.QuoteIn(s.st, s.o.TokenIn, s.o.AmountOut)
	if err != nil {
		return err
	}
	if required.Gt(s.o.AmountIn) {
		return fmt.Errorf("%w: requires %s, max %s", errs.ErrInsufficientInputAmount, required.Dec(), s.o.AmountIn.Dec())
	}
	if err := s.transfer(s.o.TokenIn, s.e.cfg.Escrow, s.p.Address(), required); err != nil {
		return err
	}
	if err := s.swap(s.o.TokenOut, s.o.AmountOut); err != nil {
		return err
	}
	unused := new(uint256.Int).Sub(s.o.AmountIn, required)
	return s.leftover(s.o.TokenIn, unused)
}

// sell pays exactly AmountIn for whatever the oracle permits, at least
// AmountOut.
func (s *settlement) sell() error {
	out, err := s.p.QuoteOut(s.st, s.o.TokenIn, s.o.AmountIn)
	if err != nil {
		return err
	}
	if out.Lt(s.o.AmountOut) {
		return fmt.Errorf("%w: permits %s, min %s", errs.ErrInsufficientOutputAmount, out.Dec(), s.o.AmountOut.Dec())
	}
	if err := s.transfer(s.o.TokenIn, s.e.cfg.Escrow, s.p.Address(), s.o.AmountIn); err != nil {
		return err
	}
	return s.swap(s.o.TokenOut, out)
}

// deposit adds liquidity at the current reserve ratio and returns what the
// ratio leaves over.
func (s *settlement) deposit() error {
	token0, token1 := s.p.Tokens(s.st)
	r0, r1 := s.p.Reserves(s.st)
	use0, use1 := s.o.Amount0, s.o.Amount1
	if !r0.IsZero() && !r1.IsZero() {
		opt1, err := fixedpoint.MulDiv(s.o.Amount0, r1, r0)
		if err != nil {
			return err
		}
		if !opt1.Gt(s.o.Amount1) {
			use1 = opt1
		} else {
			opt0, err := fixedpoint.MulDiv(s.o.Amount1, r0, r1)
			if err != nil {
				return err
			}
			use0 = opt0
		}
	}

	if err := s.transfer(token0, s.e.cfg.Escrow, s.p.Address(), use0); err != nil {
		return err
	}
	if err := s.transfer(token1, s.e.cfg.Escrow, s.p.Address(), use1); err != nil {
		return err
	}
	if err := s.meter.Charge(GasMint); err != nil {
		return err
	}
	minted, err := s.p.Mint(s.st, s.o.Recipient)
	if err != nil {
		return err
	}
	if minted.Lt(s.o.Liquidity) {
		return fmt.Errorf("%w: minted %s, min %s", errs.ErrInsufficientLiquidityMinted, minted.Dec(), s.o.Liquidity.Dec())
	}

	if err := s.leftover(token0, new(uint256.Int).Sub(s.o.Amount0, use0)); err != nil {
		return err
	}
	return s.leftover(token1, new(uint256.Int).Sub(s.o.Amount1, use1))
}

// withdraw burns Liquidity and delivers at least Amount0/Amount1.
func (s *settlement) withdraw() error {
	token0, token1 := s.p.Tokens(s.st)
	if err := s.transfer(s.p.Address(), s.e.cfg.Escrow, s.p.Address(), s.o.Liquidity); err != nil {
		return err
	}
	if err := s.meter.Charge(GasBurn); err != nil {
		return err
	}
	amount0, amount1, err := s.p.Burn(s.st, s.e.cfg.Escrow)
	if err != nil {
		return err
	}
	if amount0.Lt(s.o.Amount0) || amount1.Lt(s.o.Amount1) {
		return fmt.Errorf("%w: got %s/%s, min %s/%s", errs.ErrInsufficientOutputAmount,
			amount0.Dec(), amount1.Dec(), s.o.Amount0.Dec(), s.o.Amount1.Dec())
	}
	if err := s.deliver(token0, amount0); err != nil {
		return err
	}
	return s.deliver(token1, amount1)
}
