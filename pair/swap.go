// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/fixedpoint"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

// Swap pays out exactly one token against input already transferred to the
// pair. The output may not exceed what the oracle permits for the input on
// the references; any input beyond what the output requires is kept as fee.
func (p *Pair) Swap(st state.StateDB, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	if to == (common.Address{}) {
		return fmt.Errorf("swap: %w", errs.ErrAddressZero)
	}
	out0, out1 := !amount0Out.IsZero(), !amount1Out.IsZero()
	switch {
	case !out0 && !out1:
		return errs.ErrInsufficientOutputAmount
	case out0 && out1:
		return fmt.Errorf("%w: two outputs", errs.ErrInvalidSwap)
	}

	s := p.Load(st)
	if !amount0Out.Lt(s.Reserve0) || !amount1Out.Lt(s.Reserve1) {
		return errs.ErrInsufficientLiquidity
	}
	if to == s.Token0 || to == s.Token1 {
		return fmt.Errorf("%w: recipient is a pool token", errs.ErrInvalidSwap)
	}

	bal0, bal1 := p.balances(st, s)
	amount0In := excess(bal0, s.Reserve0)
	amount1In := excess(bal1, s.Reserve1)

	var (
		required *uint256.Int
		err      error
	)
	if out1 {
		required, err = p.settle(st, amount0In, amount1Out, s.Reference0, s.Reference1, true)
	} else {
		required, err = p.settle(st, amount1In, amount0Out, s.Reference1, s.Reference0, false)
	}
	if err != nil {
		return err
	}

	if out0 {
		if err := token.Transfer(st, s.Token0, p.addr, to, amount0Out); err != nil {
			return err
		}
		s.Reference0 = new(uint256.Int).Sub(s.Reference0, amount0Out)
		s.Reference1 = new(uint256.Int).Add(s.Reference1, required)
	} else {
		if err := token.Transfer(st, s.Token1, p.addr, to, amount1Out); err != nil {
			return err
		}
		s.Reference0 = new(uint256.Int).Add(s.Reference0, required)
		s.Reference1 = new(uint256.Int).Sub(s.Reference1, amount1Out)
	}

	fee0, fee1 := amount0In, amount1In
	if out1 {
		fee0 = new(uint256.Int).Sub(amount0In, required)
	} else {
		fee1 = new(uint256.Int).Sub(amount1In, required)
	}
	s.Fee0 = new(uint256.Int).Add(s.Fee0, fee0)
	s.Fee1 = new(uint256.Int).Add(s.Fee1, fee1)
	s.Reserve0, s.Reserve1 = p.balances(st, s)
	if err := p.write(st, s); err != nil {
		return err
	}

	st.Emit(event.Swap{
		Pair:       p.addr,
		Amount0In:  amount0In,
		Amount1In:  amount1In,
		Amount0Out: new(uint256.Int).Set(amount0Out),
		Amount1Out: new(uint256.Int).Set(amount1Out),
		To:         to,
	})
	st.Emit(event.Fees{Pair: p.addr, Fee0: fee0, Fee1: fee1})
	st.Emit(event.Sync{Pair: p.addr, Reserve0: s.Reserve0, Reserve1: s.Reserve1})
	return nil
}

// settle checks out against the oracle price of amountIn and returns the
// input the output actually requires. xIn is true when token0 is paid in.
func (p *Pair) settle(st state.StateDB, amountIn, out, refIn, refOut *uint256.Int, xIn bool) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, errs.ErrInsufficientInputAmount
	}
	if !out.Lt(refOut) {
		return nil, fmt.Errorf("%w: output %s, reference %s", errs.ErrInsufficientLiquidity, out.Dec(), refOut.Dec())
	}

	permitted, err := p.outFor(st, amountIn, refIn, refOut, xIn)
	switch {
	case errors.Is(err, errs.ErrInsufficientLiquidity):
		// the input buys more than the whole reference
	case err != nil:
		return nil, err
	case out.Gt(permitted):
		return nil, fmt.Errorf("%w: output %s exceeds permitted %s", errs.ErrInvalidSwap, out.Dec(), permitted.Dec())
	}

	required, err := p.inFor(st, out, refIn, refOut, xIn)
	if err != nil {
		return nil, err
	}
	if required.Gt(amountIn) {
		return nil, fmt.Errorf("%w: output %s needs %s, got %s", errs.ErrInvalidSwap, out.Dec(), required.Dec(), amountIn.Dec())
	}
	return required, nil
}

// outFor returns the output the oracle permits for amountIn.
func (p *Pair) outFor(st state.StateDB, amountIn, refIn, refOut *uint256.Int, xIn bool) (*uint256.Int, error) {
	after, err := fixedpoint.Add(refIn, amountIn)
	if err != nil {
		return nil, err
	}
	if xIn {
		yAfter, err := p.oracle.TradeX(st, after, refIn, refOut)
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).Sub(refOut, yAfter), nil
	}
	xAfter, err := p.oracle.TradeY(st, after, refOut, refIn)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Sub(refOut, xAfter), nil
}

// inFor returns the input the oracle requires for out.
func (p *Pair) inFor(st state.StateDB, out, refIn, refOut *uint256.Int, xIn bool) (*uint256.Int, error) {
	after, err := fixedpoint.Sub(refOut, out)
	if err != nil {
		return nil, err
	}
	if xIn {
		xAfter, err := p.oracle.TradeY(st, after, refIn, refOut)
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).Sub(xAfter, refIn), nil
	}
	yAfter, err := p.oracle.TradeX(st, after, refOut, refIn)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Sub(yAfter, refIn), nil
}

// QuoteIn returns the input of tokenIn the oracle requires for amountOut
// of the other token.
func (p *Pair) QuoteIn(st state.StateDB, tokenIn common.Address, amountOut *uint256.Int) (*uint256.Int, error) {
	s := p.Load(st)
	xIn, err := direction(s, tokenIn)
	if err != nil {
		return nil, err
	}
	refIn, refOut := s.Reference0, s.Reference1
	if !xIn {
		refIn, refOut = refOut, refIn
	}
	if !amountOut.Lt(refOut) {
		return nil, fmt.Errorf("%w: output %s, reference %s", errs.ErrInsufficientLiquidity, amountOut.Dec(), refOut.Dec())
	}
	return p.inFor(st, amountOut, refIn, refOut, xIn)
}

// QuoteOut returns the output the oracle permits for amountIn of tokenIn.
func (p *Pair) QuoteOut(st state.StateDB, tokenIn common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	s := p.Load(st)
	xIn, err := direction(s, tokenIn)
	if err != nil {
		return nil, err
	}
	if xIn {
		return p.outFor(st, amountIn, s.Reference0, s.Reference1, true)
	}
	return p.outFor(st, amountIn, s.Reference1, s.Reference0, false)
}

// direction reports whether tokenIn is token0.
func direction(s State, tokenIn common.Address) (bool, error) {
	switch tokenIn {
	case s.Token0:
		return true, nil
	case s.Token1:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s not in pair", errs.ErrInvalidPair, tokenIn.Hex())
	}
}
