// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package delay

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/executor"
	"github.com/luxfi/twap/pair"
	"github.com/luxfi/twap/queue"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

// Gas is the execution budget an order prepays in native value.
type Gas struct {
	Limit uint64
	Price *uint256.Int
}

// Envelope holds the fields every submission shares.
type Envelope struct {
	Recipient common.Address
	// Deadline is the last unix second at which the order may settle.
	Deadline uint64
	// WrapUnwrap takes wrapped-native input as native value and delivers
	// wrapped-native output as native value.
	WrapUnwrap bool
	Gas        Gas
}

// SwapParams describes a Buy or a Sell. For Buy, AmountIn is the maximum
// input and AmountOut the exact output. For Sell, AmountIn is exact and
// AmountOut is the minimum output.
type SwapParams struct {
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Envelope
}

// DepositParams adds AmountA of TokenA and AmountB of TokenB for at least
// MinLiquidity LP tokens.
type DepositParams struct {
	TokenA       common.Address
	TokenB       common.Address
	AmountA      *uint256.Int
	AmountB      *uint256.Int
	MinLiquidity *uint256.Int
	Envelope
}

// WithdrawParams burns Liquidity for at least MinA of TokenA and MinB of
// TokenB.
type WithdrawParams struct {
	TokenA    common.Address
	TokenB    common.Address
	Liquidity *uint256.Int
	MinA      *uint256.Int
	MinB      *uint256.Int
	Envelope
}

func nonZero(v *uint256.Int) bool { return v != nil && !v.IsZero() }

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// Buy queues an exact-output swap.
func (d *Delay) Buy(ctx context.Context, submitter common.Address, p SwapParams) (uint64, error) {
	return d.submitSwap(ctx, queue.Buy, submitter, p)
}

// Sell queues an exact-input swap.
func (d *Delay) Sell(ctx context.Context, submitter common.Address, p SwapParams) (uint64, error) {
	return d.submitSwap(ctx, queue.Sell, submitter, p)
}

func (d *Delay) submitSwap(ctx context.Context, kind queue.Kind, submitter common.Address, p SwapParams) (uint64, error) {
	if !nonZero(p.AmountIn) {
		return 0, fmt.Errorf("%w: amount in must be positive", errs.ErrInvalidAmount)
	}
	if kind == queue.Buy && !nonZero(p.AmountOut) {
		return 0, fmt.Errorf("%w: amount out must be positive", errs.ErrInvalidAmount)
	}
	if _, _, err := pair.SortTokens(p.TokenIn, p.TokenOut); err != nil {
		return 0, err
	}
	pr, ok := d.pairs.ForTokens(p.TokenIn, p.TokenOut)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", errs.ErrPairNotFound, p.TokenIn.Hex(), p.TokenOut.Hex())
	}
	return d.submit(ctx, submitter, p.Envelope, queue.Order{
		Kind:      kind,
		Pair:      pr.Address(),
		TokenIn:   p.TokenIn,
		TokenOut:  p.TokenOut,
		AmountIn:  orZero(p.AmountIn),
		AmountOut: orZero(p.AmountOut),
		Amount0:   new(uint256.Int),
		Amount1:   new(uint256.Int),
		Liquidity: new(uint256.Int),
	})
}

// Deposit queues a liquidity deposit. The order records the pair's tokens
// in sorted order as TokenIn and TokenOut.
func (d *Delay) Deposit(ctx context.Context, submitter common.Address, p DepositParams) (uint64, error) {
	if !nonZero(p.AmountA) || !nonZero(p.AmountB) {
		return 0, fmt.Errorf("%w: deposit amounts must be positive", errs.ErrInvalidAmount)
	}
	token0, token1, err := pair.SortTokens(p.TokenA, p.TokenB)
	if err != nil {
		return 0, err
	}
	pr, ok := d.pairs.ForTokens(token0, token1)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", errs.ErrPairNotFound, token0.Hex(), token1.Hex())
	}
	amount0, amount1 := p.AmountA, p.AmountB
	if token0 != p.TokenA {
		amount0, amount1 = amount1, amount0
	}
	return d.submit(ctx, submitter, p.Envelope, queue.Order{
		Kind:      queue.Deposit,
		Pair:      pr.Address(),
		TokenIn:   token0,
		TokenOut:  token1,
		AmountIn:  new(uint256.Int),
		AmountOut: new(uint256.Int),
		Amount0:   orZero(amount0),
		Amount1:   orZero(amount1),
		Liquidity: orZero(p.MinLiquidity),
	})
}

// Withdraw queues a liquidity withdrawal.
func (d *Delay) Withdraw(ctx context.Context, submitter common.Address, p WithdrawParams) (uint64, error) {
	if !nonZero(p.Liquidity) {
		return 0, fmt.Errorf("%w: liquidity must be positive", errs.ErrInvalidAmount)
	}
	token0, token1, err := pair.SortTokens(p.TokenA, p.TokenB)
	if err != nil {
		return 0, err
	}
	pr, ok := d.pairs.ForTokens(token0, token1)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", errs.ErrPairNotFound, token0.Hex(), token1.Hex())
	}
	min0, min1 := p.MinA, p.MinB
	if token0 != p.TokenA {
		min0, min1 = min1, min0
	}
	return d.submit(ctx, submitter, p.Envelope, queue.Order{
		Kind:      queue.Withdraw,
		Pair:      pr.Address(),
		TokenIn:   token0,
		TokenOut:  token1,
		AmountIn:  new(uint256.Int),
		AmountOut: new(uint256.Int),
		Amount0:   orZero(min0),
		Amount1:   orZero(min1),
		Liquidity: orZero(p.Liquidity),
	})
}

// submit validates the shared fields, pulls the escrow and enqueues o.
func (d *Delay) submit(ctx context.Context, submitter common.Address, env Envelope, o queue.Order) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if env.Recipient == (common.Address{}) || submitter == (common.Address{}) {
		return 0, fmt.Errorf("recipient: %w", errs.ErrAddressZero)
	}
	now := d.now()
	if env.Deadline <= now {
		return 0, fmt.Errorf("%w: deadline %d, now %d", errs.ErrInvalidDeadline, env.Deadline, now)
	}
	if env.Gas.Limit < d.cfg.BaseCost {
		return 0, fmt.Errorf("%w: %d below base cost %d", errs.ErrGasLimitTooLow, env.Gas.Limit, d.cfg.BaseCost)
	}
	if d.cfg.MaxGasLimit != 0 && env.Gas.Limit > d.cfg.MaxGasLimit {
		return 0, fmt.Errorf("%w: %d above %d", errs.ErrGasLimitTooHigh, env.Gas.Limit, d.cfg.MaxGasLimit)
	}

	o.Submitter = submitter
	o.Recipient = env.Recipient
	o.UnwrapNative = env.WrapUnwrap
	o.GasLimit = env.Gas.Limit
	o.GasPrice = orZero(env.Gas.Price)
	o.SubmittedAt = now
	o.ExecutionDeadline = env.Deadline
	prepaid, err := o.Prepaid()
	if err != nil {
		return 0, err
	}

	var id uint64
	err = d.update(func(tx *state.Tx) error {
		if err := d.pullEscrow(tx, o, prepaid, env.WrapUnwrap); err != nil {
			return err
		}
		id = d.queue.Enqueue(tx, o)
		tx.Emit(event.OrderEnqueued{
			ID:        id,
			Kind:      o.Kind.String(),
			Pair:      o.Pair,
			Submitter: submitter,
			Recipient: o.Recipient,
		})
		return nil
	})
	if err != nil {
		d.log.Debug("order rejected", "kind", o.Kind.String(), "submitter", submitter.Hex(), "error", err)
		return 0, err
	}
	d.log.Info("order enqueued", "id", id, "kind", o.Kind.String(), "pair", o.Pair.Hex(), "unlocksAt", now+d.cfg.DelaySeconds)
	d.setDepth()
	return id, nil
}

// pullEscrow moves the prepaid gas and the order's input into escrow.
func (d *Delay) pullEscrow(st state.StateDB, o queue.Order, prepaid *uint256.Int, wrap bool) error {
	if st.GetBalance(o.Submitter).Lt(prepaid) {
		return fmt.Errorf("%w: gas prepay of %s", errs.ErrInsufficientFund, prepaid.Dec())
	}
	if err := token.SendNative(st, o.Submitter, EscrowAddress, prepaid); err != nil {
		return err
	}
	for _, h := range executor.Escrowed(o) {
		if h.Amount.IsZero() {
			continue
		}
		if wrap && d.cfg.WrappedNative != (common.Address{}) && h.Token == d.cfg.WrappedNative {
			if err := token.Wrap(st, h.Token, o.Submitter, h.Amount); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrInsufficientFund, err)
			}
		}
		if err := token.Transfer(st, h.Token, o.Submitter, EscrowAddress, h.Amount); err != nil {
			return fmt.Errorf("%w: escrow %s: %v", errs.ErrInsufficientFund, h.Token.Hex(), err)
		}
	}
	return nil
}
