// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor settles queued orders strictly in id order.
//
// Settlement runs inside a state snapshot. Any settlement error reverts the
// snapshot and is reported in the Result; only ordering, existence and time
// lock checks abort Execute itself. Once those pass the queue always
// advances and exactly one OrderExecuted event is emitted.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/pair"
	"github.com/luxfi/twap/queue"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

// Config parameterises settlement.
type Config struct {
	// Delay is the time lock in seconds between submission and execution.
	Delay uint64
	// BaseCost is added to metered gas when paying the bot.
	BaseCost uint64
	// WrappedNative is the wrapped-native token, zero if none.
	WrappedNative common.Address
	// Escrow holds prepaid tokens and native gas funds.
	Escrow common.Address
}

// Pairs resolves the pair an order trades on.
type Pairs interface {
	Pair(addr common.Address) (*pair.Pair, bool)
}

// Result describes one Execute call.
type Result struct {
	ID         uint64
	Kind       queue.Kind
	Success    bool
	Err        error
	ErrorData  []byte
	GasSpent   uint64
	BotPayment *uint256.Int
	EthRefund  *uint256.Int
	// Retained is set when a failed token refund kept the order readable.
	Retained bool
	// Stuck is native value that could not be pushed to the recipient.
	Stuck *uint256.Int
	// Owed is unused input of a successful settlement the recipient's
	// token refused. It is paid by RetryRefund.
	Owed []Holding
}

// Executor settles orders of one queue.
type Executor struct {
	cfg   Config
	queue *queue.Queue
	pairs Pairs
}

// New returns an executor over q.
func New(cfg Config, q *queue.Queue, pairs Pairs) *Executor {
	if cfg.BaseCost == 0 {
		cfg.BaseCost = DefaultBaseCost
	}
	return &Executor{cfg: cfg, queue: q, pairs: pairs}
}

// Config returns the settlement parameters.
func (e *Executor) Config() Config { return e.cfg }

var stuckPrefix = []byte("stuck")

// StuckFunds returns native value owed to addr that a push could not
// deliver.
func (e *Executor) StuckFunds(st state.StateDB, addr common.Address) *uint256.Int {
	return state.Uint256FromHash(st.GetState(e.cfg.Escrow, state.Key(stuckPrefix, addr.Bytes())))
}

func (e *Executor) recordStuck(st state.StateDB, addr common.Address, amount *uint256.Int) {
	total := new(uint256.Int).Add(e.StuckFunds(st, addr), amount)
	st.SetState(e.cfg.Escrow, state.Key(stuckPrefix, addr.Bytes()), state.HashFromUint256(total))
}

// Ready reports whether id is the next order and its time lock has passed.
func (e *Executor) Ready(st state.StateDB, id, now uint64) bool {
	if id != e.queue.LastProcessed(st)+1 || id > e.queue.Newest(st) {
		return false
	}
	o, err := e.queue.Get(st, id)
	return err == nil && now >= o.SubmittedAt+e.cfg.Delay
}

// Execute settles order id on behalf of bot at time now.
func (e *Executor) Execute(ctx context.Context, st state.StateDB, id uint64, bot common.Address, now uint64) (Result, error) {
	if next := e.queue.LastProcessed(st) + 1; id != next {
		return Result{}, fmt.Errorf("%w: got %d, next is %d", errs.ErrOutOfOrder, id, next)
	}
	if id > e.queue.Newest(st) {
		return Result{}, fmt.Errorf("%w: %d", errs.ErrOrderNotFound, id)
	}
	o, err := e.queue.Get(st, id)
	if err != nil {
		return Result{}, err
	}
	if unlock := o.SubmittedAt + e.cfg.Delay; now < unlock {
		return Result{}, fmt.Errorf("%w: %d unlocks at %d", errs.ErrOrderLocked, id, unlock)
	}

	res := Result{ID: id, Kind: o.Kind, Stuck: new(uint256.Int)}
	meter := NewMeter(o.GasLimit)

	// An order whose prepay overflows settles as failed and charges nothing.
	prepaid, prepaidErr := o.Prepaid()
	settleErr := prepaidErr
	if settleErr == nil {
		settleErr = meter.Charge(GasOrderLoad)
	}
	if settleErr == nil && now > o.ExecutionDeadline {
		settleErr = fmt.Errorf("%w: deadline %d, now %d", errs.ErrExpired, o.ExecutionDeadline, now)
	}
	if settleErr == nil {
		snap := st.Snapshot()
		settleErr = e.settle(ctx, st, o, meter, now, &res)
		if settleErr != nil {
			st.RevertToSnapshot(snap)
			res.Stuck = new(uint256.Int)
			res.Owed = nil
		}
	}
	if errors.Is(settleErr, context.Canceled) || errors.Is(settleErr, context.DeadlineExceeded) {
		return Result{}, settleErr
	}

	res.Success = settleErr == nil
	res.Err = settleErr
	if settleErr != nil {
		res.ErrorData = []byte(settleErr.Error())
	}
	res.GasSpent = meter.Used()

	res.BotPayment, res.EthRefund = new(uint256.Int), new(uint256.Int)
	if prepaidErr == nil {
		if err := e.pay(st, o, prepaid, bot, &res); err != nil {
			return Result{}, err
		}
	}

	if !res.Success {
		if tf := e.refund(st, o.Recipient, Escrowed(o)); tf != nil {
			res.Retained = true
			st.Emit(event.RefundFailed{ID: id, To: o.Recipient, Token: tf.token, Amount: tf.amount, Reason: tf.Error()})
		}
	}
	if len(res.Owed) > 0 {
		res.Retained = true
		e.storeOwed(st, id, res.Owed)
		for _, h := range res.Owed {
			st.Emit(event.RefundFailed{ID: id, To: o.Recipient, Token: h.Token, Amount: h.Amount, Reason: h.reason})
		}
	}
	if res.Retained {
		if err := e.queue.MarkRefundFailed(st, id); err != nil {
			return Result{}, err
		}
	}

	if !res.EthRefund.IsZero() {
		if err := token.SendNative(st, e.cfg.Escrow, o.Recipient, res.EthRefund); err != nil {
			st.Emit(event.EthRefundFailed{ID: id, To: o.Recipient, Amount: res.EthRefund})
			e.recordStuck(st, o.Recipient, res.EthRefund)
			res.Stuck.Add(res.Stuck, res.EthRefund)
		}
	}

	if err := e.queue.Advance(st, id); err != nil {
		return Result{}, err
	}
	if !res.Retained {
		e.queue.Remove(st, id)
	}
	st.Emit(event.OrderExecuted{
		ID:        id,
		Success:   res.Success,
		ErrorData: res.ErrorData,
		GasSpent:  res.GasSpent,
		EthRefund: res.EthRefund,
	})
	return res, nil
}

// pay splits the prepaid gas between the bot and the recipient's refund.
func (e *Executor) pay(st state.StateDB, o queue.Order, prepaid *uint256.Int, bot common.Address, res *Result) error {
	charged := res.GasSpent + e.cfg.BaseCost
	if charged > o.GasLimit || charged < res.GasSpent {
		charged = o.GasLimit
	}
	payment, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(charged), o.GasPrice)
	if overflow {
		return fmt.Errorf("%w: bot payment of %d", errs.ErrOverflow, o.ID)
	}
	refund, underflow := new(uint256.Int).SubOverflow(prepaid, payment)
	if underflow {
		return fmt.Errorf("%w: bot payment exceeds prepay of %d", errs.ErrUnderflow, o.ID)
	}
	if st.GetBalance(e.cfg.Escrow).Lt(prepaid) {
		return fmt.Errorf("%w: escrow holds less than the prepaid gas of %d", errs.ErrInsufficientFund, o.ID)
	}
	st.SubBalance(e.cfg.Escrow, payment)
	st.AddBalance(bot, payment)
	res.BotPayment, res.EthRefund = payment, refund
	return nil
}

// RetryRefund re-attempts the token refund of an order retained after a
// failed refund. A failed settlement returns everything escrowed; a
// successful one returns only what it owes. On success the order is
// removed.
func (e *Executor) RetryRefund(st state.StateDB, id uint64) error {
	o, err := e.queue.Get(st, id)
	if err != nil {
		return err
	}
	if o.Status != queue.RefundFailed {
		return fmt.Errorf("%w: %d", errs.ErrNotRefundPending, id)
	}
	holdings := e.Owed(st, id)
	if len(holdings) == 0 {
		holdings = Escrowed(o)
	}
	if tf := e.refund(st, o.Recipient, holdings); tf != nil {
		return tf
	}
	e.clearOwed(st, id, len(holdings))
	e.queue.Remove(st, id)
	return nil
}

// Holding is an amount of one token parked in escrow.
type Holding struct {
	Token  common.Address
	Amount *uint256.Int

	reason string
}

var owedPrefix = []byte("owed")

func owedKey(id uint64, idx uint64, field byte) common.Hash {
	return state.Key(owedPrefix, state.Uint64Bytes(id), state.Uint64Bytes(idx), []byte{field})
}

// Owed returns the unused input a retained successful settlement still
// owes its recipient.
func (e *Executor) Owed(st state.StateDB, id uint64) []Holding {
	n := state.Uint64FromHash(st.GetState(e.cfg.Escrow, state.Key(owedPrefix, state.Uint64Bytes(id))))
	holdings := make([]Holding, 0, n)
	for i := uint64(0); i < n; i++ {
		holdings = append(holdings, Holding{
			Token:  state.AddressFromHash(st.GetState(e.cfg.Escrow, owedKey(id, i, 't'))),
			Amount: state.Uint256FromHash(st.GetState(e.cfg.Escrow, owedKey(id, i, 'a'))),
		})
	}
	return holdings
}

func (e *Executor) storeOwed(st state.StateDB, id uint64, holdings []Holding) {
	st.SetState(e.cfg.Escrow, state.Key(owedPrefix, state.Uint64Bytes(id)), state.HashFromUint64(uint64(len(holdings))))
	for i, h := range holdings {
		st.SetState(e.cfg.Escrow, owedKey(id, uint64(i), 't'), state.HashFromAddress(h.Token))
		st.SetState(e.cfg.Escrow, owedKey(id, uint64(i), 'a'), state.HashFromUint256(h.Amount))
	}
}

func (e *Executor) clearOwed(st state.StateDB, id uint64, n int) {
	if len(e.Owed(st, id)) == 0 {
		return
	}
	st.SetState(e.cfg.Escrow, state.Key(owedPrefix, state.Uint64Bytes(id)), common.Hash{})
	for i := 0; i < n; i++ {
		st.SetState(e.cfg.Escrow, owedKey(id, uint64(i), 't'), common.Hash{})
		st.SetState(e.cfg.Escrow, owedKey(id, uint64(i), 'a'), common.Hash{})
	}
}

// Escrowed lists the tokens an order parks in escrow until settlement.
// Withdrawals park LP tokens, whose token address is the pair.
func Escrowed(o queue.Order) []Holding {
	switch o.Kind {
	case queue.Buy, queue.Sell:
		return []Holding{{o.TokenIn, o.AmountIn}}
	case queue.Deposit:
		return []Holding{{o.TokenIn, o.Amount0}, {o.TokenOut, o.Amount1}}
	default:
		return []Holding{{o.Pair, o.Liquidity}}
	}
}

type transferError struct {
	token  common.Address
	amount *uint256.Int
	err    error
}

func (t *transferError) Error() string { return t.err.Error() }
func (t *transferError) Unwrap() error { return t.err }

// refund pays holdings out of escrow to recipient, all or nothing.
func (e *Executor) refund(st state.StateDB, recipient common.Address, holdings []Holding) *transferError {
	snap := st.Snapshot()
	for _, h := range holdings {
		if err := token.Transfer(st, h.Token, e.cfg.Escrow, recipient, h.Amount); err != nil {
			st.RevertToSnapshot(snap)
			return &transferError{token: h.Token, amount: h.Amount, err: err}
		}
	}
	return nil
}
