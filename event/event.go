// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package event defines the notifications emitted by pairs, oracles and the
// executor. Events are buffered by the state transaction and only delivered
// to sinks once it commits.
package event

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Event is any notification with a stable name.
type Event interface {
	Name() string
}

// Sink receives committed events.
type Sink interface {
	Handle(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Handle(ev Event) { f(ev) }

// OrderEnqueued is emitted when an order joins the queue.
type OrderEnqueued struct {
	ID        uint64
	Kind      string
	Pair      common.Address
	Submitter common.Address
	Recipient common.Address
}

// OrderExecuted is the single settlement record emitted per Execute call.
type OrderExecuted struct {
	ID        uint64
	Success   bool
	ErrorData []byte
	GasSpent  uint64
	EthRefund *uint256.Int
}

// RefundFailed reports a token refund that could not be delivered; the
// order stays readable for a retry.
type RefundFailed struct {
	ID     uint64
	To     common.Address
	Token  common.Address
	Amount *uint256.Int
	Reason string
}

// EthRefundFailed reports a native gas refund pushed to a recipient that
// does not accept native value. The funds are recorded as stuck.
type EthRefundFailed struct {
	ID     uint64
	To     common.Address
	Amount *uint256.Int
}

// UnwrapFailed reports settled output in wrapped native that could not be
// delivered as native value.
type UnwrapFailed struct {
	ID     uint64
	To     common.Address
	Amount *uint256.Int
}

// Swap mirrors a validated pair swap.
type Swap struct {
	Pair       common.Address
	Amount0In  *uint256.Int
	Amount1In  *uint256.Int
	Amount0Out *uint256.Int
	Amount1Out *uint256.Int
	To         common.Address
}

// Fees reports input retained as fee by a swap.
type Fees struct {
	Pair common.Address
	Fee0 *uint256.Int
	Fee1 *uint256.Int
}

// Sync reports reserves after any pair mutation.
type Sync struct {
	Pair     common.Address
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}

// Mint reports a deposit.
type Mint struct {
	Pair      common.Address
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Liquidity *uint256.Int
	To        common.Address
}

// Burn reports a withdrawal.
type Burn struct {
	Pair      common.Address
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Liquidity *uint256.Int
	To        common.Address
}

// PriceUpdated reports a committed oracle price.
type PriceUpdated struct {
	Pair      common.Address
	Price     *uint256.Int
	Timestamp uint64
}

func (OrderEnqueued) Name() string   { return "OrderEnqueued" }
func (OrderExecuted) Name() string   { return "OrderExecuted" }
func (RefundFailed) Name() string    { return "RefundFailed" }
func (EthRefundFailed) Name() string { return "EthRefundFailed" }
func (UnwrapFailed) Name() string    { return "UnwrapFailed" }
func (Swap) Name() string            { return "Swap" }
func (Fees) Name() string            { return "Fees" }
func (Sync) Name() string            { return "Sync" }
func (Mint) Name() string            { return "Mint" }
func (Burn) Name() string            { return "Burn" }
func (PriceUpdated) Name() string    { return "PriceUpdated" }
