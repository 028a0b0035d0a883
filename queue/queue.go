// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package queue stores delayed orders under monotonically increasing ids.
// Orders are appended at Newest+1 and consumed strictly at LastProcessed+1.
package queue

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/state"
)

// Kind is the order type.
type Kind uint8

const (
	Buy Kind = iota
	Sell
	Deposit
	Withdraw
)

func (k Kind) String() string {
	switch k {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Status marks whether an order still awaits execution or is retained
// after a failed refund.
type Status uint8

const (
	Pending Status = iota
	RefundFailed
)

func (s Status) String() string {
	if s == RefundFailed {
		return "refund_failed"
	}
	return "pending"
}

// Order is a queued request. For Buy, AmountIn is the maximum input and
// AmountOut the exact output; for Sell, AmountIn is exact and AmountOut the
// minimum. Deposit uses Amount0/Amount1 and a minimum Liquidity; Withdraw
// burns Liquidity for at least Amount0/Amount1. Both store the pair's
// token0 and token1 in TokenIn and TokenOut.
type Order struct {
	ID                uint64
	Kind              Kind
	Status            Status
	Pair              common.Address
	TokenIn           common.Address
	TokenOut          common.Address
	Submitter         common.Address
	Recipient         common.Address
	UnwrapNative      bool
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	Amount0           *uint256.Int
	Amount1           *uint256.Int
	Liquidity         *uint256.Int
	GasLimit          uint64
	GasPrice          *uint256.Int
	SubmittedAt       uint64
	ExecutionDeadline uint64
}

// Prepaid returns the native value escrowed for gas, GasLimit·GasPrice.
func (o Order) Prepaid() (*uint256.Int, error) {
	v, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(o.GasLimit), o.GasPrice)
	if overflow {
		return nil, fmt.Errorf("%w: %d·%s", errs.ErrGasPriceTooHigh, o.GasLimit, o.GasPrice.Dec())
	}
	return v, nil
}

// field indexes of the order record
const (
	fieldHeader byte = iota
	fieldPair
	fieldTokenIn
	fieldTokenOut
	fieldSubmitter
	fieldRecipient
	fieldAmountIn
	fieldAmountOut
	fieldAmount0
	fieldAmount1
	fieldLiquidity
	fieldGasPrice
	numFields
)

var (
	orderPrefix      = []byte("order")
	keyLastProcessed = state.Key([]byte("queue"), []byte("last"))
	keyNewest        = state.Key([]byte("queue"), []byte("newest"))
)

// Queue is a handle on the order store at addr.
type Queue struct {
	addr common.Address
}

// New returns the queue whose records live under addr.
func New(addr common.Address) *Queue {
	return &Queue{addr: addr}
}

func (q *Queue) Address() common.Address { return q.addr }

func fieldKey(id uint64, field byte) common.Hash {
	return state.Key(orderPrefix, state.Uint64Bytes(id), []byte{field})
}

// LastProcessed is the id of the last order consumed, 0 if none.
func (q *Queue) LastProcessed(st state.StateDB) uint64 {
	return state.Uint64FromHash(st.GetState(q.addr, keyLastProcessed))
}

// Newest is the id of the last order enqueued, 0 if none.
func (q *Queue) Newest(st state.StateDB) uint64 {
	return state.Uint64FromHash(st.GetState(q.addr, keyNewest))
}

// Pending is the number of orders not yet consumed.
func (q *Queue) Pending(st state.StateDB) uint64 {
	return q.Newest(st) - q.LastProcessed(st)
}

// Enqueue stores o under the next id and returns it.
func (q *Queue) Enqueue(st state.StateDB, o Order) uint64 {
	id := q.Newest(st) + 1
	o.ID = id
	o.Status = Pending
	q.write(st, o)
	st.SetState(q.addr, keyNewest, state.HashFromUint64(id))
	return id
}

func (q *Queue) write(st state.StateDB, o Order) {
	var header common.Hash
	header[0] = 1
	header[1] = byte(o.Kind)
	header[2] = byte(o.Status)
	if o.UnwrapNative {
		header[3] = 1
	}
	binary.BigEndian.PutUint64(header[8:16], o.GasLimit)
	binary.BigEndian.PutUint64(header[16:24], o.SubmittedAt)
	binary.BigEndian.PutUint64(header[24:32], o.ExecutionDeadline)
	st.SetState(q.addr, fieldKey(o.ID, fieldHeader), header)

	for _, f := range []struct {
		field byte
		addr  common.Address
	}{
		{fieldPair, o.Pair},
		{fieldTokenIn, o.TokenIn},
		{fieldTokenOut, o.TokenOut},
		{fieldSubmitter, o.Submitter},
		{fieldRecipient, o.Recipient},
	} {
		st.SetState(q.addr, fieldKey(o.ID, f.field), state.HashFromAddress(f.addr))
	}
	for _, f := range []struct {
		field byte
		value *uint256.Int
	}{
		{fieldAmountIn, o.AmountIn},
		{fieldAmountOut, o.AmountOut},
		{fieldAmount0, o.Amount0},
		{fieldAmount1, o.Amount1},
		{fieldLiquidity, o.Liquidity},
		{fieldGasPrice, o.GasPrice},
	} {
		st.SetState(q.addr, fieldKey(o.ID, f.field), state.HashFromUint256(f.value))
	}
}

// Get reads order id. Consumed and removed orders are ErrOrderNotFound.
func (q *Queue) Get(st state.StateDB, id uint64) (Order, error) {
	header := st.GetState(q.addr, fieldKey(id, fieldHeader))
	if header[0] != 1 {
		return Order{}, fmt.Errorf("%w: %d", errs.ErrOrderNotFound, id)
	}
	addr := func(f byte) common.Address {
		return state.AddressFromHash(st.GetState(q.addr, fieldKey(id, f)))
	}
	amount := func(f byte) *uint256.Int {
		return state.Uint256FromHash(st.GetState(q.addr, fieldKey(id, f)))
	}
	return Order{
		ID:                id,
		Kind:              Kind(header[1]),
		Status:            Status(header[2]),
		UnwrapNative:      header[3] == 1,
		GasLimit:          binary.BigEndian.Uint64(header[8:16]),
		SubmittedAt:       binary.BigEndian.Uint64(header[16:24]),
		ExecutionDeadline: binary.BigEndian.Uint64(header[24:32]),
		Pair:              addr(fieldPair),
		TokenIn:           addr(fieldTokenIn),
		TokenOut:          addr(fieldTokenOut),
		Submitter:         addr(fieldSubmitter),
		Recipient:         addr(fieldRecipient),
		AmountIn:          amount(fieldAmountIn),
		AmountOut:         amount(fieldAmountOut),
		Amount0:           amount(fieldAmount0),
		Amount1:           amount(fieldAmount1),
		Liquidity:         amount(fieldLiquidity),
		GasPrice:          amount(fieldGasPrice),
	}, nil
}

// Remove deletes the record of id.
func (q *Queue) Remove(st state.StateDB, id uint64) {
	for f := fieldHeader; f < numFields; f++ {
		st.SetState(q.addr, fieldKey(id, f), common.Hash{})
	}
}

// Advance moves LastProcessed to id, which must be the next pending order.
func (q *Queue) Advance(st state.StateDB, id uint64) error {
	last := q.LastProcessed(st)
	if id != last+1 {
		return fmt.Errorf("%w: got %d, next is %d", errs.ErrOutOfOrder, id, last+1)
	}
	if id > q.Newest(st) {
		return fmt.Errorf("%w: %d", errs.ErrOrderNotFound, id)
	}
	st.SetState(q.addr, keyLastProcessed, state.HashFromUint64(id))
	return nil
}

// MarkRefundFailed flags a stored order as retained for a refund retry.
func (q *Queue) MarkRefundFailed(st state.StateDB, id uint64) error {
	header := st.GetState(q.addr, fieldKey(id, fieldHeader))
	if header[0] != 1 {
		return fmt.Errorf("%w: %d", errs.ErrOrderNotFound, id)
	}
	header[2] = byte(RefundFailed)
	st.SetState(q.addr, fieldKey(id, fieldHeader), header)
	return nil
}
