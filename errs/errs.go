// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs holds the error taxonomy shared by the oracle, pair, queue and
// executor packages. Every sentinel carries a Class that decides how the
// executor propagates it.
package errs

import "errors"

// Class groups errors by how they propagate.
type Class uint8

const (
	// Unclassified errors come from outside the taxonomy (database, context).
	Unclassified Class = iota
	// Configuration errors reject bad curve or parameter setup before any
	// state change.
	Configuration
	// Validation errors abort the calling operation without side effects.
	Validation
	// Economic errors become a failed settlement; the queue still advances.
	Economic
	// Transfer errors mean value could not be delivered; the only class that
	// may leave an order retry-pending.
	Transfer
)

func (c Class) String() string {
	switch c {
	case Configuration:
		return "configuration"
	case Validation:
		return "validation"
	case Economic:
		return "economic"
	case Transfer:
		return "transfer"
	default:
		return "unclassified"
	}
}

// Error is a classed sentinel. Compare with errors.Is against the exported
// values below; wrap with fmt.Errorf("%w: ...") to add context.
type Error struct {
	Class Class
	msg   string
}

// New creates a classed sentinel error.
func New(class Class, msg string) *Error {
	return &Error{Class: class, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// ClassOf returns the class of the first classed error in err's chain.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return Unclassified
}

// Is reports whether err belongs to class.
func Is(err error, class Class) bool {
	return err != nil && ClassOf(err) == class
}

// Errors - Math
var (
	ErrOverflow       = New(Economic, "arithmetic overflow")
	ErrUnderflow      = New(Economic, "arithmetic underflow")
	ErrDivisionByZero = New(Economic, "division by zero")
)

// Errors - Configuration
var (
	ErrInvalidCurve    = New(Configuration, "invalid curve parameters")
	ErrInvalidBounds   = New(Configuration, "invalid price bounds")
	ErrInvalidDecimals = New(Configuration, "invalid token decimals")
	ErrInvalidPair     = New(Configuration, "invalid pair tokens")
	ErrPairExists      = New(Configuration, "pair already exists")
	ErrInvalidConfig   = New(Configuration, "invalid configuration")
	ErrInvalidSource   = New(Configuration, "invalid price source")
)

// Errors - Validation
var (
	ErrAddressZero      = New(Validation, "address zero")
	ErrZeroPrice        = New(Validation, "price is zero")
	ErrOutOfOrder       = New(Validation, "order executed out of order")
	ErrOrderNotFound    = New(Validation, "order not found")
	ErrOrderLocked      = New(Validation, "order still time locked")
	ErrPairNotFound     = New(Validation, "pair not found")
	ErrOracleNotLive    = New(Validation, "oracle has no price source")
	ErrNotConfigured    = New(Validation, "oracle curve not configured")
	ErrInvalidAmount    = New(Validation, "invalid amount")
	ErrInvalidDeadline  = New(Validation, "invalid deadline")
	ErrGasLimitTooLow   = New(Validation, "gas limit too low")
	ErrGasLimitTooHigh  = New(Validation, "gas limit too high")
	ErrGasPriceTooHigh  = New(Validation, "gas prepayment overflows")
	ErrInsufficientFund = New(Validation, "insufficient prepaid funds")
	ErrNotRefundPending = New(Validation, "order has no pending refund")
)

// Errors - Economic
var (
	ErrExpired                     = New(Economic, "order expired")
	ErrInvalidSwap                 = New(Economic, "invalid swap")
	ErrInsufficientLiquidity       = New(Economic, "insufficient liquidity")
	ErrInsufficientInputAmount     = New(Economic, "insufficient input amount")
	ErrInsufficientOutputAmount    = New(Economic, "insufficient output amount")
	ErrInsufficientLiquidityMinted = New(Economic, "insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = New(Economic, "insufficient liquidity burned")
	ErrPriceOutOfBounds            = New(Economic, "price out of bounds")
	ErrNonPositiveCurve            = New(Economic, "curve evaluates to a non-positive multiplier")
	ErrOutOfGas                    = New(Economic, "out of gas")
)

// Errors - Transfer
var (
	ErrInsufficientBalance = New(Transfer, "insufficient balance")
	ErrTransferBlocked     = New(Transfer, "transfer blocked")
	ErrNativeRejected      = New(Transfer, "recipient rejects native value")
)
