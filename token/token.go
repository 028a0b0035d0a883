// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token moves token and native balances inside a StateDB. Token
// balances live in slots of the token address; native value uses the
// state balance API. The zero address denotes the native asset.
package token

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/state"
)

// Native is the currency address of the native asset.
var Native = common.Address{}

// accountsAddr holds per-account flags such as native-value rejection.
var accountsAddr = state.Address([]byte("accounts"))

var (
	balancePrefix = []byte("tbal")
	supplyKey     = state.Key([]byte("tsup"))
	blockedPrefix = []byte("tblk")
	rejectPrefix  = []byte("nrej")
)

// BalanceOf returns the token balance of account.
func BalanceOf(st state.StateDB, tok, account common.Address) *uint256.Int {
	if tok == Native {
		return st.GetBalance(account)
	}
	return state.Uint256FromHash(st.GetState(tok, state.Key(balancePrefix, account.Bytes())))
}

func setBalance(st state.StateDB, tok, account common.Address, v *uint256.Int) {
	st.SetState(tok, state.Key(balancePrefix, account.Bytes()), state.HashFromUint256(v))
}

// TotalSupply returns the minted supply of tok.
func TotalSupply(st state.StateDB, tok common.Address) *uint256.Int {
	return state.Uint256FromHash(st.GetState(tok, supplyKey))
}

// Mint creates amount of tok for to.
func Mint(st state.StateDB, tok, to common.Address, amount *uint256.Int) error {
	if tok == Native {
		st.AddBalance(to, amount)
		return nil
	}
	supply, overflow := new(uint256.Int).AddOverflow(TotalSupply(st, tok), amount)
	if overflow {
		return fmt.Errorf("mint %s: %w", tok.Hex(), errs.ErrOverflow)
	}
	st.SetState(tok, supplyKey, state.HashFromUint256(supply))
	setBalance(st, tok, to, new(uint256.Int).Add(BalanceOf(st, tok, to), amount))
	return nil
}

// Burn destroys amount of tok held by from.
func Burn(st state.StateDB, tok, from common.Address, amount *uint256.Int) error {
	bal := BalanceOf(st, tok, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: burn %s from %s", errs.ErrInsufficientBalance, amount.Dec(), from.Hex())
	}
	if tok == Native {
		st.SubBalance(from, amount)
		return nil
	}
	setBalance(st, tok, from, bal.Sub(bal, amount))
	supply := TotalSupply(st, tok)
	st.SetState(tok, supplyKey, state.HashFromUint256(supply.Sub(supply, amount)))
	return nil
}

// Transfer moves amount of tok. A blocklisted sender or recipient fails
// with ErrTransferBlocked.
func Transfer(st state.StateDB, tok, from, to common.Address, amount *uint256.Int) error {
	if tok == Native {
		return SendNative(st, from, to, amount)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer %s: %w", tok.Hex(), errs.ErrAddressZero)
	}
	if IsBlocked(st, tok, from) || IsBlocked(st, tok, to) {
		return fmt.Errorf("%w: %s from %s to %s", errs.ErrTransferBlocked, tok.Hex(), from.Hex(), to.Hex())
	}
	if amount.IsZero() || from == to {
		return nil
	}
	bal := BalanceOf(st, tok, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s of %s, needs %s",
			errs.ErrInsufficientBalance, from.Hex(), bal.Dec(), tok.Hex(), amount.Dec())
	}
	setBalance(st, tok, from, bal.Sub(bal, amount))
	setBalance(st, tok, to, new(uint256.Int).Add(BalanceOf(st, tok, to), amount))
	return nil
}

// SetBlocked toggles the blocklist entry of account on tok.
func SetBlocked(st state.StateDB, tok, account common.Address, blocked bool) {
	st.SetState(tok, state.Key(blockedPrefix, account.Bytes()), state.HashFromBool(blocked))
}

// IsBlocked reports whether account is blocklisted on tok.
func IsBlocked(st state.StateDB, tok, account common.Address) bool {
	return state.BoolFromHash(st.GetState(tok, state.Key(blockedPrefix, account.Bytes())))
}

// SetRejectsNative marks account as refusing native value pushes.
func SetRejectsNative(st state.StateDB, account common.Address, rejects bool) {
	st.SetState(accountsAddr, state.Key(rejectPrefix, account.Bytes()), state.HashFromBool(rejects))
}

// RejectsNative reports whether account refuses native value.
func RejectsNative(st state.StateDB, account common.Address) bool {
	return state.BoolFromHash(st.GetState(accountsAddr, state.Key(rejectPrefix, account.Bytes())))
}

// SendNative pushes native value.
func SendNative(st state.StateDB, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("send native: %w", errs.ErrAddressZero)
	}
	if amount.IsZero() {
		return nil
	}
	if RejectsNative(st, to) {
		return fmt.Errorf("%w: %s", errs.ErrNativeRejected, to.Hex())
	}
	if st.GetBalance(from).Lt(amount) {
		return fmt.Errorf("%w: native balance of %s", errs.ErrInsufficientBalance, from.Hex())
	}
	st.SubBalance(from, amount)
	st.AddBalance(to, amount)
	return nil
}

// Wrap converts native value held by account into the wrapped token.
func Wrap(st state.StateDB, wrapped, account common.Address, amount *uint256.Int) error {
	if st.GetBalance(account).Lt(amount) {
		return fmt.Errorf("%w: wrap needs %s native", errs.ErrInsufficientBalance, amount.Dec())
	}
	st.SubBalance(account, amount)
	st.AddBalance(wrapped, amount)
	return Mint(st, wrapped, account, amount)
}

// Unwrap burns wrapped tokens of account and credits the native value back
// to account.
func Unwrap(st state.StateDB, wrapped, account common.Address, amount *uint256.Int) error {
	if err := Burn(st, wrapped, account, amount); err != nil {
		return err
	}
	if st.GetBalance(wrapped).Lt(amount) {
		return fmt.Errorf("%w: wrapped reserve", errs.ErrInsufficientBalance)
	}
	st.SubBalance(wrapped, amount)
	st.AddBalance(account, amount)
	return nil
}
