// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/state"
)

var (
	testToken   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testWrapped = common.HexToAddress("0x9999999999999999999999999999999999999999")
	testUser1   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testUser2   = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func newTx(t *testing.T) *state.Tx {
	tx := state.NewMemory().Begin()
	t.Cleanup(tx.Abort)
	return tx
}

func TestToken_MintTransferBurn(t *testing.T) {
	tx := newTx(t)

	require.NoError(t, Mint(tx, testToken, testUser1, uint256.NewInt(100)))
	require.Equal(t, uint64(100), TotalSupply(tx, testToken).Uint64())

	require.NoError(t, Transfer(tx, testToken, testUser1, testUser2, uint256.NewInt(30)))
	require.Equal(t, uint64(70), BalanceOf(tx, testToken, testUser1).Uint64())
	require.Equal(t, uint64(30), BalanceOf(tx, testToken, testUser2).Uint64())

	err := Transfer(tx, testToken, testUser2, testUser1, uint256.NewInt(31))
	require.ErrorIs(t, err, errs.ErrInsufficientBalance)
	require.True(t, errs.Is(err, errs.Transfer))

	require.NoError(t, Burn(tx, testToken, testUser2, uint256.NewInt(30)))
	require.Equal(t, uint64(70), TotalSupply(tx, testToken).Uint64())
	require.NoError(t, tx.Err())
}

func TestToken_Blocklist(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, Mint(tx, testToken, testUser1, uint256.NewInt(10)))

	SetBlocked(tx, testToken, testUser2, true)
	err := Transfer(tx, testToken, testUser1, testUser2, uint256.NewInt(1))
	require.ErrorIs(t, err, errs.ErrTransferBlocked)

	SetBlocked(tx, testToken, testUser2, false)
	require.NoError(t, Transfer(tx, testToken, testUser1, testUser2, uint256.NewInt(1)))
}

func TestToken_NativeRejection(t *testing.T) {
	tx := newTx(t)
	tx.AddBalance(testUser1, uint256.NewInt(50))

	SetRejectsNative(tx, testUser2, true)
	err := SendNative(tx, testUser1, testUser2, uint256.NewInt(5))
	require.ErrorIs(t, err, errs.ErrNativeRejected)
	require.Equal(t, uint64(50), tx.GetBalance(testUser1).Uint64())

	SetRejectsNative(tx, testUser2, false)
	require.NoError(t, SendNative(tx, testUser1, testUser2, uint256.NewInt(5)))
	require.Equal(t, uint64(5), BalanceOf(tx, Native, testUser2).Uint64())
}

func TestToken_WrapUnwrap(t *testing.T) {
	tx := newTx(t)
	tx.AddBalance(testUser1, uint256.NewInt(20))

	require.NoError(t, Wrap(tx, testWrapped, testUser1, uint256.NewInt(15)))
	require.Equal(t, uint64(5), tx.GetBalance(testUser1).Uint64())
	require.Equal(t, uint64(15), BalanceOf(tx, testWrapped, testUser1).Uint64())
	require.Equal(t, uint64(15), tx.GetBalance(testWrapped).Uint64())

	require.NoError(t, Unwrap(tx, testWrapped, testUser1, uint256.NewInt(10)))
	require.Equal(t, uint64(15), tx.GetBalance(testUser1).Uint64())
	require.Equal(t, uint64(5), BalanceOf(tx, testWrapped, testUser1).Uint64())

	require.ErrorIs(t, Unwrap(tx, testWrapped, testUser1, uint256.NewInt(6)), errs.ErrInsufficientBalance)
}
