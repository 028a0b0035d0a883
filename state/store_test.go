// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/twap/event"
)

var (
	testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testUser     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testSlot     = Key([]byte("test"), []byte("slot"))
)

func TestTxCommitPersists(t *testing.T) {
	rec := event.NewRecorder()
	store := NewMemory(rec)

	tx := store.Begin()
	tx.SetState(testContract, testSlot, HashFromUint64(42))
	tx.AddBalance(testUser, uint256.NewInt(100))
	tx.Emit(event.Sync{Pair: testContract})
	require.Empty(t, rec.Events(), "events must wait for commit")
	require.NoError(t, tx.Commit())
	require.Len(t, rec.Events(), 1)

	err := store.View(func(st StateDB) error {
		require.Equal(t, uint64(42), Uint64FromHash(st.GetState(testContract, testSlot)))
		require.Equal(t, uint64(100), st.GetBalance(testUser).Uint64())
		return nil
	})
	require.NoError(t, err)
}

func TestTxAbortDiscards(t *testing.T) {
	rec := event.NewRecorder()
	store := NewMemory(rec)

	tx := store.Begin()
	tx.SetState(testContract, testSlot, HashFromUint64(7))
	tx.Emit(event.Sync{Pair: testContract})
	tx.Abort()

	require.Empty(t, rec.Events())
	require.NoError(t, store.View(func(st StateDB) error {
		require.Equal(t, common.Hash{}, st.GetState(testContract, testSlot))
		return nil
	}))
	require.ErrorIs(t, tx.Commit(), ErrTxClosed)
}

func TestSnapshotRevert(t *testing.T) {
	store := NewMemory()
	tx := store.Begin()
	defer tx.Abort()

	tx.SetState(testContract, testSlot, HashFromUint64(1))
	tx.AddBalance(testUser, uint256.NewInt(10))
	snap := tx.Snapshot()

	tx.SetState(testContract, testSlot, HashFromUint64(2))
	tx.SetState(testContract, Key([]byte("other")), HashFromUint64(3))
	tx.SubBalance(testUser, uint256.NewInt(4))
	tx.Emit(event.Sync{Pair: testContract})

	tx.RevertToSnapshot(snap)

	require.Equal(t, uint64(1), Uint64FromHash(tx.GetState(testContract, testSlot)))
	require.Equal(t, common.Hash{}, tx.GetState(testContract, Key([]byte("other"))))
	require.Equal(t, uint64(10), tx.GetBalance(testUser).Uint64())
	require.Empty(t, tx.Events())
	require.NoError(t, tx.Err())
}

func TestSubBalanceUnderflowPoisonsTx(t *testing.T) {
	store := NewMemory()
	tx := store.Begin()
	tx.SubBalance(testUser, uint256.NewInt(1))
	require.Error(t, tx.Err())
	require.Error(t, tx.Commit())
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := NewMemory()
	err := store.Update(func(tx *Tx) error {
		tx.SetState(testContract, testSlot, HashFromUint64(9))
		return ErrTxClosed
	})
	require.ErrorIs(t, err, ErrTxClosed)
	require.NoError(t, store.View(func(st StateDB) error {
		require.Equal(t, common.Hash{}, st.GetState(testContract, testSlot))
		return nil
	}))
}

func TestCodecs(t *testing.T) {
	v := uint256.MustFromDecimal("123456789012345678901234567890")
	require.True(t, Uint256FromHash(HashFromUint256(v)).Eq(v))
	require.Equal(t, testUser, AddressFromHash(HashFromAddress(testUser)))
	require.True(t, BoolFromHash(HashFromBool(true)))
	require.False(t, BoolFromHash(HashFromBool(false)))
	require.NotEqual(t, Address([]byte("a")), Address([]byte("b")))
}
