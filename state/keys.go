// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Key derives a storage slot from a prefix and identifiers.
func Key(prefix []byte, parts ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, p := range parts {
		h.Write(p)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Address derives a deterministic contract address from a prefix and
// identifiers.
func Address(prefix []byte, parts ...[]byte) common.Address {
	key := Key(prefix, parts...)
	return common.BytesToAddress(key[12:])
}

// Uint64Bytes encodes v big-endian.
func Uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// Slot value codecs.

func HashFromUint256(v *uint256.Int) common.Hash {
	if v == nil {
		return common.Hash{}
	}
	return common.Hash(v.Bytes32())
}

func Uint256FromHash(h common.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(h[:])
}

func HashFromUint64(v uint64) common.Hash {
	var h common.Hash
	binary.BigEndian.PutUint64(h[24:], v)
	return h
}

func Uint64FromHash(h common.Hash) uint64 {
	return binary.BigEndian.Uint64(h[24:])
}

func HashFromAddress(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func AddressFromHash(h common.Hash) common.Address {
	return common.BytesToAddress(h[12:])
}

func HashFromBool(b bool) common.Hash {
	if b {
		return HashFromUint64(1)
	}
	return common.Hash{}
}

func BoolFromHash(h common.Hash) bool {
	return h != (common.Hash{})
}
