// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pair implements the oracle-priced liquidity pool.
//
// Each token is tracked three ways: Reserve (the balance last synced),
// Reference (the part priced by the oracle) and Fee (what trades paid
// beyond the oracle price). Every operation keeps Reserve == Reference + Fee.
// The pair address doubles as its LP token.
package pair

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/oracle"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

// State is a snapshot of the pool accounting.
type State struct {
	Token0      common.Address
	Token1      common.Address
	Decimals0   uint8
	Decimals1   uint8
	Reserve0    *uint256.Int
	Reserve1    *uint256.Int
	Reference0  *uint256.Int
	Reference1  *uint256.Int
	Fee0        *uint256.Int
	Fee1        *uint256.Int
	TotalSupply *uint256.Int
}

var pairPrefix = []byte("pair")

var (
	keyToken0   = state.Key(pairPrefix, []byte("token0"))
	keyToken1   = state.Key(pairPrefix, []byte("token1"))
	keyDecimals = state.Key(pairPrefix, []byte("decimals"))
	keyReserve  = [2]common.Hash{state.Key(pairPrefix, []byte("reserve0")), state.Key(pairPrefix, []byte("reserve1"))}
	keyRef      = [2]common.Hash{state.Key(pairPrefix, []byte("ref0")), state.Key(pairPrefix, []byte("ref1"))}
	keyFee      = [2]common.Hash{state.Key(pairPrefix, []byte("fee0")), state.Key(pairPrefix, []byte("fee1"))}
)

// AddressOf derives the pair address of two sorted tokens.
func AddressOf(token0, token1 common.Address) common.Address {
	return state.Address(pairPrefix, token0.Bytes(), token1.Bytes())
}

// SortTokens orders a token pair by address.
func SortTokens(a, b common.Address) (common.Address, common.Address, error) {
	if a == b || a == (common.Address{}) || b == (common.Address{}) {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %s/%s", errs.ErrInvalidPair, a.Hex(), b.Hex())
	}
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	return a, b, nil
}

// Pair is a handle on one pool's state.
type Pair struct {
	addr   common.Address
	oracle *oracle.Oracle
}

// New returns a handle for the pair at addr priced by o.
func New(addr common.Address, o *oracle.Oracle) *Pair {
	return &Pair{addr: addr, oracle: o}
}

func (p *Pair) Address() common.Address { return p.addr }
func (p *Pair) Oracle() *oracle.Oracle   { return p.oracle }

// Initialize records the immutable token configuration.
func (p *Pair) Initialize(st state.StateDB, token0, token1 common.Address, decimals0, decimals1 uint8) error {
	if token0.Cmp(token1) >= 0 {
		return fmt.Errorf("%w: tokens not sorted", errs.ErrInvalidPair)
	}
	if err := p.oracle.Init(st, decimals0, decimals1); err != nil {
		return err
	}
	var dec common.Hash
	dec[30], dec[31] = decimals0, decimals1
	st.SetState(p.addr, keyToken0, state.HashFromAddress(token0))
	st.SetState(p.addr, keyToken1, state.HashFromAddress(token1))
	st.SetState(p.addr, keyDecimals, dec)
	return nil
}

// Load reads the full pool state.
func (p *Pair) Load(st state.StateDB) State {
	dec := st.GetState(p.addr, keyDecimals)
	return State{
		Token0:      state.AddressFromHash(st.GetState(p.addr, keyToken0)),
		Token1:      state.AddressFromHash(st.GetState(p.addr, keyToken1)),
		Decimals0:   dec[30],
		Decimals1:   dec[31],
		Reserve0:    p.get(st, keyReserve[0]),
		Reserve1:    p.get(st, keyReserve[1]),
		Reference0:  p.get(st, keyRef[0]),
		Reference1:  p.get(st, keyRef[1]),
		Fee0:        p.get(st, keyFee[0]),
		Fee1:        p.get(st, keyFee[1]),
		TotalSupply: token.TotalSupply(st, p.addr),
	}
}

func (p *Pair) get(st state.StateDB, key common.Hash) *uint256.Int {
	return state.Uint256FromHash(st.GetState(p.addr, key))
}

func (p *Pair) set(st state.StateDB, key common.Hash, v *uint256.Int) {
	st.SetState(p.addr, key, state.HashFromUint256(v))
}

// Tokens returns the sorted token pair.
func (p *Pair) Tokens(st state.StateDB) (common.Address, common.Address) {
	s := p.Load(st)
	return s.Token0, s.Token1
}

// Reserves returns the synced balances.
func (p *Pair) Reserves(st state.StateDB) (*uint256.Int, *uint256.Int) {
	return p.get(st, keyReserve[0]), p.get(st, keyReserve[1])
}

// References returns the oracle-priced reserves.
func (p *Pair) References(st state.StateDB) (*uint256.Int, *uint256.Int) {
	return p.get(st, keyRef[0]), p.get(st, keyRef[1])
}

// Fees returns the accumulated fees.
func (p *Pair) Fees(st state.StateDB) (*uint256.Int, *uint256.Int) {
	return p.get(st, keyFee[0]), p.get(st, keyFee[1])
}

// TotalSupply returns the LP supply.
func (p *Pair) TotalSupply(st state.StateDB) *uint256.Int {
	return token.TotalSupply(st, p.addr)
}

// write stores the accounting of s after checking Reserve == Reference + Fee.
func (p *Pair) write(st state.StateDB, s State) error {
	reserves := [2]*uint256.Int{s.Reserve0, s.Reserve1}
	refs := [2]*uint256.Int{s.Reference0, s.Reference1}
	fees := [2]*uint256.Int{s.Fee0, s.Fee1}
	for i := range reserves {
		sum, overflow := new(uint256.Int).AddOverflow(refs[i], fees[i])
		if overflow || !sum.Eq(reserves[i]) {
			return fmt.Errorf("%w: reserve%d %s != reference %s + fee %s",
				errs.ErrInvalidSwap, i, reserves[i].Dec(), refs[i].Dec(), fees[i].Dec())
		}
		p.set(st, keyReserve[i], reserves[i])
		p.set(st, keyRef[i], refs[i])
		p.set(st, keyFee[i], fees[i])
	}
	return nil
}

// balances returns what the pair holds of each token.
func (p *Pair) balances(st state.StateDB, s State) (*uint256.Int, *uint256.Int) {
	return token.BalanceOf(st, s.Token0, p.addr), token.BalanceOf(st, s.Token1, p.addr)
}

// excess returns balance - base, or zero when the balance is short.
func excess(balance, base *uint256.Int) *uint256.Int {
	if balance.Gt(base) {
		return new(uint256.Int).Sub(balance, base)
	}
	return new(uint256.Int)
}
