// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pair

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/errs"
)

// Registry tracks created pairs. Pairs are kept in creation order for
// deterministic iteration.
type Registry struct {
	mu      sync.RWMutex
	ordered []*Pair
	byAddr  map[common.Address]*Pair
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byAddr: make(map[common.Address]*Pair)}
}

// Register adds p. A second pair at the same address is ErrPairExists.
func (r *Registry) Register(p *Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byAddr[p.addr]; ok {
		return fmt.Errorf("%w: %s", errs.ErrPairExists, p.addr.Hex())
	}
	r.byAddr[p.addr] = p
	r.ordered = append(r.ordered, p)
	return nil
}

// Pair looks up a pair by address.
func (r *Registry) Pair(addr common.Address) (*Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byAddr[addr]
	return p, ok
}

// ForTokens looks up the pair of two tokens in either order.
func (r *Registry) ForTokens(a, b common.Address) (*Pair, bool) {
	token0, token1, err := SortTokens(a, b)
	if err != nil {
		return nil, false
	}
	return r.Pair(AddressOf(token0, token1))
}

// All returns the pairs in creation order.
func (r *Registry) All() []*Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pair, len(r.ordered))
	copy(out, r.ordered)
	return out
}
