// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package delay

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/oracle"
	"github.com/luxfi/twap/pair"
	"github.com/luxfi/twap/queue"
	"github.com/luxfi/twap/state"
)

// QueueInfo summarises the order queue.
type QueueInfo struct {
	LastProcessed uint64
	Newest        uint64
	Pending       uint64
	Delay         uint64
}

// PairInfo is the read model of one pair and its oracle.
type PairInfo struct {
	Address common.Address
	Pool    pair.State
	Oracle  oracle.State
}

// Order returns a pending or retained order.
func (d *Delay) Order(id uint64) (queue.Order, error) {
	var o queue.Order
	err := d.view(func(st state.StateDB) error {
		var err error
		o, err = d.queue.Get(st, id)
		return err
	})
	return o, err
}

// LastProcessedOrderID is the id of the last executed order.
func (d *Delay) LastProcessedOrderID() uint64 {
	return d.Queue().LastProcessed
}

// NewestOrderID is the id of the last enqueued order.
func (d *Delay) NewestOrderID() uint64 {
	return d.Queue().Newest
}

// Queue returns the queue counters.
func (d *Delay) Queue() QueueInfo {
	info := QueueInfo{Delay: d.cfg.DelaySeconds}
	_ = d.view(func(st state.StateDB) error {
		info.LastProcessed = d.queue.LastProcessed(st)
		info.Newest = d.queue.Newest(st)
		info.Pending = d.queue.Pending(st)
		return nil
	})
	return info
}

// Reserves returns the pool balances of a pair.
func (d *Delay) Reserves(addr common.Address) (*uint256.Int, *uint256.Int, error) {
	info, err := d.Pair(addr)
	if err != nil {
		return nil, nil, err
	}
	return info.Pool.Reserve0, info.Pool.Reserve1, nil
}

// References returns the reference reserves a pair trades against.
func (d *Delay) References(addr common.Address) (*uint256.Int, *uint256.Int, error) {
	info, err := d.Pair(addr)
	if err != nil {
		return nil, nil, err
	}
	return info.Pool.Reference0, info.Pool.Reference1, nil
}

// Fees returns the fees a pair has accrued.
func (d *Delay) Fees(addr common.Address) (*uint256.Int, *uint256.Int, error) {
	info, err := d.Pair(addr)
	if err != nil {
		return nil, nil, err
	}
	return info.Pool.Fee0, info.Pool.Fee1, nil
}

// Price returns the live oracle price of a pair.
func (d *Delay) Price(addr common.Address) (*uint256.Int, error) {
	p, err := d.pair(addr)
	if err != nil {
		return nil, err
	}
	var price *uint256.Int
	err = d.view(func(st state.StateDB) error {
		var err error
		price, err = p.Oracle().Price(st)
		return err
	})
	return price, err
}

// StuckFunds returns native value owed to addr after a rejected push.
func (d *Delay) StuckFunds(addr common.Address) *uint256.Int {
	var v *uint256.Int
	_ = d.view(func(st state.StateDB) error {
		v = d.exec.StuckFunds(st, addr)
		return nil
	})
	return v
}

// Pair returns the read model of one pair.
func (d *Delay) Pair(addr common.Address) (PairInfo, error) {
	p, err := d.pair(addr)
	if err != nil {
		return PairInfo{}, err
	}
	var info PairInfo
	err = d.view(func(st state.StateDB) error {
		info = pairInfo(st, p)
		return nil
	})
	return info, err
}

// Pairs returns every pair in creation order.
func (d *Delay) Pairs() []PairInfo {
	all := d.pairs.All()
	infos := make([]PairInfo, 0, len(all))
	_ = d.view(func(st state.StateDB) error {
		for _, p := range all {
			infos = append(infos, pairInfo(st, p))
		}
		return nil
	})
	return infos
}

func pairInfo(st state.StateDB, p *pair.Pair) PairInfo {
	return PairInfo{
		Address: p.Address(),
		Pool:    p.Load(st),
		Oracle:  p.Oracle().Load(st),
	}
}
