// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"fmt"

	"github.com/luxfi/twap/errs"
)

// Gas costs charged during settlement
const (
	GasOrderLoad      uint64 = 2_000  // Read the order record
	GasOracleUpdate   uint64 = 10_000 // Oracle refresh, sampled or not
	GasSwap           uint64 = 30_000 // Pair swap
	GasMint           uint64 = 40_000 // Pair deposit
	GasBurn           uint64 = 40_000 // Pair withdrawal
	GasTokenTransfer  uint64 = 5_000  // Token ledger transfer
	GasNativeTransfer uint64 = 2_100  // Native value push
	GasUnwrap         uint64 = 5_000  // Wrapped native to native

	// DefaultBaseCost covers the work around settlement that the meter
	// does not see.
	DefaultBaseCost uint64 = 50_000
)

// Meter counts gas against a fixed limit.
type Meter struct {
	limit uint64
	used  uint64
}

// NewMeter returns a meter sized to limit.
func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Charge consumes cost. Exceeding the limit consumes everything left and
// returns ErrOutOfGas.
func (m *Meter) Charge(cost uint64) error {
	if m.limit-m.used < cost {
		m.used = m.limit
		return fmt.Errorf("%w: limit %d", errs.ErrOutOfGas, m.limit)
	}
	m.used += cost
	return nil
}

func (m *Meter) Used() uint64      { return m.used }
func (m *Meter) Remaining() uint64 { return m.limit - m.used }
