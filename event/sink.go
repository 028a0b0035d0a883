// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package event

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/log"
)

// Recorder keeps every delivered event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Name() == name {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LogSink writes settlement-relevant events to a structured logger.
type LogSink struct {
	log log.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) Handle(ev Event) {
	switch e := ev.(type) {
	case OrderEnqueued:
		s.log.Info("order enqueued", "id", e.ID, "kind", e.Kind, "pair", e.Pair.Hex())
	case OrderExecuted:
		s.log.Info("order executed",
			"id", e.ID,
			"success", e.Success,
			"gasSpent", e.GasSpent,
			"ethRefund", dec(e.EthRefund),
			"error", string(e.ErrorData))
	case RefundFailed:
		s.log.Warn("refund failed",
			"id", e.ID,
			"to", e.To.Hex(),
			"token", e.Token.Hex(),
			"amount", dec(e.Amount),
			"reason", e.Reason)
	case EthRefundFailed:
		s.log.Error("native refund stuck", "id", e.ID, "to", e.To.Hex(), "amount", dec(e.Amount))
	case UnwrapFailed:
		s.log.Error("unwrap failed", "id", e.ID, "to", e.To.Hex(), "amount", dec(e.Amount))
	case PriceUpdated:
		s.log.Debug("price updated", "pair", e.Pair.Hex(), "price", dec(e.Price), "ts", e.Timestamp)
	default:
		s.log.Debug("event", "name", ev.Name())
	}
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
