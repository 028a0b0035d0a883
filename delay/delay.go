// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package delay is the entry point of the delayed-execution exchange. It
// owns the pair registry, the order queue and the executor, and runs every
// mutating call as one serialized state transaction.
package delay

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
	"github.com/shopspring/decimal"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/executor"
	"github.com/luxfi/twap/feed"
	"github.com/luxfi/twap/fixedpoint"
	"github.com/luxfi/twap/metrics"
	"github.com/luxfi/twap/pair"
	"github.com/luxfi/twap/queue"
	"github.com/luxfi/twap/state"
)

var delayPrefix = []byte("delay")

// Fixed addresses of the queue records and the escrow account.
var (
	EscrowAddress = state.Address(delayPrefix, []byte("escrow"))
	QueueAddress  = state.Address(delayPrefix, []byte("queue"))
)

// Config holds the queue parameters.
type Config struct {
	// DelaySeconds is the time lock between submission and execution.
	DelaySeconds uint64
	// MaxGasLimit caps the gas an order may prepay. Zero means no cap.
	MaxGasLimit uint64
	// BaseCost is the minimum gas limit and the unmetered part of the bot
	// payment.
	BaseCost uint64
	// WrappedNative enables wrap on submission and unwrap on settlement.
	WrappedNative common.Address
}

// Option customises a Delay.
type Option func(*Delay)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(d *Delay) { d.log = l }
}

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Delay) { d.metrics = m }
}

// WithClock replaces the wall clock used for time locks and deadlines.
func WithClock(now func() time.Time) Option {
	return func(d *Delay) { d.clock = now }
}

// Delay is safe for concurrent use. Mutations are serialized; reads run
// against the last committed state.
type Delay struct {
	mu sync.RWMutex

	cfg     Config
	store   *state.Store
	pairs   *pair.Registry
	feeds   *feed.Registry
	queue   *queue.Queue
	exec    *executor.Executor
	clock   func() time.Time
	log     log.Logger
	metrics *metrics.Metrics
}

// New returns a Delay over store.
func New(cfg Config, store *state.Store, opts ...Option) (*Delay, error) {
	if cfg.BaseCost == 0 {
		cfg.BaseCost = executor.DefaultBaseCost
	}
	if cfg.MaxGasLimit != 0 && cfg.MaxGasLimit < cfg.BaseCost {
		return nil, fmt.Errorf("%w: max gas limit %d below base cost %d", errs.ErrInvalidConfig, cfg.MaxGasLimit, cfg.BaseCost)
	}
	d := &Delay{
		cfg:   cfg,
		store: store,
		pairs: pair.NewRegistry(),
		feeds: feed.NewRegistry(),
		queue: queue.New(QueueAddress),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = log.New("component", "delay")
	}
	if d.metrics == nil {
		d.metrics = metrics.New()
	}
	d.exec = executor.New(executor.Config{
		Delay:         cfg.DelaySeconds,
		BaseCost:      cfg.BaseCost,
		WrappedNative: cfg.WrappedNative,
		Escrow:        EscrowAddress,
	}, d.queue, d.pairs)
	store.AddSink(event.SinkFunc(d.observe))
	return d, nil
}

// Config returns the queue parameters.
func (d *Delay) Config() Config { return d.cfg }

// Metrics returns the collectors.
func (d *Delay) Metrics() *metrics.Metrics { return d.metrics }

func (d *Delay) now() uint64 {
	return uint64(d.clock().Unix())
}

// update runs fn in a serialized transaction committed when fn succeeds.
func (d *Delay) update(fn func(tx *state.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Update(fn)
}

// view runs fn against committed state.
func (d *Delay) view(fn func(st state.StateDB) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.View(fn)
}

func (d *Delay) pair(addr common.Address) (*pair.Pair, error) {
	p, ok := d.pairs.Pair(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrPairNotFound, addr.Hex())
	}
	return p, nil
}

// observe turns committed events into metrics.
func (d *Delay) observe(ev event.Event) {
	switch e := ev.(type) {
	case event.OrderEnqueued:
		d.metrics.OrdersEnqueued.WithLabelValues(e.Kind).Inc()
	case event.PriceUpdated:
		d.metrics.OracleUpdates.WithLabelValues("committed").Inc()
		d.metrics.OraclePrice.WithLabelValues(e.Pair.Hex()).Set(wadFloat(e.Price))
	case event.RefundFailed:
		d.metrics.RefundFailures.WithLabelValues("token").Inc()
		d.log.Warn("token refund failed", "id", e.ID, "to", e.To.Hex(), "token", e.Token.Hex(), "reason", e.Reason)
	case event.EthRefundFailed:
		d.metrics.RefundFailures.WithLabelValues("native").Inc()
		d.log.Warn("native refund failed", "id", e.ID, "to", e.To.Hex(), "amount", e.Amount.Dec())
	case event.UnwrapFailed:
		d.metrics.RefundFailures.WithLabelValues("unwrap").Inc()
		d.log.Warn("unwrapped output not delivered", "id", e.ID, "to", e.To.Hex(), "amount", e.Amount.Dec())
	}
}

func wadFloat(v *uint256.Int) float64 {
	return decimal.NewFromBigInt(v.ToBig(), -fixedpoint.WADDecimals).InexactFloat64()
}
