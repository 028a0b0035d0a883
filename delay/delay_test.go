// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package delay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/twap/curve"
	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/event"
	"github.com/luxfi/twap/executor"
	"github.com/luxfi/twap/feed"
	"github.com/luxfi/twap/queue"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

var (
	tokenA   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenW   = common.HexToAddress("0x9999999999999999999999999999999999999999")
	provider = common.HexToAddress("0x3333333333333333333333333333333333333333")
	trader   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	bot      = common.HexToAddress("0xb0b0000000000000000000000000000000000000")
	feedAddr = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

const (
	testDelay = 60
	gasLimit  = 200_000
	startTime = 1_000_000
)

func n(v uint64) *uint256.Int { return uint256.NewInt(v) }

func wad(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(n(v), n(1e18))
}

type harness struct {
	t     *testing.T
	d     *Delay
	store *state.Store
	rec   *event.Recorder

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, rec: event.NewRecorder(), now: time.Unix(startTime, 0)}
	h.store = state.NewMemory(h.rec)
	d, err := New(Config{
		DelaySeconds:  testDelay,
		MaxGasLimit:   1_000_000,
		BaseCost:      executor.DefaultBaseCost,
		WrappedNative: tokenW,
	}, h.store,
		WithClock(h.clock),
		WithLogger(log.New("test", t.Name())),
	)
	require.NoError(t, err)
	h.d = d

	for _, account := range []common.Address{provider, trader} {
		h.native(account, 10_000_000)
		for _, tok := range []common.Address{tokenA, tokenB} {
			h.fund(tok, account, 1_000)
		}
	}
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(seconds int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(time.Duration(seconds) * time.Second)
}

func (h *harness) unix() uint64 { return uint64(h.clock().Unix()) }

func (h *harness) fund(tok, account common.Address, amount uint64) {
	require.NoError(h.t, h.store.Update(func(tx *state.Tx) error {
		return token.Mint(tx, tok, account, n(amount))
	}))
}

func (h *harness) native(account common.Address, amount uint64) {
	require.NoError(h.t, h.store.Update(func(tx *state.Tx) error {
		tx.AddBalance(account, n(amount))
		return nil
	}))
}

func (h *harness) balance(tok, account common.Address) uint64 {
	var v *uint256.Int
	require.NoError(h.t, h.store.View(func(st state.StateDB) error {
		v = token.BalanceOf(st, tok, account)
		return nil
	}))
	return v.Uint64()
}

func (h *harness) nativeBalance(account common.Address) uint64 {
	var v *uint256.Int
	require.NoError(h.t, h.store.View(func(st state.StateDB) error {
		v = st.GetBalance(account)
		return nil
	}))
	return v.Uint64()
}

// livePair creates a pair priced at 1 on a flat curve.
func (h *harness) livePair(a, b common.Address) common.Address {
	addr, err := h.d.CreatePair(a, b, 18, 18)
	require.NoError(h.t, err)
	require.NoError(h.t, h.d.SetParameters(addr, curve.Flat(wad(1), wad(1))))
	require.NoError(h.t, h.d.SetPrice(addr, wad(1)))
	return addr
}

func (h *harness) envelope(recipient common.Address) Envelope {
	return Envelope{
		Recipient: recipient,
		Deadline:  h.unix() + 3_600,
		Gas:       Gas{Limit: gasLimit, Price: n(1)},
	}
}

// seed deposits 10/10 through the queue and executes it.
func (h *harness) seed(a, b common.Address, wrap bool) {
	env := h.envelope(provider)
	env.WrapUnwrap = wrap
	id, err := h.d.Deposit(context.Background(), provider, DepositParams{
		TokenA:       a,
		TokenB:       b,
		AmountA:      n(10),
		AmountB:      n(10),
		MinLiquidity: n(1),
		Envelope:     env,
	})
	require.NoError(h.t, err)
	h.advance(testDelay)
	res, err := h.d.Execute(context.Background(), id, bot)
	require.NoError(h.t, err)
	require.True(h.t, res.Success, string(res.ErrorData))
}

func (h *harness) buy(amountIn, amountOut uint64) uint64 {
	id, err := h.d.Buy(context.Background(), trader, SwapParams{
		TokenIn:   tokenA,
		TokenOut:  tokenB,
		AmountIn:  n(amountIn),
		AmountOut: n(amountOut),
		Envelope:  h.envelope(trader),
	})
	require.NoError(h.t, err)
	return id
}

func TestBuyScenario(t *testing.T) {
	h := newHarness(t)
	addr := h.livePair(tokenA, tokenB)
	h.seed(tokenA, tokenB, false)
	require.Equal(t, uint64(10), h.balance(addr, provider))

	id := h.buy(4, 1)
	require.Equal(t, uint64(1_000-4), h.balance(tokenA, trader))
	require.Equal(t, uint64(10_000_000-gasLimit), h.nativeBalance(trader))

	h.advance(testDelay)
	res, err := h.d.Execute(context.Background(), id, bot)
	require.NoError(t, err)
	require.True(t, res.Success, string(res.ErrorData))

	require.Equal(t, uint64(1_001), h.balance(tokenB, trader))
	require.Equal(t, uint64(999), h.balance(tokenA, trader))
	require.Equal(t, uint64(10_000_000-gasLimit)+res.EthRefund.Uint64(), h.nativeBalance(trader))
	require.Equal(t, id, h.d.LastProcessedOrderID())
	_, err = h.d.Order(id)
	require.ErrorIs(t, err, errs.ErrOrderNotFound)

	r0, r1, err := h.d.Reserves(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(11), r0.Uint64())
	require.Equal(t, uint64(9), r1.Uint64())
	ref0, ref1, err := h.d.References(addr)
	require.NoError(t, err)
	require.Equal(t, r0, ref0)
	require.Equal(t, r1, ref1)

	require.Len(t, h.rec.Named("OrderExecuted"), 2)
	require.Equal(t, 1.0, testutil.ToFloat64(h.d.Metrics().OrdersEnqueued.WithLabelValues("buy")))
	require.Equal(t, 1.0, testutil.ToFloat64(h.d.Metrics().OrdersExecuted.WithLabelValues("buy", "success")))
	require.Equal(t, 0.0, testutil.ToFloat64(h.d.Metrics().QueueDepth))
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)
	h.livePair(tokenA, tokenB)
	ctx := context.Background()

	valid := func() SwapParams {
		return SwapParams{
			TokenIn:   tokenA,
			TokenOut:  tokenB,
			AmountIn:  n(4),
			AmountOut: n(1),
			Envelope:  h.envelope(trader),
		}
	}
	tests := []struct {
		name   string
		mutate func(p *SwapParams)
		want   error
	}{
		{"zero recipient", func(p *SwapParams) { p.Recipient = common.Address{} }, errs.ErrAddressZero},
		{"zero amount in", func(p *SwapParams) { p.AmountIn = n(0) }, errs.ErrInvalidAmount},
		{"nil amount out", func(p *SwapParams) { p.AmountOut = nil }, errs.ErrInvalidAmount},
		{"identical tokens", func(p *SwapParams) { p.TokenOut = tokenA }, errs.ErrInvalidPair},
		{"unknown pair", func(p *SwapParams) { p.TokenOut = tokenW }, errs.ErrPairNotFound},
		{"deadline now", func(p *SwapParams) { p.Deadline = h.unix() }, errs.ErrInvalidDeadline},
		{"gas below base cost", func(p *SwapParams) { p.Gas.Limit = executor.DefaultBaseCost - 1 }, errs.ErrGasLimitTooLow},
		{"gas above cap", func(p *SwapParams) { p.Gas.Limit = 1_000_001 }, errs.ErrGasLimitTooHigh},
		{"gas prepay unaffordable", func(p *SwapParams) { p.Gas.Price = n(1_000) }, errs.ErrInsufficientFund},
		{"input unaffordable", func(p *SwapParams) { p.AmountIn = n(1_001) }, errs.ErrInsufficientFund},
		{"gas prepay overflows", func(p *SwapParams) {
			p.Gas.Price = new(uint256.Int).Div(new(uint256.Int).SetAllOne(), n(gasLimit))
			p.Gas.Price.AddUint64(p.Gas.Price, 1)
		}, errs.ErrGasPriceTooHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			_, err := h.d.Buy(ctx, trader, p)
			require.ErrorIs(t, err, tt.want)
		})
	}

	require.Zero(t, h.d.NewestOrderID())
	require.Equal(t, uint64(1_000), h.balance(tokenA, trader))
	require.Equal(t, uint64(10_000_000), h.nativeBalance(trader))
	require.Empty(t, h.rec.Named("OrderEnqueued"))
}

func TestSellAcceptsAnyOutput(t *testing.T) {
	h := newHarness(t)
	h.livePair(tokenA, tokenB)
	h.seed(tokenA, tokenB, false)

	id, err := h.d.Sell(context.Background(), trader, SwapParams{
		TokenIn:   tokenA,
		TokenOut:  tokenB,
		AmountIn:  n(2),
		AmountOut: n(0),
		Envelope:  h.envelope(trader),
	})
	require.NoError(t, err)
	h.advance(testDelay)
	res, err := h.d.Execute(context.Background(), id, bot)
	require.NoError(t, err)
	require.True(t, res.Success, string(res.ErrorData))
	require.Greater(t, h.balance(tokenB, trader), uint64(1_000))
}

func TestExecuteOrdering(t *testing.T) {
	h := newHarness(t)
	h.livePair(tokenA, tokenB)
	h.seed(tokenA, tokenB, false)
	first := h.buy(4, 1)
	second := h.buy(4, 1)
	ctx := context.Background()

	_, err := h.d.Execute(ctx, first, bot)
	require.ErrorIs(t, err, errs.ErrOrderLocked)
	h.advance(testDelay)
	_, err = h.d.Execute(ctx, second, bot)
	require.ErrorIs(t, err, errs.ErrOutOfOrder)
	require.Equal(t, first-1, h.d.LastProcessedOrderID())

	botBefore := h.nativeBalance(bot)
	for _, id := range []uint64{first, second} {
		res, err := h.d.Execute(ctx, id, bot)
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	require.Greater(t, h.nativeBalance(bot), botBefore)

	_, err = h.d.Execute(ctx, second+1, bot)
	require.ErrorIs(t, err, errs.ErrOrderNotFound)
	info := h.d.Queue()
	require.Equal(t, second, info.LastProcessed)
	require.Equal(t, second, info.Newest)
	require.Zero(t, info.Pending)
}

func TestRacingExecutors(t *testing.T) {
	h := newHarness(t)
	h.livePair(tokenA, tokenB)
	h.seed(tokenA, tokenB, false)
	id := h.buy(4, 1)
	h.advance(testDelay)

	const racers = 8
	var (
		wg   sync.WaitGroup
		errc = make(chan error, racers)
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			racer := common.BigToAddress(n(uint64(0x100 + i)).ToBig())
			_, err := h.d.Execute(context.Background(), id, racer)
			errc <- err
		}(i)
	}
	wg.Wait()
	close(errc)

	winners := 0
	for err := range errc {
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, errs.ErrOutOfOrder)
	}
	require.Equal(t, 1, winners)

	executed := 0
	for _, ev := range h.rec.Named("OrderExecuted") {
		if ev.(event.OrderExecuted).ID == id {
			executed++
		}
	}
	require.Equal(t, 1, executed)
}

func TestExecuteReady(t *testing.T) {
	h := newHarness(t)
	h.livePair(tokenA, tokenB)
	h.seed(tokenA, tokenB, false)
	ctx := context.Background()

	first := h.buy(4, 1)
	h.buy(4, 1)
	h.advance(30)
	third := h.buy(4, 1)
	h.advance(30)

	results, err := h.d.ExecuteReady(ctx, bot, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, first, results[0].ID)
	require.Equal(t, third-1, h.d.LastProcessedOrderID())

	h.advance(30)
	fourth := h.buy(4, 1)
	results, err = h.d.ExecuteReady(ctx, bot, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, third, results[0].ID)

	h.advance(testDelay)
	results, err = h.d.ExecuteReady(ctx, bot, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, fourth, results[0].ID)

	results, err = h.d.ExecuteReady(ctx, bot, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestExpiredOrderRetainedAndRetried(t *testing.T) {
	h := newHarness(t)
	h.livePair(tokenA, tokenB)
	h.seed(tokenA, tokenB, false)
	ctx := context.Background()

	p := SwapParams{
		TokenIn:   tokenA,
		TokenOut:  tokenB,
		AmountIn:  n(4),
		AmountOut: n(1),
		Envelope:  h.envelope(trader),
	}
	p.Deadline = h.unix() + 10
	id, err := h.d.Buy(ctx, trader, p)
	require.NoError(t, err)
	require.NoError(t, h.store.Update(func(tx *state.Tx) error {
		token.SetBlocked(tx, tokenA, trader, true)
		return nil
	}))

	h.advance(testDelay)
	res, err := h.d.Execute(ctx, id, bot)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, errs.ErrExpired)
	require.True(t, res.Retained)
	require.Equal(t, id, h.d.LastProcessedOrderID())
	require.Len(t, h.rec.Named("RefundFailed"), 1)

	o, err := h.d.Order(id)
	require.NoError(t, err)
	require.Equal(t, queue.RefundFailed, o.Status)
	require.Equal(t, uint64(4), o.AmountIn.Uint64())

	require.ErrorIs(t, h.d.RetryRefund(ctx, id), errs.ErrTransferBlocked)
	require.NoError(t, h.store.Update(func(tx *state.Tx) error {
		token.SetBlocked(tx, tokenA, trader, false)
		return nil
	}))
	require.NoError(t, h.d.RetryRefund(ctx, id))
	require.Equal(t, uint64(1_000), h.balance(tokenA, trader))
	_, err = h.d.Order(id)
	require.ErrorIs(t, err, errs.ErrOrderNotFound)
	require.Equal(t, 1.0, testutil.ToFloat64(h.d.Metrics().RefundFailures.WithLabelValues("token")))
}

func TestWrapAndUnwrapNative(t *testing.T) {
	h := newHarness(t)
	h.livePair(tokenA, tokenW)
	ctx := context.Background()

	nativeBefore := h.nativeBalance(provider)
	h.seed(tokenA, tokenW, true)
	require.Less(t, h.nativeBalance(provider), nativeBefore-10, "wrapped input taken as native")
	require.Equal(t, uint64(10), h.balance(tokenW, h.d.pairs.All()[0].Address()))

	env := h.envelope(trader)
	env.WrapUnwrap = true
	id, err := h.d.Buy(ctx, trader, SwapParams{
		TokenIn:   tokenA,
		TokenOut:  tokenW,
		AmountIn:  n(4),
		AmountOut: n(2),
		Envelope:  env,
	})
	require.NoError(t, err)
	before := h.nativeBalance(trader)

	h.advance(testDelay)
	res, err := h.d.Execute(ctx, id, bot)
	require.NoError(t, err)
	require.True(t, res.Success, string(res.ErrorData))
	require.Equal(t, before+res.EthRefund.Uint64()+2, h.nativeBalance(trader))
	require.Zero(t, h.balance(tokenW, trader))
}

func TestPriceFeedRefreshOnExecute(t *testing.T) {
	h := newHarness(t)
	addr := h.livePair(tokenA, tokenB)
	ctx := context.Background()

	pool := feed.NewPool(feedAddr, 18, 18, n(1))
	pool.Observe(0, wad(2))
	pool.Observe(startTime+10, wad(3))
	require.NoError(t, h.d.SetEpoch(addr, 60))
	require.NoError(t, h.d.SetPriceFeed(ctx, addr, pool))
	price, err := h.d.Price(addr)
	require.NoError(t, err)
	require.Equal(t, wad(2), price)

	h.seed(tokenA, tokenB, false)
	price, err = h.d.Price(addr)
	require.NoError(t, err)
	require.True(t, price.Gt(wad(2)) && price.Lt(wad(3)), price.Dec())

	// SetPrice, SetPriceFeed and the refresh during settlement
	require.Equal(t, 3.0, testutil.ToFloat64(h.d.Metrics().OracleUpdates.WithLabelValues("committed")))

	require.ErrorIs(t, h.d.SetPriceBounds(addr, wad(3), wad(2)), errs.ErrInvalidBounds)
	require.Equal(t, 1.0, testutil.ToFloat64(h.d.Metrics().OracleUpdates.WithLabelValues("rejected")))
}

func TestCreatePair(t *testing.T) {
	h := newHarness(t)
	addr, err := h.d.CreatePair(tokenB, tokenA, 6, 18)
	require.NoError(t, err)

	_, err = h.d.CreatePair(tokenA, tokenB, 18, 6)
	require.ErrorIs(t, err, errs.ErrPairExists)
	_, err = h.d.CreatePair(tokenA, tokenA, 18, 18)
	require.ErrorIs(t, err, errs.ErrInvalidPair)
	_, err = h.d.CreatePair(tokenA, common.Address{}, 18, 18)
	require.ErrorIs(t, err, errs.ErrInvalidPair)

	info, err := h.d.Pair(addr)
	require.NoError(t, err)
	require.Equal(t, tokenA, info.Pool.Token0)
	require.Equal(t, uint8(18), info.Pool.Decimals0)
	require.Equal(t, uint8(6), info.Pool.Decimals1)

	_, err = h.d.Price(addr)
	require.ErrorIs(t, err, errs.ErrOracleNotLive)
	_, _, err = h.d.Reserves(tokenW)
	require.ErrorIs(t, err, errs.ErrPairNotFound)

	h.livePair(tokenA, tokenW)
	pairs := h.d.Pairs()
	require.Len(t, pairs, 2)
	require.Equal(t, addr, pairs[0].Address)
}

func TestCreatePairRestoresStoredPool(t *testing.T) {
	h := newHarness(t)
	addr := h.livePair(tokenA, tokenB)
	h.seed(tokenA, tokenB, false)
	_, err := h.d.Buy(context.Background(), trader, SwapParams{
		TokenIn:   tokenA,
		TokenOut:  tokenB,
		AmountIn:  n(4),
		AmountOut: n(1),
		Envelope:  h.envelope(trader),
	})
	require.NoError(t, err)

	restarted, err := New(h.d.Config(), h.store, WithClock(h.clock))
	require.NoError(t, err)
	_, err = restarted.CreatePair(tokenA, tokenB, 18, 6)
	require.ErrorIs(t, err, errs.ErrInvalidDecimals)
	got, err := restarted.CreatePair(tokenB, tokenA, 18, 18)
	require.NoError(t, err)
	require.Equal(t, addr, got)

	r0, r1, err := restarted.Reserves(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(10), r0.Uint64())
	require.Equal(t, uint64(10), r1.Uint64())
	price, err := restarted.Price(addr)
	require.NoError(t, err)
	require.Equal(t, wad(1), price)

	h.advance(testDelay)
	res, err := restarted.Execute(context.Background(), 2, bot)
	require.NoError(t, err)
	require.True(t, res.Success, string(res.ErrorData))
}

func TestNewRejectsGasCapBelowBaseCost(t *testing.T) {
	_, err := New(Config{MaxGasLimit: 10, BaseCost: 100}, state.NewMemory())
	require.ErrorIs(t, err, errs.ErrInvalidConfig)
}
