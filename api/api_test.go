// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/twap/curve"
	"github.com/luxfi/twap/delay"
	"github.com/luxfi/twap/state"
	"github.com/luxfi/twap/token"
)

var (
	tokenA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	trader = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func newTestServer(t *testing.T) (*Server, *delay.Delay, common.Address) {
	t.Helper()
	store := state.NewMemory()
	now := time.Unix(1_000_000, 0)
	d, err := delay.New(delay.Config{DelaySeconds: 60}, store, delay.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	wad := uint256.NewInt(1e18)
	addr, err := d.CreatePair(tokenA, tokenB, 18, 18)
	require.NoError(t, err)
	require.NoError(t, d.SetParameters(addr, curve.Flat(wad, wad)))
	require.NoError(t, d.SetPrice(addr, wad))

	require.NoError(t, store.Update(func(tx *state.Tx) error {
		tx.AddBalance(trader, uint256.NewInt(1_000_000))
		return token.Mint(tx, tokenA, trader, uint256.NewInt(100))
	}))
	_, err = d.Buy(context.Background(), trader, delay.SwapParams{
		TokenIn:   tokenA,
		TokenOut:  tokenB,
		AmountIn:  uint256.NewInt(4),
		AmountOut: uint256.NewInt(1),
		Envelope: delay.Envelope{
			Recipient: trader,
			Deadline:  1_003_600,
			Gas:       delay.Gas{Limit: 100_000, Price: uint256.NewInt(2)},
		},
	})
	require.NoError(t, err)

	return New(d, d.Metrics().Handler(), log.New("test", t.Name())), d, addr
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestQueueAndOrder(t *testing.T) {
	s, _, addr := newTestServer(t)

	rec := get(t, s, "/queue")
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[queueView](t, rec)
	require.Equal(t, queueView{LastProcessed: 0, Newest: 1, Pending: 1, DelaySeconds: 60}, q)

	rec = get(t, s, "/orders/1")
	require.Equal(t, http.StatusOK, rec.Code)
	o := decode[orderView](t, rec)
	require.Equal(t, "buy", o.Kind)
	require.Equal(t, "pending", o.Status)
	require.Equal(t, addr.Hex(), o.Pair)
	require.Equal(t, "4", o.AmountIn)
	require.Equal(t, "2", o.GasPrice)
	require.Equal(t, uint64(1_000_000), o.SubmittedAt)

	require.Equal(t, http.StatusNotFound, get(t, s, "/orders/2").Code)
	require.Equal(t, http.StatusNotFound, get(t, s, "/orders/abc").Code, "route does not match")
}

func TestPairs(t *testing.T) {
	s, _, addr := newTestServer(t)

	rec := get(t, s, "/pairs")
	require.Equal(t, http.StatusOK, rec.Code)
	pairs := decode[[]pairView](t, rec)
	require.Len(t, pairs, 1)
	require.Equal(t, addr.Hex(), pairs[0].Address)
	require.Equal(t, "live", pairs[0].Oracle.Status)
	require.Equal(t, "1000000000000000000", pairs[0].Oracle.Price)
	require.Empty(t, pairs[0].Oracle.Feed)

	rec = get(t, s, "/pairs/"+addr.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[pairView](t, rec)
	require.Equal(t, tokenA.Hex(), p.Token0)
	require.Equal(t, "0", p.Reserve0)

	require.Equal(t, http.StatusNotFound, get(t, s, "/pairs/"+tokenA.Hex()).Code)
	require.Equal(t, http.StatusBadRequest, get(t, s, "/pairs/nope").Code)
}

func TestStuckAndHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := get(t, s, "/stuck/"+trader.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, "0", body["amount"])

	require.Equal(t, http.StatusBadRequest, get(t, s, "/stuck/0x0000000000000000000000000000000000000000").Code)
	require.Equal(t, http.StatusOK, get(t, s, "/health").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `twap_queue_orders_enqueued_total{kind="buy"} 1`))
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/queue", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
