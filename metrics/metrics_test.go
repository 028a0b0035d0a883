// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveExecution(t *testing.T) {
	m := New()
	m.ObserveExecution("buy", OutcomeSuccess, 52_000, 3*time.Millisecond)
	m.ObserveExecution("buy", OutcomeFailed, 2_000, time.Millisecond)
	m.ObserveExecution("sell", OutcomeSuccess, 47_000, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.OrdersExecuted.WithLabelValues("buy", OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.OrdersExecuted.WithLabelValues("buy", OutcomeFailed)))
	require.Equal(t, 1, testutil.CollectAndCount(m.GasSpent))
	require.Equal(t, 3, testutil.CollectAndCount(m.OrdersExecuted))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.QueueDepth.Set(4)
	require.Equal(t, 4.0, testutil.ToFloat64(a.QueueDepth))
	require.Equal(t, 0.0, testutil.ToFloat64(b.QueueDepth))
}

func TestHandler(t *testing.T) {
	m := New()
	m.OrdersEnqueued.WithLabelValues("deposit").Inc()
	m.OraclePrice.WithLabelValues("0xabc").Set(1.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `twap_queue_orders_enqueued_total{kind="deposit"} 1`)
	require.Contains(t, string(body), `twap_oracle_price{pair="0xabc"} 1.5`)
}
