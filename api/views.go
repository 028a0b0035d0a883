// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/twap/delay"
	"github.com/luxfi/twap/queue"
)

// Amounts are rendered as base-10 strings.

type queueView struct {
	LastProcessed uint64 `json:"lastProcessed"`
	Newest        uint64 `json:"newest"`
	Pending       uint64 `json:"pending"`
	DelaySeconds  uint64 `json:"delaySeconds"`
}

func newQueueView(q delay.QueueInfo) queueView {
	return queueView{
		LastProcessed: q.LastProcessed,
		Newest:        q.Newest,
		Pending:       q.Pending,
		DelaySeconds:  q.Delay,
	}
}

type orderView struct {
	ID                uint64 `json:"id"`
	Kind              string `json:"kind"`
	Status            string `json:"status"`
	Pair              string `json:"pair"`
	TokenIn           string `json:"tokenIn"`
	TokenOut          string `json:"tokenOut"`
	Submitter         string `json:"submitter"`
	Recipient         string `json:"recipient"`
	UnwrapNative      bool   `json:"unwrapNative"`
	AmountIn          string `json:"amountIn"`
	AmountOut         string `json:"amountOut"`
	Amount0           string `json:"amount0"`
	Amount1           string `json:"amount1"`
	Liquidity         string `json:"liquidity"`
	GasLimit          uint64 `json:"gasLimit"`
	GasPrice          string `json:"gasPrice"`
	SubmittedAt       uint64 `json:"submittedAt"`
	ExecutionDeadline uint64 `json:"executionDeadline"`
}

func newOrderView(o queue.Order) orderView {
	return orderView{
		ID:                o.ID,
		Kind:              o.Kind.String(),
		Status:            o.Status.String(),
		Pair:              o.Pair.Hex(),
		TokenIn:           o.TokenIn.Hex(),
		TokenOut:          o.TokenOut.Hex(),
		Submitter:         o.Submitter.Hex(),
		Recipient:         o.Recipient.Hex(),
		UnwrapNative:      o.UnwrapNative,
		AmountIn:          dec(o.AmountIn),
		AmountOut:         dec(o.AmountOut),
		Amount0:           dec(o.Amount0),
		Amount1:           dec(o.Amount1),
		Liquidity:         dec(o.Liquidity),
		GasLimit:          o.GasLimit,
		GasPrice:          dec(o.GasPrice),
		SubmittedAt:       o.SubmittedAt,
		ExecutionDeadline: o.ExecutionDeadline,
	}
}

type oracleView struct {
	Status     string `json:"status"`
	Price      string `json:"price"`
	MinPrice   string `json:"minPrice"`
	MaxPrice   string `json:"maxPrice"`
	LastUpdate uint64 `json:"lastUpdate"`
	Epoch      uint64 `json:"epoch"`
	Feed       string `json:"feed,omitempty"`
}

type pairView struct {
	Address     string     `json:"address"`
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Decimals0   uint8      `json:"decimals0"`
	Decimals1   uint8      `json:"decimals1"`
	Reserve0    string     `json:"reserve0"`
	Reserve1    string     `json:"reserve1"`
	Reference0  string     `json:"reference0"`
	Reference1  string     `json:"reference1"`
	Fee0        string     `json:"fee0"`
	Fee1        string     `json:"fee1"`
	TotalSupply string     `json:"totalSupply"`
	Oracle      oracleView `json:"oracle"`
}

func newPairView(p delay.PairInfo) pairView {
	v := pairView{
		Address:     p.Address.Hex(),
		Token0:      p.Pool.Token0.Hex(),
		Token1:      p.Pool.Token1.Hex(),
		Decimals0:   p.Pool.Decimals0,
		Decimals1:   p.Pool.Decimals1,
		Reserve0:    dec(p.Pool.Reserve0),
		Reserve1:    dec(p.Pool.Reserve1),
		Reference0:  dec(p.Pool.Reference0),
		Reference1:  dec(p.Pool.Reference1),
		Fee0:        dec(p.Pool.Fee0),
		Fee1:        dec(p.Pool.Fee1),
		TotalSupply: dec(p.Pool.TotalSupply),
		Oracle: oracleView{
			Status:     p.Oracle.Status.String(),
			Price:      dec(p.Oracle.Price),
			MinPrice:   dec(p.Oracle.MinPrice),
			MaxPrice:   dec(p.Oracle.MaxPrice),
			LastUpdate: p.Oracle.LastUpdate,
			Epoch:      p.Oracle.Epoch,
		},
	}
	if p.Oracle.Feed != (common.Address{}) {
		v.Oracle.Feed = p.Oracle.Feed.Hex()
	}
	return v
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
