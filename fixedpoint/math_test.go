// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/twap/errs"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestSqrt(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 1},
		{4, 2},
		{8, 2},
		{9, 3},
		{100, 10},
		{101, 10},
		{1 << 62, 1 << 31},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Sqrt(u(tt.in)).Uint64(), "sqrt(%d)", tt.in)
	}

	max := new(uint256.Int).SetAllOne()
	root := Sqrt(max)
	sq := new(uint256.Int).Mul(root, root)
	require.True(t, sq.Cmp(max) <= 0)
	next := new(uint256.Int).AddUint64(root, 1)
	_, overflow := new(uint256.Int).MulOverflow(next, next)
	require.True(t, overflow)
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(u(7), u(3), u(2))
	require.NoError(t, err)
	require.Equal(t, uint64(10), got.Uint64())

	up, err := MulDivUp(u(7), u(3), u(2))
	require.NoError(t, err)
	require.Equal(t, uint64(11), up.Uint64())

	exact, err := MulDivUp(u(8), u(3), u(2))
	require.NoError(t, err)
	require.Equal(t, uint64(12), exact.Uint64())

	// 512-bit intermediate: max*max/max == max
	max := new(uint256.Int).SetAllOne()
	got, err = MulDiv(max, max, max)
	require.NoError(t, err)
	require.True(t, got.Eq(max))

	_, err = MulDiv(max, max, u(1))
	require.ErrorIs(t, err, errs.ErrOverflow)

	_, err = MulDiv(u(1), u(1), u(0))
	require.ErrorIs(t, err, errs.ErrDivisionByZero)
}

func TestPow(t *testing.T) {
	two := new(uint256.Int).Mul(u(2), WAD)

	p, err := Pow(two, 0)
	require.NoError(t, err)
	require.True(t, p.Eq(WAD))

	p, err = Pow(two, 3)
	require.NoError(t, err)
	require.True(t, p.Eq(new(uint256.Int).Mul(u(8), WAD)))

	p, err = Pow(two, -2)
	require.NoError(t, err)
	require.True(t, p.Eq(new(uint256.Int).Div(WAD, u(4))))

	_, err = Pow(new(uint256.Int), -1)
	require.ErrorIs(t, err, errs.ErrDivisionByZero)
}

func TestScale(t *testing.T) {
	s, err := Scale(u(15), 6, 18)
	require.NoError(t, err)
	require.Equal(t, "15000000000000", s.Dec())

	s, err = Scale(u(1_999_999), 6, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.Uint64())

	_, err = Sub(u(1), u(2))
	require.ErrorIs(t, err, errs.ErrUnderflow)
	require.Equal(t, uint64(1), Min(u(1), u(2)).Uint64())
}
