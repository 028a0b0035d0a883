// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package curve

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/luxfi/twap/errs"
	"github.com/luxfi/twap/fixedpoint"
)

// fileFormat is the on-disk layout: ordered parallel arrays of decimal
// literals, equal length per side.
type fileFormat struct {
	BidExponents []json.Number `json:"bidExponents"`
	BidQs        []json.Number `json:"bidQs"`
	AskExponents []json.Number `json:"askExponents"`
	AskQs        []json.Number `json:"askQs"`
}

type fileOutput struct {
	BidExponents []string `json:"bidExponents"`
	BidQs        []string `json:"bidQs"`
	AskExponents []string `json:"askExponents"`
	AskQs        []string `json:"askQs"`
}

// LoadFile reads a curve parameter file.
func LoadFile(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", errs.ErrInvalidCurve, err)
	}
	defer f.Close()
	return LoadJSON(f)
}

// LoadJSON parses the parallel-array format and validates the result.
func LoadJSON(r io.Reader) (Params, error) {
	var ff fileFormat
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ff); err != nil {
		return Params{}, fmt.Errorf("%w: %v", errs.ErrInvalidCurve, err)
	}

	bid, err := zipPoints(Bid, ff.BidExponents, ff.BidQs)
	if err != nil {
		return Params{}, err
	}
	ask, err := zipPoints(Ask, ff.AskExponents, ff.AskQs)
	if err != nil {
		return Params{}, err
	}
	params := Params{Bid: bid, Ask: ask}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

func zipPoints(side Side, exponents, qs []json.Number) ([]Point, error) {
	if len(exponents) != len(qs) {
		return nil, fmt.Errorf("%w: %s has %d exponents and %d coefficients",
			errs.ErrInvalidCurve, side, len(exponents), len(qs))
	}
	points := make([]Point, len(exponents))
	for i := range exponents {
		e, err := strconv.Atoi(exponents[i].String())
		if err != nil {
			return nil, fmt.Errorf("%w: %s exponent %q", errs.ErrInvalidCurve, side, exponents[i])
		}
		c, negative, err := ParseWad(qs[i].String())
		if err != nil {
			return nil, fmt.Errorf("%w: %s coefficient %q: %v", errs.ErrInvalidCurve, side, qs[i], err)
		}
		points[i] = Point{Exponent: e, Coefficient: c, Negative: negative}
	}
	return points, nil
}

// ParseWad converts a decimal literal to its WAD magnitude and sign. More
// than 18 significant fractional digits is an error.
func ParseWad(s string) (*uint256.Int, bool, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, false, err
	}
	negative := d.Sign() < 0
	scaled := d.Abs().Shift(fixedpoint.WADDecimals)
	if !scaled.IsInteger() {
		return nil, false, fmt.Errorf("more than %d fractional digits", fixedpoint.WADDecimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, false, errs.ErrOverflow
	}
	return v, negative, nil
}

// FormatWad renders a WAD magnitude as a minimal decimal literal.
func FormatWad(v *uint256.Int, negative bool) string {
	d := decimal.NewFromBigInt(v.ToBig(), -fixedpoint.WADDecimals)
	if negative && !v.IsZero() {
		d = d.Neg()
	}
	return d.String()
}

// MarshalJSON writes the parallel-array format.
func (p Params) MarshalJSON() ([]byte, error) {
	var out fileOutput
	out.BidExponents, out.BidQs = unzipPoints(p.Bid)
	out.AskExponents, out.AskQs = unzipPoints(p.Ask)
	return json.Marshal(out)
}

// UnmarshalJSON reads the parallel-array format.
func (p *Params) UnmarshalJSON(data []byte) error {
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidCurve, err)
	}
	bid, err := zipPoints(Bid, ff.BidExponents, ff.BidQs)
	if err != nil {
		return err
	}
	ask, err := zipPoints(Ask, ff.AskExponents, ff.AskQs)
	if err != nil {
		return err
	}
	*p = Params{Bid: bid, Ask: ask}
	return nil
}

func unzipPoints(points []Point) ([]string, []string) {
	exponents := make([]string, len(points))
	qs := make([]string, len(points))
	for i, pt := range points {
		exponents[i] = strconv.Itoa(pt.Exponent)
		qs[i] = FormatWad(pt.Coefficient, pt.Negative)
	}
	return exponents, qs
}
