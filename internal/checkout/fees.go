package checkout

import (
	"github.com/shopspring/decimal"
)

type FeeType string

const (
	FeeFlat       FeeType = "flat"
	FeePercentage FeeType = "percentage"
)

func (t FeeType) Valid() bool { return t == FeeFlat || t == FeePercentage }

// Fee is read from the live schedule each time a total is computed, so a
// historical transaction always reflects today's fees.
type Fee struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Type   FeeType         `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type AppliedFee struct {
	Fee
	Charge int64 `json:"charge"`
}

var hundred = decimal.NewFromInt(100)

// Charge rounds half away from zero to the smallest currency unit.
func (f Fee) Charge(subtotal int64) int64 {
	switch f.Type {
	case FeeFlat:
		return f.Amount.Round(0).IntPart()
	case FeePercentage:
		return decimal.NewFromInt(subtotal).Mul(f.Amount).Div(hundred).Round(0).IntPart()
	}
	return 0
}

// ApplyFees adds every fee to subtotal independently; fees never compound.
func ApplyFees(subtotal int64, fees []Fee) ([]AppliedFee, int64) {
	out := make([]AppliedFee, 0, len(fees))
	total := subtotal
	for _, f := range fees {
		c := f.Charge(subtotal)
		out = append(out, AppliedFee{Fee: f, Charge: c})
		total += c
	}
	return out, total
}
