package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alkuinvito/kasirin/internal/checkout"
)

type FeeInput struct {
	Name   string           `json:"name"`
	Type   checkout.FeeType `json:"type"`
	Amount decimal.Decimal  `json:"amount"`
}

var maxPercentage = decimal.NewFromInt(100)

func (s *Store) ListFees(ctx context.Context) ([]checkout.Fee, error) {
	var out []checkout.Fee
	err := s.DB.WithContext(ctx).Order("name").Order("id").Find(&out).Error
	return out, err
}

func (s *Store) CreateFee(ctx context.Context, in FeeInput) (*checkout.Fee, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, invalid("name is required")
	case !in.Type.Valid():
		return nil, invalid("type must be flat or percentage")
	case in.Amount.IsNegative():
		return nil, invalid("amount must not be negative")
	case in.Type == checkout.FeePercentage && in.Amount.GreaterThan(maxPercentage):
		return nil, invalid("percentage must not exceed 100")
	case in.Amount.Exponent() < -2:
		return nil, invalid("amount has at most two decimal places")
	}
	f := &checkout.Fee{ID: uuid.NewString(), Name: name, Type: in.Type, Amount: in.Amount}
	if err := s.DB.WithContext(ctx).Create(f).Error; err != nil {
		return nil, translate(err, "fee")
	}
	return f, nil
}

func (s *Store) DeleteFee(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("%w: fee", ErrNotFound)
	}
	return notFoundIfNone(s.DB.WithContext(ctx).Delete(&checkout.Fee{}, "id = ?", id), "fee")
}
