package usecase

import (
	"strings"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
)

// PricingUseCase computes subscription quotes. Pure and deterministic: same
// inputs always produce the same quote.
type PricingUseCase interface {
	Quote(planID model.PlanID, durationMonths int, currency string) (*model.Quote, error)
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct{}

func NewPricingUseCase() PricingUseCase { return &pricingUC{} }

// Quote applies the fixed duration-discount table to the plan's monthly base
// price. Amounts are minor units, rounded half-up.
func (p *pricingUC) Quote(planID model.PlanID, durationMonths int, currency string) (*model.Quote, error) {
	plan, ok := model.LookupPlan(planID)
	if !ok || !model.PaidPlan(planID) {
		return nil, domain.ErrInvalidArgument
	}
	discount, ok := model.DiscountPercent(durationMonths)
	if !ok {
		return nil, domain.ErrInvalidArgument
	}
	cur := normalizeCurrency(currency)
	if cur == "" {
		return nil, domain.ErrInvalidArgument
	}

	base := plan.BasePrice(cur)
	gross := base * int64(durationMonths)
	total := roundedPercent(gross, 100-discount)
	monthly := divHalfUp(total, int64(durationMonths))

	return &model.Quote{
		PlanID:            planID,
		Currency:          cur,
		DurationMonths:    durationMonths,
		Total:             total,
		MonthlyEquivalent: monthly,
		Savings:           gross - total,
		DiscountPercent:   discount,
	}, nil
}

// roundedPercent returns amount*pct/100 rounded half-up.
func roundedPercent(amount int64, pct int) int64 {
	return (amount*int64(pct) + 50) / 100
}

func divHalfUp(a, b int64) int64 {
	return (a + b/2) / b
}

func normalizeCurrency(c string) string {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case "", "USD":
		return "USD"
	case "CDF":
		return "CDF"
	}
	return ""
}
