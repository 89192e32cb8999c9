package model

// Quote is the result of the pricing calculator. All amounts are in minor
// units of the requested currency.
type Quote struct {
	PlanID            PlanID
	Currency          string
	DurationMonths    int
	Total             int64
	MonthlyEquivalent int64
	Savings           int64
	DiscountPercent   int
}
