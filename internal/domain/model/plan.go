package model

// PlanID identifies one of the fixed subscription tiers.
type PlanID string

const (
	PlanFree     PlanID = "free"
	PlanBasic    PlanID = "basic"
	PlanStandard PlanID = "standard"
	PlanPremium  PlanID = "premium"
)

// ScanQuota is the per-billing-period scan allowance of a plan. Unlimited is an
// explicit variant; the -1 sentinel exists only at the API boundary.
type ScanQuota struct {
	Unlimited bool
	Limit     int
}

// Remaining returns how many scans are left given a used counter, or -1 when
// the quota is unlimited (external serialization convention).
func (q ScanQuota) Remaining(used int) int {
	if q.Unlimited {
		return UnlimitedSentinel
	}
	if used >= q.Limit {
		return 0
	}
	return q.Limit - used
}

// UnlimitedSentinel is the wire value for "no cap".
const UnlimitedSentinel = -1

// SubscriptionPlan is a purchasable tier with a fixed monthly base price per
// currency and a scan quota. Plans are a closed catalog, not stored data.
type SubscriptionPlan struct {
	ID           PlanID
	Name         string
	BaseUSDCents int64 // monthly price in US cents
	BaseCDF      int64 // monthly price in Congolese francs
	Quota        ScanQuota
}

var planCatalog = map[PlanID]SubscriptionPlan{
	PlanFree:     {ID: PlanFree, Name: "Free", Quota: ScanQuota{Limit: 0}},
	PlanBasic:    {ID: PlanBasic, Name: "Basic", BaseUSDCents: 149, BaseCDF: 4200, Quota: ScanQuota{Limit: 50}},
	PlanStandard: {ID: PlanStandard, Name: "Standard", BaseUSDCents: 299, BaseCDF: 8400, Quota: ScanQuota{Limit: 150}},
	PlanPremium:  {ID: PlanPremium, Name: "Premium", BaseUSDCents: 499, BaseCDF: 14000, Quota: ScanQuota{Unlimited: true}},
}

// LookupPlan returns the catalog entry for id, or ok=false for an unknown or
// non-purchasable plan id.
func LookupPlan(id PlanID) (SubscriptionPlan, bool) {
	p, ok := planCatalog[id]
	return p, ok
}

// PaidPlan reports whether id names a purchasable tier.
func PaidPlan(id PlanID) bool {
	return id == PlanBasic || id == PlanStandard || id == PlanPremium
}

// QuotaFor returns the scan quota for a plan; unknown plans get the free quota.
func QuotaFor(id PlanID) ScanQuota {
	if p, ok := planCatalog[id]; ok {
		return p.Quota
	}
	return planCatalog[PlanFree].Quota
}

// BasePrice returns the monthly base price in minor units for the currency.
func (p SubscriptionPlan) BasePrice(currency string) int64 {
	if currency == "CDF" {
		return p.BaseCDF
	}
	return p.BaseUSDCents
}

// DiscountPercent is the fixed duration discount table.
func DiscountPercent(durationMonths int) (int, bool) {
	switch durationMonths {
	case 1:
		return 0, true
	case 3:
		return 10, true
	case 6:
		return 20, true
	case 12:
		return 30, true
	}
	return 0, false
}
