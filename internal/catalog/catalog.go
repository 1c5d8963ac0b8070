// Package catalog holds the purchasable credit packages and subscription
// plans. The catalog is fixed at build time; pricing is rupees-integer with
// GST computed at purchase.
package catalog

import (
	"errors"

	"github.com/sparkmatch/sparkmatch/internal/tax"
)

var (
	ErrPackageNotFound = errors.New("package_not_found")
	ErrPlanNotFound    = errors.New("plan_not_found")
)

type CreditPackage struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Credits int64  `json:"credits"`
	Bonus   int64  `json:"bonus"`
	Price   int64  `json:"price"`
	GST     int64  `json:"gst"`
	Total   int64  `json:"total"`
}

type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Tier         string `json:"tier"`
	MonthlyPrice int64  `json:"monthly_price"`
	YearlyPrice  int64  `json:"yearly_price"`
}

var creditPackages = []CreditPackage{
	{ID: "starter", Name: "Starter", Credits: 100, Bonus: 0, Price: 99},
	{ID: "plus", Name: "Plus", Credits: 500, Bonus: 50, Price: 399},
	{ID: "popular", Name: "Popular", Credits: 850, Bonus: 150, Price: 499},
	{ID: "pro", Name: "Pro", Credits: 2000, Bonus: 500, Price: 999},
}

var plans = []Plan{
	{ID: "silver", Name: "Silver", Tier: "silver", MonthlyPrice: 299, YearlyPrice: 2999},
	{ID: "gold", Name: "Gold", Tier: "gold", MonthlyPrice: 599, YearlyPrice: 5999},
	{ID: "platinum", Name: "Platinum", Tier: "platinum", MonthlyPrice: 999, YearlyPrice: 9999},
}

// Packages lists purchasable credit packages with GST precomputed for
// display alongside every payable amount.
func Packages() []CreditPackage {
	out := make([]CreditPackage, len(creditPackages))
	for i, pkg := range creditPackages {
		pkg.GST = tax.ComputeGST(pkg.Price)
		pkg.Total = pkg.Price + pkg.GST
		out[i] = pkg
	}
	return out
}

func PackageByID(id string) (CreditPackage, error) {
	for _, pkg := range creditPackages {
		if pkg.ID == id {
			pkg.GST = tax.ComputeGST(pkg.Price)
			pkg.Total = pkg.Price + pkg.GST
			return pkg, nil
		}
	}
	return CreditPackage{}, ErrPackageNotFound
}

func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func PlanByID(id string) (Plan, error) {
	for _, plan := range plans {
		if plan.ID == id {
			return plan, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

// PlanPrice resolves the payable amount for a billing cycle.
func PlanPrice(plan Plan, cycle string) int64 {
	if cycle == "yearly" {
		return plan.YearlyPrice
	}
	return plan.MonthlyPrice
}
