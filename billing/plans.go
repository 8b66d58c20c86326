package billing

import (
	"fmt"
	"sort"
)

// Plan is a recurring listing subscription offered to business owners.
type Plan struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"` // minor units
	Currency   string `json:"currency"`
	Interval   string `json:"interval"` // month, year
}

// LookupKey identifies the plan's price in the payment provider. It is stable
// across deploys so every instance resolves to the same price.
func (p Plan) LookupKey() string {
	return fmt.Sprintf("localhub_%s_%s_%d%s", p.Key, p.Interval, p.UnitAmount, p.Currency)
}

// Catalog maps plan keys to plans.
type Catalog map[string]Plan

// DefaultCatalog is the built-in listing offer.
func DefaultCatalog() Catalog {
	return Catalog{
		"basic": {
			Key:        "basic",
			Name:       "Basic listing",
			UnitAmount: 999,
			Currency:   "usd",
			Interval:   "month",
		},
		"premium": {
			Key:        "premium",
			Name:       "Premium listing",
			UnitAmount: 2999,
			Currency:   "usd",
			Interval:   "month",
		},
	}
}

func (c Catalog) Get(key string) (Plan, bool) {
	p, ok := c[key]
	return p, ok
}

// List returns the plans ordered by price.
func (c Catalog) List() []Plan {
	plans := make([]Plan, 0, len(c))
	for _, p := range c {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].UnitAmount == plans[j].UnitAmount {
			return plans[i].Key < plans[j].Key
		}
		return plans[i].UnitAmount < plans[j].UnitAmount
	})
	return plans
}
