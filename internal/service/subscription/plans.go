package subscription

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hire-api/internal/model"
)

// Plan prices in major currency units.
type Plan struct {
	Name    string
	Monthly decimal.Decimal
	Yearly  decimal.Decimal
}

type Catalog map[string]Plan

// DefaultCatalog is the plan list offered at registration.
func DefaultCatalog() Catalog {
	return Catalog{
		"starter": {
			Name:    "starter",
			Monthly: decimal.RequireFromString("2999"),
			Yearly:  decimal.RequireFromString("29990"),
		},
		"growth": {
			Name:    "growth",
			Monthly: decimal.RequireFromString("7999"),
			Yearly:  decimal.RequireFromString("79990"),
		},
		"enterprise": {
			Name:    "enterprise",
			Monthly: decimal.RequireFromString("19999"),
			Yearly:  decimal.RequireFromString("199990"),
		},
	}
}

// Price returns the amount due for one interval of plan.
func (c Catalog) Price(plan string, interval model.BillingInterval) (decimal.Decimal, error) {
	p, ok := c[plan]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown plan %q", plan)
	}
	switch interval {
	case model.BillingMonthly:
		return p.Monthly, nil
	case model.BillingYearly:
		return p.Yearly, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown billing interval %q", interval)
	}
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
