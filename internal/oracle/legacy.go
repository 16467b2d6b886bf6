package oracle

import (
	"context"

	"github.com/fyrsmithlabs/wonquotes/internal/money"
)

// LegacyPrice returns a single bid price for callers of the pre-tier
// pricing rule. It is the oracle's recommended price when there is one,
// otherwise the reference undercut or cost plus default markup, held above
// the profit floor.
func (o *Oracle) LegacyPrice(ctx context.Context, cost float64, reference *float64, sourceType string) float64 {
	req := Request{ReferencePrice: reference, SourceType: sourceType}
	if cost > 0 {
		req.SupplierCost = &cost
	}
	rec := o.Recommend(ctx, req)
	if rec.Recommended != nil {
		return rec.Recommended.Price
	}

	rules, _ := o.rules.Rules(nil)
	var price float64
	if reference != nil && *reference > 0 {
		price = *reference * (1 - rules.UndercutPct)
	} else {
		price = cost * (1 + rules.DefaultMarkupPct)
	}
	if floor := rules.ProfitFloor(sourceType); cost > 0 && price < cost+floor {
		price = cost + floor
	}
	return money.Cents(price)
}
