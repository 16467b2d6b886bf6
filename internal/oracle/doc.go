// Package oracle turns supplier cost and price history into a three-tier
// bid recommendation.
//
// Tiers are derived from a reference price (a known price, else the recent
// average of at least three historical matches, else their median) and the
// supplier cost. Every tier is held above the profit and hard floors when
// cost is known, and the result always satisfies
//
//	aggressive.price <= recommended.price <= safe.price
//
// Missing data is not an error: with neither cost nor reference the result
// has data quality no_data, nil tiers and the no_pricing_data flag.
package oracle
