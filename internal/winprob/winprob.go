// Package winprob estimates the chance that a proposed price wins, from the
// distribution of historically winning prices for the same item.
package winprob

import (
	"context"
	"fmt"
	"math"

	"github.com/fyrsmithlabs/wonquotes/internal/freshness"
	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/money"
)

// Curve parameters.
const (
	Steepness         = 15.0
	MinProbability    = 0.05
	MaxProbability    = 0.95
	NoDataProbability = 0.5

	recentBasisMinMatches = 3
	highMinMatches        = 5
	mediumMinMatches      = 2
	aboveAlert            = 0.03
	belowAggressive       = -0.10
)

// Level grades how much history backs an estimate.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
	LevelNoData Level = "no_data"
)

// Basis names the reference price an estimate was measured against.
type Basis string

const (
	BasisRecent Basis = "recent average"
	BasisMedian Basis = "median"
)

// NoDataReasoning is the reasoning attached to estimates without history.
const NoDataReasoning = "No historical pricing data available. Recommend manual review."

// Estimate is a win probability for one proposed price.
type Estimate struct {
	Probability     float64  `json:"probability"`
	ConfidenceLevel Level    `json:"confidence_level"`
	VsMedian        *float64 `json:"vs_median"`
	VsRecent        *float64 `json:"vs_recent"`
	DataPoints      int      `json:"data_points"`
	Reasoning       string   `json:"reasoning"`
}

// Estimator looks up history and applies the win curve.
type Estimator struct {
	history history.Provider
}

// NewEstimator creates an estimator. A nil provider behaves as history.Null.
func NewEstimator(p history.Provider) *Estimator {
	if p == nil {
		p = history.Null{}
	}
	return &Estimator{history: p}
}

// Estimate fetches 24 months of history for the item and scores price.
func (e *Estimator) Estimate(ctx context.Context, price float64, itemCode, description string) Estimate {
	return FromHistory(price, e.history.PriceHistory(ctx, itemCode, description, history.DefaultMonths))
}

// Reference returns the price an estimate is measured against: the recent
// average when there are at least three matches and one exists, otherwise
// the median. ok is false when there is no usable history.
func Reference(h history.History) (ref float64, basis Basis, ok bool) {
	if h.Empty() {
		return 0, "", false
	}
	if h.Matches >= recentBasisMinMatches && h.RecentAvg != nil {
		return *h.RecentAvg, BasisRecent, true
	}
	return *h.MedianPrice, BasisMedian, true
}

// Probability applies the clamped logistic curve to the relative deviation
// of price from ref.
func Probability(price, ref float64) float64 {
	d := (price - ref) / ref
	p := 1 / (1 + math.Exp(Steepness*d))
	return math.Max(MinProbability, math.Min(MaxProbability, p))
}

// FromHistory scores price against an already fetched history.
func FromHistory(price float64, h history.History) Estimate {
	ref, basis, ok := Reference(h)
	if !ok || ref <= 0 {
		return Estimate{
			Probability:     NoDataProbability,
			ConfidenceLevel: LevelNoData,
			Reasoning:       NoDataReasoning,
		}
	}

	d := (price - ref) / ref
	est := Estimate{
		Probability:     money.Round(Probability(price, ref), 3),
		ConfidenceLevel: level(h),
		DataPoints:      h.Matches,
		Reasoning:       reasoning(price, ref, d, basis, h.Matches),
	}
	if median := *h.MedianPrice; median > 0 {
		est.VsMedian = money.RoundPtr(pct(price, median), 1)
	}
	recent := *h.MedianPrice
	if h.RecentAvg != nil {
		recent = *h.RecentAvg
	}
	if recent > 0 {
		est.VsRecent = money.RoundPtr(pct(price, recent), 1)
	}
	return est
}

func pct(price, ref float64) float64 {
	return (price - ref) / ref * 100
}

func level(h history.History) Level {
	switch {
	case h.Matches >= highMinMatches && h.BestFreshness() >= freshness.RecentWeight:
		return LevelHigh
	case h.Matches >= mediumMinMatches:
		return LevelMedium
	default:
		return LevelLow
	}
}

func reasoning(price, ref, d float64, basis Basis, matches int) string {
	direction := "above"
	if d < 0 {
		direction = "below"
	}
	s := fmt.Sprintf("Proposed %s is %.1f%% %s the %s of %s (based on %d historical data points). ",
		money.Format(price), math.Abs(d)*100, direction, basis, money.Format(ref), matches)
	switch {
	case d > aboveAlert:
		return s + "Price is >3% above recent wins, consider adjusting down."
	case d < belowAggressive:
		return s + "Price is aggressive, high win probability but thin margins."
	default:
		return s + "Price is competitive and well-positioned."
	}
}
