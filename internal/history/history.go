// Package history derives price statistics and a trend signal from the
// records matched for an item.
package history

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wonquotes/internal/freshness"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/money"
)

// Search parameters used for price history.
const (
	DefaultMonths    = 24
	maxMatches       = 50
	minConfidence    = 0.5
	daysPerMonth     = 30
	maxDataPoints    = 10
	minTrendPoints   = 3
	trendThreshold   = 0.05
	recentFreshLimit = freshness.RecentWeight
)

// Trend is the direction of recent prices relative to older ones.
type Trend string

const (
	TrendRising       Trend = "rising"
	TrendFalling      Trend = "falling"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient_data"
)

// History summarizes the matched prices for an item. Price fields are nil
// when there are no matches.
type History struct {
	Matches     int              `json:"matches"`
	MinPrice    *float64         `json:"min_price"`
	MaxPrice    *float64         `json:"max_price"`
	MedianPrice *float64         `json:"median_price"`
	AvgPrice    *float64         `json:"avg_price"`
	RecentAvg   *float64         `json:"recent_avg"`
	Trend       Trend            `json:"trend"`
	DataPoints  []matching.Match `json:"data_points"`
}

// Empty reports whether there is no usable price history.
func (h History) Empty() bool {
	return h.Matches == 0 || h.MedianPrice == nil
}

// BestFreshness returns the highest freshness weight among the data points,
// or 0 when there are none.
func (h History) BestFreshness() float64 {
	best := 0.0
	for _, dp := range h.DataPoints {
		if dp.FreshnessWeight > best {
			best = dp.FreshnessWeight
		}
	}
	return best
}

// Provider supplies price history. The pricing oracle and the win
// probability estimator depend on this rather than on the matching engine.
type Provider interface {
	PriceHistory(ctx context.Context, itemCode, description string, months int) History
}

// Null is a Provider with no history.
type Null struct{}

func (Null) PriceHistory(context.Context, string, string, int) History {
	return History{Trend: TrendInsufficient, DataPoints: []matching.Match{}}
}

// Static is a Provider that returns the same history for every item.
type Static History

func (s Static) PriceHistory(context.Context, string, string, int) History {
	return History(s)
}

// Finder is the part of the matching engine the aggregator uses.
type Finder interface {
	FindSimilar(ctx context.Context, q matching.Query, opts matching.Options) []matching.Match
}

// Aggregator computes History from matches.
type Aggregator struct {
	finder Finder
	logger *zap.Logger
}

// NewAggregator creates an aggregator over finder.
func NewAggregator(finder Finder, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{finder: finder, logger: logger}
}

// PriceHistory matches with a widened cap and a stricter confidence floor,
// restricted to months of age (default 24).
func (a *Aggregator) PriceHistory(ctx context.Context, itemCode, description string, months int) History {
	if months <= 0 {
		months = DefaultMonths
	}
	matches := a.finder.FindSimilar(ctx, matching.Query{ItemCode: itemCode, Description: description}, matching.Options{
		MaxResults:    maxMatches,
		MinConfidence: matching.Threshold(minConfidence),
		MaxAgeDays:    months * daysPerMonth,
	})
	h := Summarize(matches)
	a.logger.Debug("price history",
		zap.String("item_code", itemCode),
		zap.Int("matches", h.Matches),
		zap.String("trend", string(h.Trend)))
	return h
}

// Summarize computes statistics over matches, which must already be ranked.
func Summarize(matches []matching.Match) History {
	h := History{Trend: TrendInsufficient, DataPoints: []matching.Match{}}
	if len(matches) == 0 {
		return h
	}

	var prices, recent, older []float64
	for _, m := range matches {
		p := m.Record.UnitPrice
		if p <= 0 {
			continue
		}
		prices = append(prices, p)
		if m.FreshnessWeight >= recentFreshLimit {
			recent = append(recent, p)
		} else {
			older = append(older, p)
		}
	}

	h.DataPoints = topN(matches, maxDataPoints)
	if len(prices) == 0 {
		h.Matches = len(matches)
		return h
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	h.Matches = len(prices)
	h.MinPrice = money.Ptr(sorted[0])
	h.MaxPrice = money.Ptr(sorted[len(sorted)-1])
	h.MedianPrice = money.Ptr(median(sorted))
	h.AvgPrice = money.Ptr(mean(prices))

	if len(recent) > 0 {
		recentAvg := mean(recent)
		h.RecentAvg = money.Ptr(recentAvg)
		h.Trend = trend(recentAvg, older, len(prices))
	}
	return h
}

// trend compares the recent average with the older-group average. An empty
// older group is insufficient data even when recent prices exist.
func trend(recentAvg float64, older []float64, points int) Trend {
	if points < minTrendPoints || len(older) == 0 {
		return TrendInsufficient
	}
	olderAvg := mean(older)
	if olderAvg == 0 {
		return TrendInsufficient
	}
	change := (recentAvg - olderAvg) / olderAvg
	switch {
	case change > trendThreshold:
		return TrendRising
	case change < -trendThreshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func topN(ms []matching.Match, n int) []matching.Match {
	if len(ms) > n {
		ms = ms[:n]
	}
	return append([]matching.Match(nil), ms...)
}
