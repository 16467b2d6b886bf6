package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func newOracle(p history.Provider, opts ...Option) *Oracle {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(p, opts...)
}

func dataPoint(weight float64, date string) matching.Match {
	return matching.Match{
		Record:          quotes.PriceRecord{AwardDate: date, UnitPrice: 100},
		Confidence:      1,
		FreshnessWeight: weight,
	}
}

func staticHistory(matches int, median, recent float64, trend history.Trend, points ...matching.Match) history.Static {
	return history.Static{
		Matches:     matches,
		MedianPrice: f(median),
		MinPrice:    f(median),
		MaxPrice:    f(median),
		AvgPrice:    f(median),
		RecentAvg:   f(recent),
		Trend:       trend,
		DataPoints:  points,
	}
}

func assertOrdered(t *testing.T, rec Recommendation) {
	t.Helper()
	require.NotNil(t, rec.Recommended)
	require.NotNil(t, rec.Aggressive)
	require.NotNil(t, rec.Safe)
	assert.LessOrEqual(t, rec.Aggressive.Price, rec.Recommended.Price, "aggressive above recommended")
	assert.LessOrEqual(t, rec.Recommended.Price, rec.Safe.Price, "recommended above safe")
}

func TestRecommend_NoData(t *testing.T) {
	o := newOracle(history.Null{})
	rec := o.Recommend(context.Background(), Request{ItemCode: "Z-999", Description: "Unknown Widget"})

	assert.Equal(t, QualityNoData, rec.DataQuality)
	assert.Nil(t, rec.Recommended)
	assert.Nil(t, rec.Aggressive)
	assert.Nil(t, rec.Safe)
	assert.Equal(t, []Flag{FlagNoPricingData}, rec.Flags)
	assert.Equal(t, "No price history or supplier cost available. Manual pricing required.", rec.Reasoning)
	assert.False(t, rec.Priced())
}

func TestRecommend_FullData(t *testing.T) {
	o := newOracle(history.Null{})
	rec := o.Recommend(context.Background(), Request{
		ItemCode:       "X-100",
		Description:    "Restraint Kit",
		SupplierCost:   f(800),
		ReferencePrice: f(1245),
		SourceType:     SourceGeneral,
		Quantity:       1,
	})

	assert.Equal(t, QualityFull, rec.DataQuality)
	assertOrdered(t, rec)
	assert.Greater(t, rec.Recommended.Price, 800.0)
	assert.Less(t, rec.Recommended.Price, 1245.0)

	assert.Equal(t, 1232.55, rec.Recommended.Price)
	assert.Equal(t, 0.541, rec.Recommended.MarginPct)
	assert.Equal(t, "54.1%", rec.Recommended.MarginPctDisplay)
	assert.Equal(t, 0.5, rec.Recommended.WinProbability)
	assert.Equal(t, "50%", rec.Recommended.WinProbabilityDisplay)
	assert.Equal(t, LabelRecommended, rec.Recommended.Label)

	assert.Equal(t, 1207.65, rec.Aggressive.Price)
	assert.Equal(t, 1257.2, rec.Safe.Price)
	assert.Empty(t, rec.Flags)
	assert.Equal(t,
		"Direct reference price: $1245.00 | Weighted blend: history(60%) + cost+markup(30%) + margin goal(10%)",
		rec.Reasoning)
	assert.Len(t, rec.Reasons, 2)
	assert.Equal(t, ReasonReference, rec.Reasons[0].Kind)
}

func TestRecommend_CostOnly(t *testing.T) {
	o := newOracle(nil)
	rec := o.Recommend(context.Background(), Request{SupplierCost: f(100)})

	assert.Equal(t, QualityCostOnly, rec.DataQuality)
	assertOrdered(t, rec)
	assert.Equal(t, 200.0, rec.Recommended.Price)
	assert.Equal(t, 184.0, rec.Aggressive.Price)
	assert.Equal(t, 200.0, rec.Safe.Price)
	assert.Equal(t, []Flag{FlagProfitFloorRecommended}, rec.Flags)
	assert.Contains(t, rec.Reasoning, "Pricing based on cost + 25% markup (no historical data)")
}

func TestRecommend_MarketplaceFloor(t *testing.T) {
	for _, source := range []string{SourceMarketplace, "amazon", "Amazon"} {
		t.Run(source, func(t *testing.T) {
			rec := newOracle(nil).Recommend(context.Background(), Request{SupplierCost: f(100), SourceType: source})
			assertOrdered(t, rec)
			assert.Equal(t, 150.0, rec.Recommended.Price)
			assert.Equal(t, 150.0, rec.Aggressive.Price)
			assert.True(t, rec.HasFlag(FlagProfitFloorRecommended))
			assert.True(t, rec.HasFlag(FlagProfitFloorAggressive))
		})
	}
}

func TestRecommend_HistoryOnly(t *testing.T) {
	h := staticHistory(5, 100, 110, history.TrendStable, dataPoint(1.0, "2025-05-01"))
	rec := newOracle(h).Recommend(context.Background(), Request{ItemCode: "X-1"})

	assert.Equal(t, QualityHistoryOnly, rec.DataQuality)
	assertOrdered(t, rec)
	assert.Equal(t, 108.9, rec.Recommended.Price)
	assert.Equal(t, 106.7, rec.Aggressive.Price)
	assert.Equal(t, 111.08, rec.Safe.Price)
	assert.Zero(t, rec.Recommended.MarginPct)
	assert.Greater(t, rec.Aggressive.WinProbability, rec.Recommended.WinProbability)
	assert.Greater(t, rec.Recommended.WinProbability, rec.Safe.WinProbability)
	assert.Equal(t, "Historical recent average: $110.00 (5 data points) | Pricing based on historical data only", rec.Reasoning)
	assert.Equal(t, 5, rec.History.Matches)
	assert.Equal(t, 110.0, *rec.History.RecentAvg)
}

func TestRecommend_FloorRespectAndOrdering(t *testing.T) {
	tests := []struct {
		name string
		cost float64
		ref  *float64
		src  string
	}{
		{"cheap cost high reference", 10, f(1000), SourceGeneral},
		{"cost equals reference", 1000, f(1000), SourceGeneral},
		{"cost above reference", 1500, f(1000), SourceGeneral},
		{"marketplace cost above reference", 1500, f(1000), SourceMarketplace},
		{"cost only", 40, nil, SourceGeneral},
		{"tiny cost", 0.5, nil, SourceMarketplace},
		{"reference just above cost", 990, f(1000), SourceMarketplace},
	}
	hardFloor := DefaultRules().HardFloorMargin
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newOracle(nil).Recommend(context.Background(), Request{
				SupplierCost: f(tt.cost), ReferencePrice: tt.ref, SourceType: tt.src,
			})
			assertOrdered(t, rec)
			for _, tier := range []*Tier{rec.Aggressive, rec.Recommended, rec.Safe} {
				assert.GreaterOrEqual(t, tier.Price, tt.cost+hardFloor, tier.Label)
			}
		})
	}
}

func TestRecommend_SubCentCostStaysAboveFloors(t *testing.T) {
	o := newOracle(nil)
	rules := DefaultRules()

	rec := o.Recommend(context.Background(), Request{SupplierCost: f(10.004)})
	assert.Equal(t, 110.01, rec.Recommended.Price)
	assert.Equal(t, 110.01, rec.Safe.Price)

	for i := 0; i < 1000; i++ {
		cost := 10 + float64(i)*0.0137
		for _, ref := range []*float64{nil, f(cost * 1.1), f(cost * 3)} {
			rec := o.Recommend(context.Background(), Request{SupplierCost: f(cost), ReferencePrice: ref})
			assertOrdered(t, rec)
			require.GreaterOrEqual(t, rec.Recommended.Price, cost+rules.ProfitFloorGeneral, "cost %v", cost)
			require.GreaterOrEqual(t, rec.Aggressive.Price, cost+rules.HardFloorMargin, "cost %v", cost)
		}
	}
}

func TestRecommend_SafeCappedAndThinMargin(t *testing.T) {
	rec := newOracle(nil).Recommend(context.Background(), Request{SupplierCost: f(1000), ReferencePrice: f(1000)})

	assertOrdered(t, rec)
	assert.Equal(t, 1100.0, rec.Recommended.Price)
	assert.Equal(t, 1050.0, rec.Aggressive.Price)
	assert.Equal(t, 1122.0, rec.Safe.Price)
	assert.True(t, rec.HasFlag(FlagProfitFloorRecommended))
	assert.True(t, rec.HasFlag(FlagProfitFloorAggressive))
	assert.True(t, rec.HasFlag(FlagSafeCapped))
	assert.True(t, rec.HasFlag(FlagThinMargin))
	assert.Contains(t, rec.Reasoning, "Supplier cost is 100% of reference price, thin margins")
}

func TestRecommend_AboveRecentWins(t *testing.T) {
	rec := newOracle(nil).Recommend(context.Background(), Request{SupplierCost: f(500), ReferencePrice: f(400)})
	assertOrdered(t, rec)
	assert.Equal(t, 600.0, rec.Recommended.Price)
	assert.True(t, rec.HasFlag(FlagAboveRecentWins))
}

func TestRecommend_OrderingNudgesAggressive(t *testing.T) {
	o := newOracle(nil)

	rec := o.Recommend(context.Background(), Request{
		SupplierCost: f(100),
		Overrides:    map[string]any{"profit_floor_aggressive": 200},
	})
	assertOrdered(t, rec)
	assert.Equal(t, 200.0, rec.Recommended.Price)
	assert.Equal(t, 194.0, rec.Aggressive.Price)

	rec = o.Recommend(context.Background(), Request{
		SupplierCost: f(100),
		Overrides:    map[string]any{"profit_floor_general": 0},
	})
	assertOrdered(t, rec)
	assert.Equal(t, 125.0, rec.Recommended.Price)
	assert.Equal(t, 125.0, rec.Aggressive.Price, "nudged aggressive is held at the hard floor")
}

func TestRecommend_HistoryFlags(t *testing.T) {
	tests := []struct {
		name    string
		h       history.Static
		want    []Flag
		notWant []Flag
	}{
		{
			name:    "rising",
			h:       staticHistory(6, 100, 130, history.TrendRising, dataPoint(1.0, "2025-05-01")),
			want:    []Flag{FlagTrendingUp},
			notWant: []Flag{FlagLimitedHistory, FlagStaleHistory},
		},
		{
			name: "falling",
			h:    staticHistory(6, 100, 80, history.TrendFalling, dataPoint(1.0, "2025-05-01")),
			want: []Flag{FlagTrendingDown},
		},
		{
			name: "limited",
			h:    staticHistory(2, 100, 100, history.TrendInsufficient, dataPoint(1.0, "2025-05-01")),
			want: []Flag{FlagLimitedHistory},
		},
		{
			name: "stale by freshness",
			h:    staticHistory(3, 100, 100, history.TrendInsufficient, dataPoint(0.2, "")),
			want: []Flag{FlagStaleHistory},
		},
		{
			name: "stale by age",
			h:    staticHistory(3, 100, 100, history.TrendInsufficient, dataPoint(0.5, "2023-09-01")),
			want: []Flag{FlagStaleHistory},
		},
		{
			name:    "aging but within threshold",
			h:       staticHistory(3, 100, 100, history.TrendInsufficient, dataPoint(0.5, "2024-04-01")),
			notWant: []Flag{FlagStaleHistory},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newOracle(tt.h).Recommend(context.Background(), Request{ItemCode: "X-1", SupplierCost: f(50)})
			assertOrdered(t, rec)
			for _, fl := range tt.want {
				assert.True(t, rec.HasFlag(fl), "missing %s in %v", fl, rec.Flags)
			}
			for _, fl := range tt.notWant {
				assert.False(t, rec.HasFlag(fl), "unexpected %s", fl)
			}
		})
	}
}

func TestRecommend_StaleMonthsOverride(t *testing.T) {
	h := staticHistory(3, 100, 100, history.TrendInsufficient, dataPoint(0.5, "2024-04-01"))
	rec := newOracle(h).Recommend(context.Background(), Request{
		ItemCode:  "X-1",
		Overrides: map[string]any{"stale_data_months": 12},
	})
	assert.True(t, rec.HasFlag(FlagStaleHistory))
	assert.Contains(t, rec.Reasoning, "Historical data is stale")
}

func TestRecommend_WithStoreHistory(t *testing.T) {
	s := quotes.NewStore(quotes.NewMemoryBackend(), quotes.Options{})
	_, err := s.Ingest(context.Background(), quotes.RecordInput{
		OrderNumber: "P1",
		ItemCode:    "X-100",
		Description: "Restraint Kit",
		UnitPrice:   quotes.Float(1245),
		AwardDate:   "2025-05-01",
	})
	require.NoError(t, err)
	engine := matching.NewEngine(s, matching.WithClock(func() time.Time { return now }))

	rec := newOracle(history.NewAggregator(engine, nil)).Recommend(context.Background(), Request{
		ItemCode:     "X-100",
		Description:  "anything",
		SupplierCost: f(800),
	})

	assert.Equal(t, QualityFull, rec.DataQuality)
	assertOrdered(t, rec)
	assert.Equal(t, 1232.55, rec.Recommended.Price)
	assert.Equal(t, 0.537, rec.Recommended.WinProbability)
	assert.True(t, rec.HasFlag(FlagLimitedHistory))
	assert.Equal(t, "Historical median: $1245.00 (1 data points)", rec.Reasons[0].Text)
}

func TestRecommend_LogsAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	o := newOracle(nil, WithLogger(zap.New(core)), WithMeterProvider(mp))
	o.Recommend(context.Background(), Request{SupplierCost: f(100)})
	o.Recommend(context.Background(), Request{})

	assert.Equal(t, 2, logs.FilterMessage("priced line item").Len())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), counts["wonquotes.oracle.recommendations_total"])
	assert.Equal(t, int64(2), counts["wonquotes.oracle.flags_total"])
}
