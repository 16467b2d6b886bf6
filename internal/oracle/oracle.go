package oracle

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wonquotes/internal/freshness"
	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/money"
	"github.com/fyrsmithlabs/wonquotes/internal/winprob"
)

const instrumentationName = "github.com/fyrsmithlabs/wonquotes/internal/oracle"

// Tier adjustments that are not configurable.
const (
	aggressiveOfRecommended = 0.92
	safeOverReference       = 0.98
	safeOverRecommended     = 1.08
	safeCapOfReference      = 0.99
	orderingSafeNudge       = 1.02
	orderingAggressiveNudge = 0.97
	thinMarginRatio         = 0.85
	minHistoryMatches       = 3
	staleFreshness          = freshness.AgingWeight
)

// Oracle prices line items.
type Oracle struct {
	history history.Provider
	rules   RulesSource
	stats   StatsSource
	logger  *zap.Logger
	meter   metric.MeterProvider
	metrics *metrics
	now     func() time.Time
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithRules sets the rules source. The default is DefaultRules with per-call
// overrides.
func WithRules(r RulesSource) Option {
	return func(o *Oracle) {
		if r != nil {
			o.rules = r
		}
	}
}

// WithStats sets the collection statistics used by HealthCheck.
func WithStats(s StatsSource) Option {
	return func(o *Oracle) { o.stats = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeterProvider sets the meter provider. The default is the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Oracle) {
		if mp != nil {
			o.meter = mp
		}
	}
}

// WithClock overrides the clock used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an oracle over a history provider. A nil provider behaves as
// history.Null.
func New(p history.Provider, opts ...Option) *Oracle {
	if p == nil {
		p = history.Null{}
	}
	o := &Oracle{
		history: p,
		rules:   StaticRules(DefaultRules()),
		logger:  zap.NewNop(),
		meter:   otel.GetMeterProvider(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.metrics = newMetrics(o.meter, o.logger)
	return o
}

// Recommend prices a single line item.
func (o *Oracle) Recommend(ctx context.Context, req Request) Recommendation {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "oracle.Recommend")
	defer span.End()

	rules, _ := o.rules.Rules(req.Overrides)
	h := o.history.PriceHistory(ctx, req.ItemCode, req.Description, history.DefaultMonths)
	rec := recommend(req, rules, h, o.now())

	span.SetAttributes(
		attribute.String("oracle.data_quality", string(rec.DataQuality)),
		attribute.Int("oracle.history_matches", h.Matches),
		attribute.Int("oracle.flags", len(rec.Flags)),
	)
	o.metrics.record(ctx, rec)

	fields := []zap.Field{
		zap.String("item_code", req.ItemCode),
		zap.String("agency", req.Agency),
		zap.String("data_quality", string(rec.DataQuality)),
		zap.Int("history_matches", h.Matches),
		zap.Any("flags", rec.Flags),
	}
	if rec.Recommended != nil {
		fields = append(fields,
			zap.Float64("recommended", rec.Recommended.Price),
			zap.String("margin", rec.Recommended.MarginPctDisplay))
	}
	o.logger.Info("priced line item", fields...)
	return rec
}

// recommend is the pure pricing calculation.
func recommend(req Request, rules Rules, h history.History, now time.Time) Recommendation {
	rec := Recommendation{
		Flags:   []Flag{},
		Reasons: []Reason{},
		History: snapshot(h),
	}
	reason := func(kind ReasonKind, format string, args ...any) {
		rec.Reasons = append(rec.Reasons, Reason{Kind: kind, Text: fmt.Sprintf(format, args...)})
	}

	var ref float64
	hasRef := false
	switch {
	case req.ReferencePrice != nil && *req.ReferencePrice > 0:
		ref, hasRef = *req.ReferencePrice, true
		reason(ReasonReference, "Direct reference price: %s", money.Format(ref))
	default:
		if r, basis, ok := winprob.Reference(h); ok && r > 0 {
			ref, hasRef = r, true
			reason(ReasonReference, "Historical %s: %s (%d data points)", basis, money.Format(ref), h.Matches)
		}
	}

	var cost float64
	hasCost := req.SupplierCost != nil && *req.SupplierCost > 0
	if hasCost {
		cost = *req.SupplierCost
	}

	switch {
	case hasRef && hasCost:
		rec.DataQuality = QualityFull
	case hasRef:
		rec.DataQuality = QualityHistoryOnly
	case hasCost:
		rec.DataQuality = QualityCostOnly
	default:
		rec.DataQuality = QualityNoData
		rec.Flags = append(rec.Flags, FlagNoPricingData)
		reason(ReasonNoData, "No price history or supplier cost available. Manual pricing required.")
		rec.Reasoning = joinReasons(rec.Reasons)
		return rec
	}

	w := rules.Weights
	var base float64
	switch rec.DataQuality {
	case QualityFull:
		base = ref*w.Historical +
			cost*(1+rules.DefaultMarkupPct)*w.SupplierCost +
			cost*(1+rules.SafeMarkupPct)*w.MarginGoals
		reason(ReasonBasis, "Weighted blend: history(%.0f%%) + cost+markup(%.0f%%) + margin goal(%.0f%%)",
			w.Historical*100, w.SupplierCost*100, w.MarginGoals*100)
	case QualityHistoryOnly:
		base = ref
		reason(ReasonBasis, "Pricing based on historical data only")
	case QualityCostOnly:
		base = cost * (1 + rules.DefaultMarkupPct)
		reason(ReasonBasis, "Pricing based on cost + %.0f%% markup (no historical data)", rules.DefaultMarkupPct*100)
	}

	profitFloor := rules.ProfitFloor(req.SourceType)
	hardFloor := cost + rules.HardFloorMargin

	recommended := base
	if hasRef {
		recommended = ref * (1 - rules.UndercutPct)
	}
	if hasCost && recommended < cost+profitFloor {
		recommended = cost + profitFloor
		rec.Flags = append(rec.Flags, FlagProfitFloorRecommended)
	}
	if hasCost && recommended < hardFloor {
		recommended = hardFloor
		rec.Flags = append(rec.Flags, FlagHardFloorRecommended)
	}

	aggressive := recommended * aggressiveOfRecommended
	if hasRef {
		aggressive = ref * (1 - rules.AggressiveUndercutPct)
	}
	if hasCost && aggressive < cost+rules.ProfitFloorAggressive {
		aggressive = cost + rules.ProfitFloorAggressive
		rec.Flags = append(rec.Flags, FlagProfitFloorAggressive)
	}
	if hasCost && aggressive < hardFloor {
		aggressive = hardFloor
		rec.Flags = append(rec.Flags, FlagHardFloorAggressive)
	}

	var safe float64
	switch {
	case hasCost:
		safe = cost * (1 + rules.SafeMarkupPct)
	case hasRef:
		safe = ref * safeOverReference
	default:
		safe = recommended * safeOverRecommended
	}
	if hasCost && safe < cost+profitFloor {
		safe = cost + profitFloor
	}
	if hasRef && safe > ref {
		safe = ref * safeCapOfReference
		rec.Flags = append(rec.Flags, FlagSafeCapped)
	}

	if safe < recommended {
		safe = recommended * orderingSafeNudge
	}
	if aggressive > recommended {
		aggressive = recommended * orderingAggressiveNudge
		if hasCost && aggressive < hardFloor {
			aggressive = hardFloor
		}
	}

	margin := func(price float64) float64 {
		if !hasCost {
			return 0
		}
		return (price - cost) / cost
	}
	// Floor-bound prices round up so sub-cent costs never leave a tier under
	// its floor.
	var recFloor, aggFloor, safeFloor float64
	if hasCost {
		recFloor = math.Max(cost+profitFloor, hardFloor)
		aggFloor = math.Max(cost+rules.ProfitFloorAggressive, hardFloor)
		safeFloor = cost + profitFloor
	}
	recommended = money.CentsAtLeast(recommended, recFloor)
	aggressive = money.CentsAtLeast(aggressive, aggFloor)
	safe = money.CentsAtLeast(safe, safeFloor)
	if safe < recommended {
		safe = recommended
	}
	if aggressive > recommended {
		aggressive = recommended
	}
	rec.Recommended = newTier(LabelRecommended, recommended, margin(recommended), winprob.FromHistory(recommended, h).Probability)
	rec.Aggressive = newTier(LabelAggressive, aggressive, margin(aggressive), winprob.FromHistory(aggressive, h).Probability)
	rec.Safe = newTier(LabelSafe, safe, margin(safe), winprob.FromHistory(safe, h).Probability)

	if hasRef && recommended > ref*(1+rules.CeilingAlertPct) {
		rec.Flags = append(rec.Flags, FlagAboveRecentWins)
	}
	switch h.Trend {
	case history.TrendRising:
		rec.Flags = append(rec.Flags, FlagTrendingUp)
		reason(ReasonTrend, "Historical prices trending upward, room for higher bids")
	case history.TrendFalling:
		rec.Flags = append(rec.Flags, FlagTrendingDown)
		reason(ReasonTrend, "Historical prices trending downward, bid conservatively")
	}
	if h.Matches > 0 && h.Matches < minHistoryMatches {
		rec.Flags = append(rec.Flags, FlagLimitedHistory)
	}
	if stale(h, rules.StaleDataMonths, now) {
		rec.Flags = append(rec.Flags, FlagStaleHistory)
		reason(ReasonStale, "Historical data is stale, verify pricing")
	}
	if hasCost && hasRef && cost/ref >= thinMarginRatio {
		rec.Flags = append(rec.Flags, FlagThinMargin)
		reason(ReasonThinMargin, "Supplier cost is %.0f%% of reference price, thin margins", cost/ref*100)
	}

	rec.Reasoning = joinReasons(rec.Reasons)
	return rec
}

// stale reports whether the best data point is low freshness or the newest
// dated data point is older than months.
func stale(h history.History, months int, now time.Time) bool {
	if len(h.DataPoints) == 0 {
		return false
	}
	if h.BestFreshness() < staleFreshness {
		return true
	}
	if months <= 0 {
		return false
	}
	var newest time.Time
	for _, dp := range h.DataPoints {
		if t, ok := freshness.ParseDate(dp.Record.AwardDate); ok && t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		return false
	}
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)
	return newest.Before(cutoff)
}
