package oracle

import (
	"strings"

	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/money"
)

// Source types that select the marketplace profit floor.
const (
	SourceGeneral     = "general"
	SourceMarketplace = "marketplace"
	sourceAmazon      = "amazon"
)

// IsMarketplace reports whether sourceType names a marketplace supplier.
func IsMarketplace(sourceType string) bool {
	s := strings.ToLower(strings.TrimSpace(sourceType))
	return s == SourceMarketplace || s == sourceAmazon
}

// DataQuality classifies the inputs a recommendation was built from.
type DataQuality string

const (
	QualityFull        DataQuality = "full"
	QualityHistoryOnly DataQuality = "scprs_only"
	QualityCostOnly    DataQuality = "cost_only"
	QualityNoData      DataQuality = "no_data"
)

// Flag is an advisory raised while pricing.
type Flag string

const (
	FlagNoPricingData          Flag = "no_pricing_data"
	FlagProfitFloorRecommended Flag = "profit_floor_applied_recommended"
	FlagHardFloorRecommended   Flag = "hard_floor_applied_recommended"
	FlagProfitFloorAggressive  Flag = "profit_floor_applied_aggressive"
	FlagHardFloorAggressive    Flag = "hard_floor_applied_aggressive"
	FlagSafeCapped             Flag = "safe_capped_at_reference"
	FlagAboveRecentWins        Flag = "price_above_recent_wins"
	FlagTrendingUp             Flag = "prices_trending_up"
	FlagTrendingDown           Flag = "prices_trending_down"
	FlagLimitedHistory         Flag = "limited_history_data"
	FlagStaleHistory           Flag = "stale_history_data"
	FlagThinMargin             Flag = "thin_margin_opportunity"
)

// ReasonKind tags a reasoning fragment.
type ReasonKind string

const (
	ReasonReference  ReasonKind = "reference"
	ReasonBasis      ReasonKind = "basis"
	ReasonTrend      ReasonKind = "trend"
	ReasonStale      ReasonKind = "stale"
	ReasonThinMargin ReasonKind = "thin_margin"
	ReasonNoData     ReasonKind = "no_data"
)

// Reason is one step of the pricing rationale.
type Reason struct {
	Kind ReasonKind `json:"kind"`
	Text string     `json:"text"`
}

// Tier labels.
const (
	LabelRecommended = "Recommended"
	LabelAggressive  = "Aggressive"
	LabelSafe        = "Safe"
)

// Tier is one priced option.
type Tier struct {
	Price                 float64 `json:"price"`
	MarginPct             float64 `json:"margin_pct"`
	MarginPctDisplay      string  `json:"margin_pct_display"`
	WinProbability        float64 `json:"win_probability"`
	WinProbabilityDisplay string  `json:"win_probability_display"`
	Label                 string  `json:"label"`
}

func newTier(label string, price, margin, winProb float64) *Tier {
	margin = money.Round(margin, 3)
	winProb = money.Round(winProb, 3)
	return &Tier{
		Price:                 money.Cents(price),
		MarginPct:             margin,
		MarginPctDisplay:      money.Percent(margin, 1),
		WinProbability:        winProb,
		WinProbabilityDisplay: money.Percent(winProb, 0),
		Label:                 label,
	}
}

// HistorySnapshot is the part of the price history a recommendation
// carries.
type HistorySnapshot struct {
	Matches   int           `json:"matches"`
	Median    *float64      `json:"median"`
	Min       *float64      `json:"min"`
	Max       *float64      `json:"max"`
	RecentAvg *float64      `json:"recent_avg"`
	Trend     history.Trend `json:"trend"`
}

func snapshot(h history.History) HistorySnapshot {
	return HistorySnapshot{
		Matches:   h.Matches,
		Median:    h.MedianPrice,
		Min:       h.MinPrice,
		Max:       h.MaxPrice,
		RecentAvg: h.RecentAvg,
		Trend:     h.Trend,
	}
}

// Request describes one line item to price.
type Request struct {
	ItemCode       string         `json:"item_code"`
	Description    string         `json:"description"`
	SupplierCost   *float64       `json:"supplier_cost,omitempty"`
	ReferencePrice *float64       `json:"reference_price,omitempty"`
	Agency         string         `json:"agency,omitempty"`
	SourceType     string         `json:"source_type,omitempty"`
	Quantity       float64        `json:"quantity,omitempty"`
	Overrides      map[string]any `json:"overrides,omitempty"`
}

// Recommendation is the three-tier pricing result. Tiers are nil when the
// data quality is no_data.
type Recommendation struct {
	Recommended *Tier           `json:"recommended"`
	Aggressive  *Tier           `json:"aggressive"`
	Safe        *Tier           `json:"safe"`
	Flags       []Flag          `json:"flags"`
	Reasons     []Reason        `json:"reasons"`
	Reasoning   string          `json:"reasoning"`
	DataQuality DataQuality     `json:"data_quality"`
	History     HistorySnapshot `json:"history"`
}

// HasFlag reports whether f was raised.
func (r Recommendation) HasFlag(f Flag) bool {
	for _, have := range r.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Priced reports whether the recommendation carries tiers.
func (r Recommendation) Priced() bool {
	return r.DataQuality != QualityNoData && r.Recommended != nil
}

func joinReasons(rs []Reason) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.Text
	}
	return strings.Join(parts, " | ")
}
