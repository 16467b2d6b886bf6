package oracle

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wonquotes/internal/money"
)

// UnknownRFQ is the rfq id used when a batch carries none.
const UnknownRFQ = "unknown"

// LineItem is one line of an RFQ.
type LineItem struct {
	LineNumber     int      `json:"line_number"`
	ItemCode       string   `json:"item_code"`
	Description    string   `json:"description"`
	SupplierCost   *float64 `json:"supplier_cost,omitempty"`
	PricePerUnit   *float64 `json:"price_per_unit,omitempty"`
	ReferencePrice *float64 `json:"reference_price,omitempty"`
	SourceType     string   `json:"source_type,omitempty"`
	Quantity       float64  `json:"qty,omitempty"`
}

// cost is the supplier cost, falling back to the quoted unit price.
func (li LineItem) cost() *float64 {
	if li.SupplierCost != nil && *li.SupplierCost > 0 {
		return li.SupplierCost
	}
	if li.PricePerUnit != nil && *li.PricePerUnit > 0 {
		return li.PricePerUnit
	}
	return nil
}

func (li LineItem) quantity() float64 {
	if li.Quantity <= 0 {
		return 1
	}
	return li.Quantity
}

// RFQ is a request for quotation to price as a batch.
type RFQ struct {
	SolicitationNumber string         `json:"solicitation_number"`
	Agency             string         `json:"agency"`
	LineItems          []LineItem     `json:"line_items"`
	Overrides          map[string]any `json:"overrides,omitempty"`
}

// LineResult is the recommendation for one line.
type LineResult struct {
	Recommendation
	LineNumber  int     `json:"line_number"`
	ItemCode    string  `json:"item_code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
}

// Summary aggregates a batch. Totals are quantity weighted.
type Summary struct {
	TotalItems               int     `json:"total_items"`
	Priced                   int     `json:"priced"`
	NeedsManual              int     `json:"needs_manual"`
	AvgWinProbability        float64 `json:"avg_win_probability"`
	AvgWinProbabilityDisplay string  `json:"avg_win_probability_display"`
	TotalRecommended         float64 `json:"total_recommended"`
	TotalAggressive          float64 `json:"total_aggressive"`
	TotalSafe                float64 `json:"total_safe"`
}

// BatchResult is the priced RFQ.
type BatchResult struct {
	RFQID   string       `json:"rfq_id"`
	Agency  string       `json:"agency"`
	Items   []LineResult `json:"items"`
	Summary Summary      `json:"summary"`
}

// RecommendBatch prices every line of rfq and summarizes the result.
func (o *Oracle) RecommendBatch(ctx context.Context, rfq RFQ) BatchResult {
	res := BatchResult{
		RFQID:  rfq.SolicitationNumber,
		Agency: rfq.Agency,
		Items:  make([]LineResult, 0, len(rfq.LineItems)),
	}
	if res.RFQID == "" {
		res.RFQID = UnknownRFQ
	}

	var totalRec, totalAgg, totalSafe, sumWin float64
	var wins int
	for _, li := range rfq.LineItems {
		qty := li.quantity()
		rec := o.Recommend(ctx, Request{
			ItemCode:       li.ItemCode,
			Description:    li.Description,
			SupplierCost:   li.cost(),
			ReferencePrice: li.ReferencePrice,
			Agency:         rfq.Agency,
			SourceType:     li.SourceType,
			Quantity:       qty,
			Overrides:      rfq.Overrides,
		})
		res.Items = append(res.Items, LineResult{
			Recommendation: rec,
			LineNumber:     li.LineNumber,
			ItemCode:       li.ItemCode,
			Description:    li.Description,
			Quantity:       qty,
		})

		if !rec.Priced() {
			res.Summary.NeedsManual++
			continue
		}
		res.Summary.Priced++
		totalRec += rec.Recommended.Price * qty
		sumWin += rec.Recommended.WinProbability
		wins++
		if rec.Aggressive != nil {
			totalAgg += rec.Aggressive.Price * qty
		}
		if rec.Safe != nil {
			totalSafe += rec.Safe.Price * qty
		}
	}

	var avgWin float64
	if wins > 0 {
		avgWin = sumWin / float64(wins)
	}
	res.Summary.TotalItems = len(rfq.LineItems)
	res.Summary.AvgWinProbability = money.Round(avgWin, 3)
	res.Summary.AvgWinProbabilityDisplay = money.Percent(res.Summary.AvgWinProbability, 0)
	res.Summary.TotalRecommended = money.Cents(totalRec)
	res.Summary.TotalAggressive = money.Cents(totalAgg)
	res.Summary.TotalSafe = money.Cents(totalSafe)

	o.logger.Info("priced rfq",
		zap.String("rfq_id", res.RFQID),
		zap.String("agency", res.Agency),
		zap.Int("items", res.Summary.TotalItems),
		zap.Int("priced", res.Summary.Priced),
		zap.Int("needs_manual", res.Summary.NeedsManual))
	return res
}
