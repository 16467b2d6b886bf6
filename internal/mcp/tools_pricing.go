package mcp

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/wonquotes/internal/logging"
	"github.com/fyrsmithlabs/wonquotes/internal/oracle"
	"github.com/fyrsmithlabs/wonquotes/internal/winprob"
)

type winProbabilityInput struct {
	Price       float64 `json:"price" jsonschema:"Proposed unit price"`
	ItemCode    string  `json:"item_code,omitempty" jsonschema:"Item or part number"`
	Description string  `json:"description,omitempty" jsonschema:"Item description"`
}

type recommendInput struct {
	ItemCode       string         `json:"item_code,omitempty" jsonschema:"Item or part number"`
	Description    string         `json:"description,omitempty" jsonschema:"Item description"`
	SupplierCost   *float64       `json:"supplier_cost,omitempty" jsonschema:"Our unit cost"`
	ReferencePrice *float64       `json:"reference_price,omitempty" jsonschema:"Known reference price, takes precedence over history"`
	Agency         string         `json:"agency,omitempty" jsonschema:"Buying agency"`
	SourceType     string         `json:"source_type,omitempty" jsonschema:"Where the item is sourced, marketplace sources use the lower profit floor"`
	Quantity       float64        `json:"quantity,omitempty" jsonschema:"Quantity (default 1)"`
	Overrides      map[string]any `json:"overrides,omitempty" jsonschema:"Pricing rule overrides for this call"`
}

type lineItemInput struct {
	LineNumber     int      `json:"line_number,omitempty"`
	ItemCode       string   `json:"item_code,omitempty"`
	Description    string   `json:"description,omitempty"`
	SupplierCost   *float64 `json:"supplier_cost,omitempty"`
	PricePerUnit   *float64 `json:"price_per_unit,omitempty" jsonschema:"Used as supplier cost when supplier_cost is absent"`
	ReferencePrice *float64 `json:"reference_price,omitempty"`
	SourceType     string   `json:"source_type,omitempty"`
	Quantity       float64  `json:"qty,omitempty"`
}

type batchInput struct {
	SolicitationNumber string          `json:"solicitation_number,omitempty" jsonschema:"RFQ solicitation number"`
	Agency             string          `json:"agency,omitempty" jsonschema:"Buying agency"`
	LineItems          []lineItemInput `json:"line_items" jsonschema:"RFQ line items"`
	Overrides          map[string]any  `json:"overrides,omitempty" jsonschema:"Pricing rule overrides for every line"`
}

type batchLine struct {
	LineNumber     int                   `json:"line_number"`
	ItemCode       string                `json:"item_code"`
	Description    string                `json:"description"`
	Quantity       float64               `json:"quantity"`
	Recommendation oracle.Recommendation `json:"recommendation"`
}

type batchOutput struct {
	RFQID   string         `json:"rfq_id"`
	Agency  string         `json:"agency"`
	Items   []batchLine    `json:"items"`
	Summary oracle.Summary `json:"summary"`
}

type healthInput struct{}

func (s *Server) registerPricingTools() {
	addTool(s, "win_probability",
		"Estimate the probability that a proposed price wins, from comparable historical awards",
		s.winProbability)
	addTool(s, "price_recommend",
		"Recommend recommended, aggressive and safe bid prices for one item",
		s.recommend)
	addTool(s, "price_batch",
		"Price every line item of an RFQ and summarize the bid",
		s.batch)
	addTool(s, "pricing_health",
		"Report whether the pricing system has enough data and configuration",
		func(ctx context.Context, _ healthInput) (oracle.Health, string, error) {
			h := s.services.Oracle.HealthCheck(ctx)
			return h, fmt.Sprintf("%s: %d records", h.Status, h.Records), nil
		})
}

func (s *Server) winProbability(ctx context.Context, in winProbabilityInput) (winprob.Estimate, string, error) {
	if in.Price <= 0 {
		return winprob.Estimate{}, "", invalidArgument("price must be greater than zero")
	}
	if err := requireItem(in.ItemCode, in.Description); err != nil {
		return winprob.Estimate{}, "", err
	}
	est := s.services.Estimator.Estimate(ctx, in.Price, in.ItemCode, in.Description)
	return est, fmt.Sprintf("Win probability %.0f%% (%s confidence)", est.Probability*100, est.ConfidenceLevel), nil
}

func (s *Server) recommend(ctx context.Context, in recommendInput) (oracle.Recommendation, string, error) {
	if err := requireItem(in.ItemCode, in.Description); err != nil {
		return oracle.Recommendation{}, "", err
	}
	rec := s.services.Oracle.Recommend(ctx, oracle.Request{
		ItemCode:       in.ItemCode,
		Description:    in.Description,
		SupplierCost:   in.SupplierCost,
		ReferencePrice: in.ReferencePrice,
		Agency:         in.Agency,
		SourceType:     in.SourceType,
		Quantity:       in.Quantity,
		Overrides:      in.Overrides,
	})
	if !rec.Priced() {
		return rec, "Manual pricing required", nil
	}
	return rec, fmt.Sprintf("Recommended $%.2f (aggressive $%.2f, safe $%.2f)",
		rec.Recommended.Price, rec.Aggressive.Price, rec.Safe.Price), nil
}

func (s *Server) batch(ctx context.Context, in batchInput) (batchOutput, string, error) {
	if len(in.LineItems) == 0 {
		return batchOutput{}, "", invalidArgument("line_items cannot be empty")
	}
	rfq := oracle.RFQ{
		SolicitationNumber: in.SolicitationNumber,
		Agency:             in.Agency,
		LineItems:          make([]oracle.LineItem, len(in.LineItems)),
		Overrides:          in.Overrides,
	}
	for i, li := range in.LineItems {
		rfq.LineItems[i] = oracle.LineItem{
			LineNumber:     li.LineNumber,
			ItemCode:       li.ItemCode,
			Description:    li.Description,
			SupplierCost:   li.SupplierCost,
			PricePerUnit:   li.PricePerUnit,
			ReferencePrice: li.ReferencePrice,
			SourceType:     li.SourceType,
			Quantity:       li.Quantity,
		}
	}
	ctx = logging.WithRFQID(ctx, in.SolicitationNumber)

	res := s.services.Oracle.RecommendBatch(ctx, rfq)
	out := batchOutput{
		RFQID:   res.RFQID,
		Agency:  res.Agency,
		Items:   make([]batchLine, len(res.Items)),
		Summary: res.Summary,
	}
	for i, item := range res.Items {
		out.Items[i] = batchLine{
			LineNumber:     item.LineNumber,
			ItemCode:       item.ItemCode,
			Description:    item.Description,
			Quantity:       item.Quantity,
			Recommendation: item.Recommendation,
		}
	}
	return out, fmt.Sprintf("Priced %d of %d lines, recommended total $%.2f",
		res.Summary.Priced, res.Summary.TotalItems, res.Summary.TotalRecommended), nil
}
