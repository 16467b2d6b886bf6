package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
)

type recordInput struct {
	OrderNumber string   `json:"order_number,omitempty" jsonschema:"Purchase order or award number"`
	ItemCode    string   `json:"item_code,omitempty" jsonschema:"Item or part number"`
	Description string   `json:"description,omitempty" jsonschema:"Line item description"`
	UnitPrice   *float64 `json:"unit_price,omitempty" jsonschema:"Awarded unit price, must be greater than zero"`
	Quantity    float64  `json:"quantity,omitempty" jsonschema:"Quantity awarded (default 1)"`
	Supplier    string   `json:"supplier,omitempty" jsonschema:"Winning supplier"`
	Department  string   `json:"department,omitempty" jsonschema:"Buying department or agency"`
	AwardDate   string   `json:"award_date,omitempty" jsonschema:"Award date, YYYY-MM-DD or MM/DD/YYYY"`
	Source      string   `json:"source,omitempty" jsonschema:"Provenance tag"`
}

func (r recordInput) toRecord() quotes.RecordInput {
	return quotes.RecordInput{
		OrderNumber: r.OrderNumber,
		ItemCode:    r.ItemCode,
		Description: r.Description,
		UnitPrice:   r.UnitPrice,
		Quantity:    r.Quantity,
		Supplier:    r.Supplier,
		Department:  r.Department,
		AwardDate:   r.AwardDate,
		Source:      r.Source,
	}
}

type ingestInput struct {
	Records []recordInput `json:"records" jsonschema:"Awards to store; one record is a live ingest, several are a bulk ingest"`
}

type ingestOutput struct {
	Ingested int    `json:"ingested"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	ID       string `json:"id,omitempty" jsonschema:"Record id when a single record was ingested"`
}

type searchInput struct {
	ItemCode      string  `json:"item_code,omitempty" jsonschema:"Item or part number"`
	Description   string  `json:"description,omitempty" jsonschema:"Item description"`
	MaxResults    int     `json:"max_results,omitempty" jsonschema:"Maximum matches (default 10)"`
	MinConfidence *float64 `json:"min_confidence,omitempty" jsonschema:"Minimum match confidence, 0 disables the threshold (default 0.3)"`
	MaxAgeDays    int     `json:"max_age_days,omitempty" jsonschema:"Ignore awards older than this (default 730)"`
}

type matchOutput struct {
	ID              string   `json:"id"`
	OrderNumber     string   `json:"order_number"`
	ItemCode        string   `json:"item_code"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Supplier        string   `json:"supplier,omitempty"`
	Department      string   `json:"department,omitempty"`
	UnitPrice       float64  `json:"unit_price"`
	Quantity        float64  `json:"quantity"`
	AwardDate       string   `json:"award_date,omitempty"`
	Confidence      float64  `json:"match_confidence"`
	FreshnessWeight float64  `json:"freshness_weight"`
	SortScore       float64  `json:"sort_score"`
	Reasons         []string `json:"match_reasons"`
}

func toMatchOutputs(ms []matching.Match) []matchOutput {
	out := make([]matchOutput, len(ms))
	for i, m := range ms {
		out[i] = matchOutput{
			ID:              m.Record.ID,
			OrderNumber:     m.Record.OrderNumber,
			ItemCode:        m.Record.ItemCode,
			Description:     m.Record.Description,
			Category:        string(m.Record.Category),
			Supplier:        m.Record.Supplier,
			Department:      m.Record.Department,
			UnitPrice:       m.Record.UnitPrice,
			Quantity:        m.Record.Quantity,
			AwardDate:       m.Record.AwardDate,
			Confidence:      m.Confidence,
			FreshnessWeight: m.FreshnessWeight,
			SortScore:       m.SortScore,
			Reasons:         m.Reasons,
		}
	}
	return out
}

type searchOutput struct {
	Matches []matchOutput `json:"matches"`
	Count   int           `json:"count"`
}

type historyInput struct {
	ItemCode    string `json:"item_code,omitempty" jsonschema:"Item or part number"`
	Description string `json:"description,omitempty" jsonschema:"Item description"`
	Months      int    `json:"months,omitempty" jsonschema:"Lookback window in months (default 24)"`
}

type historyOutput struct {
	Matches     int           `json:"matches"`
	MinPrice    *float64      `json:"min_price,omitempty"`
	MaxPrice    *float64      `json:"max_price,omitempty"`
	MedianPrice *float64      `json:"median_price,omitempty"`
	AvgPrice    *float64      `json:"avg_price,omitempty"`
	RecentAvg   *float64      `json:"recent_avg,omitempty"`
	Trend       string        `json:"trend"`
	DataPoints  []matchOutput `json:"data_points"`
}

type statsInput struct{}

func (s *Server) registerKnowledgeBaseTools() {
	addTool(s, "quotes_ingest",
		"Store historical award prices in the won-quotes knowledge base",
		s.ingest)
	addTool(s, "quotes_search",
		"Find historical awards comparable to an item by code or description",
		s.search)
	addTool(s, "quotes_history",
		"Summarize historical prices and the price trend for an item",
		s.history)
	addTool(s, "quotes_stats",
		"Describe the knowledge base: record count, categories, top departments and suppliers",
		func(context.Context, statsInput) (quotes.Stats, string, error) {
			st := s.services.KnowledgeBase.Stats()
			return st, fmt.Sprintf("%d records across %d categories", st.TotalRecords, len(st.Categories)), nil
		})
}

func (s *Server) ingest(ctx context.Context, in ingestInput) (ingestOutput, string, error) {
	kb := s.services.KnowledgeBase
	switch len(in.Records) {
	case 0:
		return ingestOutput{}, "", invalidArgument("records cannot be empty")
	case 1:
		rec := in.Records[0].toRecord()
		_, existed := kb.Get(quotes.RecordID(rec.OrderNumber, rec.ItemCode, rec.Description))
		stored, err := kb.Ingest(ctx, rec)
		if errors.Is(err, quotes.ErrInvalidPrice) {
			return ingestOutput{Skipped: 1}, "Skipped 1 record without a positive unit price", nil
		}
		if err != nil {
			return ingestOutput{}, "", err
		}
		out := ingestOutput{ID: stored.ID, Ingested: 1}
		if existed {
			out = ingestOutput{ID: stored.ID, Updated: 1}
		}
		return out, fmt.Sprintf("Stored %s at $%.2f", stored.ID, stored.UnitPrice), nil
	}

	inputs := make([]quotes.RecordInput, len(in.Records))
	for i, r := range in.Records {
		inputs[i] = r.toRecord()
	}
	stats, err := kb.IngestBatch(ctx, inputs)
	if err != nil {
		return ingestOutput{}, "", err
	}
	return ingestOutput{Ingested: stats.Ingested, Updated: stats.Updated, Skipped: stats.Skipped},
		fmt.Sprintf("Ingested %d, updated %d, skipped %d", stats.Ingested, stats.Updated, stats.Skipped), nil
}

func (s *Server) search(ctx context.Context, in searchInput) (searchOutput, string, error) {
	if err := requireItem(in.ItemCode, in.Description); err != nil {
		return searchOutput{}, "", err
	}
	if c := in.MinConfidence; c != nil && (*c < 0 || *c > 1) {
		return searchOutput{}, "", invalidArgument("min_confidence must be between 0 and 1")
	}
	matches := s.services.Matcher.FindSimilar(ctx,
		matching.Query{ItemCode: in.ItemCode, Description: in.Description},
		matching.Options{MaxResults: in.MaxResults, MinConfidence: in.MinConfidence, MaxAgeDays: in.MaxAgeDays})
	return searchOutput{Matches: toMatchOutputs(matches), Count: len(matches)},
		fmt.Sprintf("Found %d comparable awards", len(matches)), nil
}

func (s *Server) history(ctx context.Context, in historyInput) (historyOutput, string, error) {
	if err := requireItem(in.ItemCode, in.Description); err != nil {
		return historyOutput{}, "", err
	}
	months := in.Months
	if months <= 0 {
		months = history.DefaultMonths
	}
	h := s.services.History.PriceHistory(ctx, in.ItemCode, in.Description, months)
	out := historyOutput{
		Matches:     h.Matches,
		MinPrice:    h.MinPrice,
		MaxPrice:    h.MaxPrice,
		MedianPrice: h.MedianPrice,
		AvgPrice:    h.AvgPrice,
		RecentAvg:   h.RecentAvg,
		Trend:       string(h.Trend),
		DataPoints:  toMatchOutputs(h.DataPoints),
	}
	if h.Empty() {
		return out, "No price history found", nil
	}
	return out, fmt.Sprintf("%d matches, median $%.2f, trend %s", h.Matches, *h.MedianPrice, h.Trend), nil
}
