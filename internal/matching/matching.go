// Package matching ranks historical price records against a new line item.
//
// Each candidate is scored by the first applicable layer:
//
//  1. exact item code: both normalized codes present and equal, confidence 1.0
//  2. token overlap: Jaccard overlap of at least 0.7, rescaled into [0.7, 0.95]
//  3. category fallback: overlap in [0.4, 0.7) and the same non-general
//     category, confidence 0.4 + overlap × 0.3
//
// Candidates are then weighted by award-date freshness and ranked by
// confidence × freshness.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wonquotes/internal/freshness"
	"github.com/fyrsmithlabs/wonquotes/internal/money"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
	"github.com/fyrsmithlabs/wonquotes/internal/textproc"
)

const instrumentationName = "github.com/fyrsmithlabs/wonquotes/internal/matching"

// Defaults for FindSimilar.
const (
	DefaultMaxResults    = 10
	DefaultMinConfidence = 0.3
	DefaultMaxAgeDays    = 730
)

// Layer thresholds.
const (
	exactConfidence    = 1.0
	overlapThreshold   = 0.7
	overlapCeiling     = 0.95
	categoryThreshold  = 0.4
	categoryBase       = 0.4
	categoryOverlapMul = 0.3
)

// Reason prefixes.
const (
	ReasonExactItemNumber = "exact_item_number"
)

// RecordSource supplies the records to match against.
type RecordSource interface {
	Records() []quotes.PriceRecord
}

// Query identifies the item being priced.
type Query struct {
	ItemCode    string
	Description string
}

// Options bounds a search. Zero values take the defaults. A nil
// MinConfidence means DefaultMinConfidence; an explicit 0 disables the
// threshold.
type Options struct {
	MaxResults    int
	MinConfidence *float64
	MaxAgeDays    int
}

// Threshold returns a MinConfidence value for Options.
func Threshold(v float64) *float64 { return &v }

func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MinConfidence == nil {
		o.MinConfidence = Threshold(DefaultMinConfidence)
	}
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = DefaultMaxAgeDays
	}
	return o
}

// Match is a ranked candidate.
type Match struct {
	Record          quotes.PriceRecord `json:"record"`
	Confidence      float64            `json:"match_confidence"`
	FreshnessWeight float64            `json:"freshness_weight"`
	SortScore       float64            `json:"sort_score"`
	Reasons         []string           `json:"match_reasons"`
}

// Engine finds comparable records.
type Engine struct {
	source RecordSource
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the clock used for freshness and age filtering.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine over source.
func NewEngine(source RecordSource, opts ...Option) *Engine {
	e := &Engine{source: source, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time { return e.now() }

// FindSimilar returns the best matches for q, highest sort score first.
// An empty store yields an empty slice.
func (e *Engine) FindSimilar(ctx context.Context, q Query, opts Options) []Match {
	opts = opts.withDefaults()
	_, span := otel.Tracer(instrumentationName).Start(ctx, "matching.FindSimilar")
	defer span.End()

	records := e.source.Records()
	if len(records) == 0 {
		return []Match{}
	}

	now := e.now()
	queryTokens := textproc.Tokenize(q.Description)
	queryCode := textproc.Normalize(q.ItemCode)
	queryCategory := textproc.ClassifyCategory(q.Description)

	results := make([]Match, 0, opts.MaxResults)
	var tooOld int
	for _, rec := range records {
		if days, ok := freshness.AgeDays(rec.AwardDate, now); ok && days > opts.MaxAgeDays {
			tooOld++
			continue
		}

		confidence, reason := score(rec, queryCode, queryTokens, queryCategory)
		if confidence < *opts.MinConfidence || reason == "" {
			continue
		}

		fw := freshness.Weight(rec.AwardDate, now)
		results = append(results, Match{
			Record:          rec,
			Confidence:      money.Round(confidence, 3),
			FreshnessWeight: fw,
			SortScore:       money.Round(confidence*fw, 3),
			Reasons:         []string{reason},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SortScore != results[j].SortScore {
			return results[i].SortScore > results[j].SortScore
		}
		return results[i].Confidence > results[j].Confidence
	})
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	span.SetAttributes(
		attribute.Int("matching.candidates", len(records)),
		attribute.Int("matching.results", len(results)),
		attribute.Int("matching.excluded_by_age", tooOld),
	)
	e.logger.Debug("find similar",
		zap.String("item_code", q.ItemCode),
		zap.Int("candidates", len(records)),
		zap.Int("results", len(results)),
		zap.Int("excluded_by_age", tooOld))
	return results
}

// score applies the three layers in order. An empty reason means no layer
// applied.
func score(rec quotes.PriceRecord, queryCode string, queryTokens textproc.TokenSet, queryCategory textproc.Category) (float64, string) {
	if recCode := textproc.Normalize(rec.ItemCode); queryCode != "" && recCode != "" && queryCode == recCode {
		return exactConfidence, ReasonExactItemNumber
	}

	ov := textproc.Overlap(queryTokens, rec.TokenSet())
	switch {
	case ov >= overlapThreshold:
		conf := overlapThreshold + (ov-overlapThreshold)*(overlapCeiling-overlapThreshold)/(1-overlapThreshold)
		return conf, fmt.Sprintf("token_overlap_%.2f", ov)
	case ov >= categoryThreshold:
		cat := rec.CategoryOrClassify()
		if queryCategory == cat && queryCategory != textproc.CategoryGeneral {
			return categoryBase + ov*categoryOverlapMul, fmt.Sprintf("category_%s_overlap_%.2f", queryCategory, ov)
		}
	}
	return 0, ""
}
