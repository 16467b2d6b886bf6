package quotes

import (
	"crypto/md5" //nolint:gosec // content-derived id, not a security boundary
	"encoding/hex"
	"strings"
	"time"

	"github.com/fyrsmithlabs/wonquotes/internal/money"
	"github.com/fyrsmithlabs/wonquotes/internal/textproc"
)

// Provenance tags.
const (
	SourceLive = "scprs_live"
	SourceBulk = "scprs_bulk"
)

// PriceRecord is one historically observed award for one line item.
type PriceRecord struct {
	ID                    string            `json:"id"`
	OrderNumber           string            `json:"order_number"`
	ItemCode              string            `json:"item_code"`
	Description           string            `json:"description"`
	NormalizedDescription string            `json:"normalized_description"`
	Tokens                []string          `json:"tokens"`
	Category              textproc.Category `json:"category"`
	Supplier              string            `json:"supplier,omitempty"`
	Department            string            `json:"department,omitempty"`
	UnitPrice             float64           `json:"unit_price"`
	Quantity              float64           `json:"quantity"`
	Total                 float64           `json:"total"`
	AwardDate             string            `json:"award_date,omitempty"`
	Source                string            `json:"source"`
	Confidence            float64           `json:"confidence"`
	IngestedAt            time.Time         `json:"ingested_at"`
}

// TokenSet returns the record's tokens as a set, re-deriving them from the
// description when the stored list is empty.
func (r PriceRecord) TokenSet() textproc.TokenSet {
	if len(r.Tokens) == 0 {
		return textproc.Tokenize(r.Description)
	}
	return textproc.NewTokenSet(r.Tokens...)
}

// CategoryOrClassify returns the stored category, classifying the
// description when none is stored.
func (r PriceRecord) CategoryOrClassify() textproc.Category {
	if r.Category == "" {
		return textproc.ClassifyCategory(r.Description)
	}
	return r.Category
}

// RecordInput carries the caller-supplied fields of an ingestion.
type RecordInput struct {
	OrderNumber string   `json:"order_number"`
	ItemCode    string   `json:"item_code"`
	Description string   `json:"description"`
	UnitPrice   *float64 `json:"unit_price"`
	Quantity    float64  `json:"quantity,omitempty"`
	Supplier    string   `json:"supplier,omitempty"`
	Department  string   `json:"department,omitempty"`
	AwardDate   string   `json:"award_date,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// Price returns the unit price and whether it is usable for ingestion.
func (in RecordInput) Price() (float64, bool) {
	if in.UnitPrice == nil || *in.UnitPrice <= 0 {
		return 0, false
	}
	return *in.UnitPrice, true
}

// RecordID derives the deduplication id from the order number, item code and
// normalized description.
func RecordID(orderNumber, itemCode, description string) string {
	raw := strings.Join([]string{orderNumber, itemCode, textproc.Normalize(description)}, "|")
	sum := md5.Sum([]byte(raw)) //nolint:gosec
	return "wq_" + hex.EncodeToString(sum[:])[:12]
}

// buildRecord computes every derived field. The caller has already checked
// the price.
func buildRecord(in RecordInput, price float64, source string, confidence float64, now time.Time) PriceRecord {
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	return PriceRecord{
		ID:                    RecordID(in.OrderNumber, in.ItemCode, in.Description),
		OrderNumber:           in.OrderNumber,
		ItemCode:              in.ItemCode,
		Description:           in.Description,
		NormalizedDescription: textproc.Normalize(in.Description),
		Tokens:                textproc.Tokenize(in.Description).Sorted(),
		Category:              textproc.ClassifyCategory(in.Description),
		Supplier:              in.Supplier,
		Department:            in.Department,
		UnitPrice:             price,
		Quantity:              qty,
		Total:                 money.Cents(price * qty),
		AwardDate:             in.AwardDate,
		Source:                source,
		Confidence:            confidence,
		IngestedAt:            now.UTC(),
	}
}

// sourceConfidence is the provenance trust of a single ingestion.
func sourceConfidence(source string) float64 {
	if source == SourceLive {
		return 1.0
	}
	return 0.8
}

// Float returns a pointer to v, for building RecordInput literals.
func Float(v float64) *float64 { return &v }
