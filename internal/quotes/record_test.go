package quotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/wonquotes/internal/textproc"
)

func TestRecordID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := RecordID("P1", "X-100", "Restraint Kit")
		b := RecordID("P1", "X-100", "Restraint Kit")
		assert.Equal(t, a, b)
		assert.Len(t, a, len("wq_")+12)
		assert.Regexp(t, `^wq_[0-9a-f]{12}$`, a)
	})

	t.Run("description normalized before hashing", func(t *testing.T) {
		assert.Equal(t,
			RecordID("P1", "X-100", "Restraint Kit"),
			RecordID("P1", "X-100", "  RESTRAINT   kit!"))
	})

	t.Run("different inputs differ", func(t *testing.T) {
		ids := map[string]bool{
			RecordID("P1", "X-100", "Restraint Kit"): true,
			RecordID("P2", "X-100", "Restraint Kit"): true,
			RecordID("P1", "X-101", "Restraint Kit"): true,
			RecordID("P1", "X-100", "Restraint Kits"): true,
		}
		assert.Len(t, ids, 4)
	})
}

func TestBuildRecord(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := RecordInput{
		OrderNumber: "P1",
		ItemCode:    "X-100",
		Description: "Stryker Restraint Kit",
		Quantity:    0,
		AwardDate:   "2024-12-01",
	}
	rec := buildRecord(in, 12.5, SourceLive, sourceConfidence(SourceLive), now)

	assert.Equal(t, RecordID("P1", "X-100", "Stryker Restraint Kit"), rec.ID)
	assert.Equal(t, "stryker restraint kit", rec.NormalizedDescription)
	assert.Equal(t, []string{"kit", "restraint", "stryker"}, rec.Tokens)
	assert.Equal(t, textproc.CategoryMedical, rec.Category)
	assert.Equal(t, 1.0, rec.Quantity)
	assert.Equal(t, 12.5, rec.Total)
	assert.Equal(t, 1.0, rec.Confidence)
	assert.Equal(t, now, rec.IngestedAt)
}

func TestSourceConfidence(t *testing.T) {
	assert.Equal(t, 1.0, sourceConfidence(SourceLive))
	assert.Equal(t, 0.8, sourceConfidence("completed_sale"))
}

func TestRecordInputPrice(t *testing.T) {
	_, ok := RecordInput{}.Price()
	assert.False(t, ok)

	_, ok = RecordInput{UnitPrice: Float(0)}.Price()
	assert.False(t, ok)

	_, ok = RecordInput{UnitPrice: Float(-3)}.Price()
	assert.False(t, ok)

	p, ok := RecordInput{UnitPrice: Float(9.99)}.Price()
	assert.True(t, ok)
	assert.Equal(t, 9.99, p)
}

func TestPriceRecordFallbacks(t *testing.T) {
	rec := PriceRecord{Description: "Bleach wipes canister"}
	assert.True(t, rec.TokenSet().Has("bleach"))
	assert.Equal(t, textproc.CategoryJanitorial, rec.CategoryOrClassify())
}
