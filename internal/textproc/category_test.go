package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want Category
	}{
		{"medical", "Stryker Restraint Kit", CategoryMedical},
		{"office", "Copy paper ream", CategoryOffice},
		{"industrial", "Grainger pipe wrench", CategoryIndustrial},
		{"janitorial", "Bleach wipes", CategoryJanitorial},
		{"tie goes to first declared", "gauze tape", CategoryMedical},
		{"no hits", "Unknown Widget", CategoryGeneral},
		{"empty", "", CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCategory(tt.desc))
		})
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	assert.Equal(t, CategoryMedical, cats[0])
	assert.Equal(t, CategoryGeneral, cats[len(cats)-1])
	assert.Len(t, cats, 5)
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryIndustrial, ParseCategory("industrial"))
	assert.Equal(t, CategoryGeneral, ParseCategory("unknown"))
	assert.Equal(t, CategoryGeneral, ParseCategory(""))
}
