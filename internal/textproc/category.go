package textproc

import (
	"strings"
)

// Category is a coarse product category.
type Category string

const (
	CategoryMedical    Category = "medical_equipment"
	CategoryOffice     Category = "office_supplies"
	CategoryIndustrial Category = "industrial"
	CategoryJanitorial Category = "janitorial"
	// CategoryGeneral is the fallback when no keyword matches.
	CategoryGeneral Category = "general"
)

type categoryKeywords struct {
	category Category
	keywords []string
}

// categoryTable is evaluated in declaration order; earlier entries win ties.
var categoryTable = []categoryKeywords{
	{CategoryMedical, []string{
		"stryker", "medline", "medical", "surgical", "hospital", "restraint",
		"catheter", "syringe", "bandage", "gauze", "glove", "gown", "mask", "iv",
		"needle", "scalpel",
	}},
	{CategoryOffice, []string{
		"paper", "pen", "pencil", "folder", "binder", "toner", "ink", "cartridge",
		"staple", "envelope", "label", "tape", "marker", "notepad", "clipboard",
	}},
	{CategoryIndustrial, []string{
		"grainger", "uline", "tool", "drill", "wrench", "bolt", "screw", "pipe",
		"valve", "motor", "pump", "filter", "bearing", "cable", "wire", "hose",
	}},
	{CategoryJanitorial, []string{
		"cleaning", "bleach", "mop", "broom", "trash", "bag", "soap", "sanitizer",
		"disinfectant", "wipe", "towel",
	}},
}

// Categories returns all categories in declaration order, ending with
// CategoryGeneral.
func Categories() []Category {
	out := make([]Category, 0, len(categoryTable)+1)
	for _, c := range categoryTable {
		out = append(out, c.category)
	}
	return append(out, CategoryGeneral)
}

// ParseCategory returns the category named s, or CategoryGeneral if s is not
// a known category.
func ParseCategory(s string) Category {
	for _, c := range Categories() {
		if string(c) == s {
			return c
		}
	}
	return CategoryGeneral
}

// ClassifyCategory counts keyword substring hits in the lowercased
// description per category. The highest count wins.
func ClassifyCategory(description string) Category {
	lower := strings.ToLower(description)
	best := CategoryGeneral
	bestScore := 0
	for _, entry := range categoryTable {
		score := 0
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = entry.category, score
		}
	}
	return best
}
