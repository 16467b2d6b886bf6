package quotes

import (
	"sort"
	"time"

	"github.com/fyrsmithlabs/wonquotes/internal/freshness"
	"github.com/fyrsmithlabs/wonquotes/internal/money"
	"github.com/fyrsmithlabs/wonquotes/internal/textproc"
)

// topN is how many departments and suppliers Stats reports.
const topN = 10

// NameCount is a name with its record count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DateRange is the span of parseable award dates.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// Stats describes the collection.
type Stats struct {
	TotalRecords int                       `json:"total_records"`
	Categories   map[textproc.Category]int `json:"categories"`
	Departments  []NameCount               `json:"departments"`
	Suppliers    []NameCount               `json:"suppliers"`
	DateRange    *DateRange                `json:"date_range"`
	AvgUnitPrice *float64                  `json:"avg_unit_price"`
	TotalValue   float64                   `json:"total_value"`
}

// Stats makes a single descriptive pass over the collection.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStats(s.records)
}

func computeStats(records []PriceRecord) Stats {
	st := Stats{
		TotalRecords: len(records),
		Categories:   make(map[textproc.Category]int),
		Departments:  []NameCount{},
		Suppliers:    []NameCount{},
	}
	if len(records) == 0 {
		return st
	}

	departments := make(map[string]int)
	suppliers := make(map[string]int)
	var priceSum, total float64
	var priced int
	var earliest, latest time.Time
	var earliestRaw, latestRaw string

	for _, r := range records {
		st.Categories[r.CategoryOrClassify()]++
		if r.Department != "" {
			departments[r.Department]++
		}
		if r.Supplier != "" {
			suppliers[r.Supplier]++
		}
		if r.UnitPrice > 0 {
			priceSum += r.UnitPrice
			priced++
		}
		total += r.Total
		if d, ok := freshness.ParseDate(r.AwardDate); ok {
			if earliestRaw == "" || d.Before(earliest) {
				earliest, earliestRaw = d, r.AwardDate
			}
			if latestRaw == "" || d.After(latest) {
				latest, latestRaw = d, r.AwardDate
			}
		}
	}

	st.Departments = topCounts(departments, topN)
	st.Suppliers = topCounts(suppliers, topN)
	if earliestRaw != "" {
		st.DateRange = &DateRange{Earliest: earliestRaw, Latest: latestRaw}
	}
	if priced > 0 {
		st.AvgUnitPrice = money.Ptr(priceSum / float64(priced))
	}
	st.TotalValue = money.Cents(total)
	return st
}

// topCounts orders by count descending, then name, and keeps n.
func topCounts(counts map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
