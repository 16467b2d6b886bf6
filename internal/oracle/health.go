package oracle

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

const recommendedMinRecords = 50

// StatsSource reports collection statistics.
type StatsSource interface {
	Stats() quotes.Stats
}

// Health describes the readiness of the pricing system.
type Health struct {
	Status            string   `json:"status"`
	Records           int      `json:"kb_records"`
	CategoriesCovered int      `json:"categories_covered"`
	ConfigLoaded      bool     `json:"config_loaded"`
	Issues            []string `json:"issues"`
}

// HealthCheck reports collection size, category coverage and whether a
// rules document is in effect.
func (o *Oracle) HealthCheck(ctx context.Context) Health {
	h := Health{Status: StatusHealthy, Issues: []string{}}
	if o.stats != nil {
		st := o.stats.Stats()
		h.Records = st.TotalRecords
		h.CategoriesCovered = len(st.Categories)
	}
	if fr, ok := o.rules.(*FileRules); ok && fr.Exists() {
		_, h.ConfigLoaded = fr.Rules(nil)
	}

	if h.Records == 0 {
		h.Status = StatusDegraded
		h.Issues = append(h.Issues, "Knowledge base is empty, ingest historical awards to populate it")
	}
	if h.Records < recommendedMinRecords {
		h.Issues = append(h.Issues, fmt.Sprintf(
			"Only %d records in knowledge base, accuracy improves with more than 100 records", h.Records))
	}
	return h
}
