package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/oracle"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
	"github.com/fyrsmithlabs/wonquotes/internal/winprob"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// printer renders command results as JSON or terminal tables.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case formatTable, formatJSON:
		return &printer{w: w, format: format}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s or %s)", format, formatTable, formatJSON)
	}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) title(s string) {
	p.line("%s", titleStyle.Render(s))
}

func (p *printer) field(label string, value any) {
	p.line("%s %v", labelStyle.Render(label+":"), value)
}

func (p *printer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	p.line("%s", t.String())
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }

func moneyPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return money(*v)
}

func pctPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func (p *printer) batchStats(st quotes.BatchStats) error {
	if p.format == formatJSON {
		return p.json(st)
	}
	p.table([]string{"Ingested", "Updated", "Skipped"}, [][]string{{
		fmt.Sprint(st.Ingested), fmt.Sprint(st.Updated), fmt.Sprint(st.Skipped),
	}})
	return nil
}

func (p *printer) record(rec quotes.PriceRecord) error {
	if p.format == formatJSON {
		return p.json(rec)
	}
	p.title("Stored " + rec.ID)
	p.field("Item", rec.ItemCode)
	p.field("Description", rec.Description)
	p.field("Category", rec.Category)
	p.field("Unit price", money(rec.UnitPrice))
	p.field("Total", money(rec.Total))
	p.field("Source", rec.Source)
	return nil
}

func matchRows(ms []matching.Match) [][]string {
	rows := make([][]string, len(ms))
	for i, m := range ms {
		rows[i] = []string{
			m.Record.ItemCode,
			truncate(m.Record.Description, 40),
			money(m.Record.UnitPrice),
			m.Record.AwardDate,
			fmt.Sprintf("%.3f", m.Confidence),
			fmt.Sprintf("%.1f", m.FreshnessWeight),
			fmt.Sprintf("%.3f", m.SortScore),
			strings.Join(m.Reasons, ","),
		}
	}
	return rows
}

var matchHeaders = []string{"Item", "Description", "Price", "Awarded", "Conf", "Fresh", "Score", "Why"}

func (p *printer) matches(ms []matching.Match) error {
	if p.format == formatJSON {
		return p.json(ms)
	}
	if len(ms) == 0 {
		p.line("%s", dimStyle.Render("No comparable awards found"))
		return nil
	}
	p.table(matchHeaders, matchRows(ms))
	return nil
}

func (p *printer) history(h history.History) error {
	if p.format == formatJSON {
		return p.json(h)
	}
	if h.Empty() {
		p.line("%s", dimStyle.Render("No price history found"))
		return nil
	}
	p.title("Price history")
	p.field("Matches", h.Matches)
	p.field("Median", moneyPtr(h.MedianPrice))
	p.field("Average", moneyPtr(h.AvgPrice))
	p.field("Range", moneyPtr(h.MinPrice)+" - "+moneyPtr(h.MaxPrice))
	p.field("Recent average", moneyPtr(h.RecentAvg))
	p.field("Trend", h.Trend)
	p.table(matchHeaders, matchRows(h.DataPoints))
	return nil
}

func (p *printer) estimate(e winprob.Estimate) error {
	if p.format == formatJSON {
		return p.json(e)
	}
	p.title(fmt.Sprintf("Win probability %.0f%%", e.Probability*100))
	p.field("Confidence", e.ConfidenceLevel)
	p.field("Data points", e.DataPoints)
	p.field("vs median", pctPtr(e.VsMedian))
	p.field("vs recent", pctPtr(e.VsRecent))
	p.line("%s", e.Reasoning)
	return nil
}

func tierRow(t *oracle.Tier) []string {
	return []string{t.Label, money(t.Price), t.MarginPctDisplay, t.WinProbabilityDisplay}
}

func (p *printer) recommendation(r oracle.Recommendation) error {
	if p.format == formatJSON {
		return p.json(r)
	}
	p.renderRecommendation(r)
	return nil
}

func (p *printer) renderRecommendation(r oracle.Recommendation) {
	p.field("Data quality", r.DataQuality)
	if r.Priced() {
		p.table([]string{"Tier", "Price", "Margin", "Win"}, [][]string{
			tierRow(r.Recommended), tierRow(r.Aggressive), tierRow(r.Safe),
		})
	}
	if len(r.Flags) > 0 {
		flags := make([]string, len(r.Flags))
		for i, f := range r.Flags {
			flags[i] = string(f)
		}
		p.field("Flags", warningStyle.Render(strings.Join(flags, ", ")))
	}
	for _, reason := range r.Reasons {
		p.line("  - %s", reason.Text)
	}
}

func (p *printer) batch(res oracle.BatchResult) error {
	if p.format == formatJSON {
		return p.json(res)
	}
	p.title(fmt.Sprintf("RFQ %s (%s)", res.RFQID, res.Agency))
	rows := make([][]string, len(res.Items))
	for i, item := range res.Items {
		row := []string{fmt.Sprint(item.LineNumber), item.ItemCode, truncate(item.Description, 32), fmt.Sprint(item.Quantity)}
		if item.Priced() {
			row = append(row,
				money(item.Recommended.Price), money(item.Aggressive.Price), money(item.Safe.Price),
				item.Recommended.WinProbabilityDisplay)
		} else {
			row = append(row, "manual", "-", "-", "-")
		}
		rows[i] = row
	}
	p.table([]string{"Line", "Item", "Description", "Qty", "Recommended", "Aggressive", "Safe", "Win"}, rows)

	s := res.Summary
	p.field("Priced", fmt.Sprintf("%d of %d (%d need manual pricing)", s.Priced, s.TotalItems, s.NeedsManual))
	p.field("Average win probability", s.AvgWinProbabilityDisplay)
	p.field("Totals", fmt.Sprintf("recommended %s, aggressive %s, safe %s",
		money(s.TotalRecommended), money(s.TotalAggressive), money(s.TotalSafe)))
	return nil
}

func (p *printer) stats(st quotes.Stats) error {
	if p.format == formatJSON {
		return p.json(st)
	}
	p.title("Knowledge base")
	p.field("Records", st.TotalRecords)
	p.field("Total value", money(st.TotalValue))
	p.field("Average unit price", moneyPtr(st.AvgUnitPrice))
	if st.DateRange != nil {
		p.field("Awards", st.DateRange.Earliest+" to "+st.DateRange.Latest)
	}
	if len(st.Categories) > 0 {
		rows := make([][]string, 0, len(st.Categories))
		for cat, n := range st.Categories {
			rows = append(rows, []string{string(cat), fmt.Sprint(n)})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		p.table([]string{"Category", "Records"}, rows)
	}
	if len(st.Departments) > 0 {
		p.table([]string{"Department", "Records"}, nameCountRows(st.Departments))
	}
	if len(st.Suppliers) > 0 {
		p.table([]string{"Supplier", "Records"}, nameCountRows(st.Suppliers))
	}
	return nil
}

func nameCountRows(ncs []quotes.NameCount) [][]string {
	rows := make([][]string, len(ncs))
	for i, nc := range ncs {
		rows[i] = []string{nc.Name, fmt.Sprint(nc.Count)}
	}
	return rows
}

func (p *printer) health(h oracle.Health) error {
	if p.format == formatJSON {
		return p.json(h)
	}
	status := healthyStyle.Render(h.Status)
	if h.Status != oracle.StatusHealthy {
		status = warningStyle.Render(h.Status)
	}
	p.field("Status", status)
	p.field("Records", h.Records)
	p.field("Categories covered", h.CategoriesCovered)
	p.field("Rules file loaded", h.ConfigLoaded)
	for _, issue := range h.Issues {
		p.line("  - %s", issue)
	}
	return nil
}
