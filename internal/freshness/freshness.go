// Package freshness weights historical awards by age.
package freshness

import (
	"strings"
	"time"
)

// Weight bands. Older or undated awards get MinWeight.
const (
	FullWeight   = 1.0
	RecentWeight = 0.8
	AgingWeight  = 0.5
	MinWeight    = 0.2
)

// dateLayouts are the accepted award date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01/02/06",
	"2006-01-02T15:04:05",
}

type band struct {
	maxDays int
	weight  float64
}

var bands = []band{
	{180, FullWeight},
	{365, RecentWeight},
	{730, AgingWeight},
}

// ParseDate parses an award date in any accepted layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AgeDays returns whole days elapsed between date and now. ok is false when
// date does not parse.
func AgeDays(date string, now time.Time) (days int, ok bool) {
	t, ok := ParseDate(date)
	if !ok {
		return 0, false
	}
	// Dates carry no zone; compare as wall-clock dates.
	n := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.UTC)
	return int(n.Sub(t).Hours() / 24), true
}

// Weight maps the age of an award date to its freshness band.
func Weight(date string, now time.Time) float64 {
	days, ok := AgeDays(date, now)
	if !ok {
		return MinWeight
	}
	for _, b := range bands {
		if days <= b.maxDays {
			return b.weight
		}
	}
	return MinWeight
}
