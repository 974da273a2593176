// Package receipts lists past sales: filtering, ordering, grouping by day and totals.
package receipts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"artemisa_pos/internal/sales"
)

// DayLayout keys the day groups.
const DayLayout = "2006-01-02"

// Mask replaces the total when it is hidden.
const Mask = "**********"

// Filter narrows the sales list. Nil fields do not filter.
type Filter struct {
	Day         *time.Time
	Total       decimal.NullDecimal
	Consecutive *int
}

// ParseFilter reads filter inputs as typed by the user. Blank inputs are ignored.
// The day accepts any common date layout and is read in loc.
func ParseFilter(day, total, consecutive string, loc *time.Location) (Filter, error) {
	var f Filter
	if day = strings.TrimSpace(day); day != "" {
		t, err := dateparse.ParseIn(day, loc)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid date %q: %w", day, err)
		}
		f.Day = &t
	}
	if total = strings.TrimSpace(total); total != "" {
		d, err := decimal.NewFromString(total)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid total %q: %w", total, err)
		}
		f.Total = decimal.NewNullDecimal(d)
	}
	if consecutive = strings.TrimSpace(consecutive); consecutive != "" {
		n, err := cast.ToIntE(consecutive)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid consecutive %q: %w", consecutive, err)
		}
		f.Consecutive = &n
	}
	return f, nil
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return a.In(loc).Format(DayLayout) == b.In(loc).Format(DayLayout)
}

// Apply keeps the sales matching every set criterion: same calendar day in loc,
// exact total and exact consecutive.
func Apply(list []sales.Sale, f Filter, loc *time.Location) []sales.Sale {
	out := make([]sales.Sale, 0, len(list))
	for _, s := range list {
		if f.Day != nil && !sameDay(s.Created, *f.Day, loc) {
			continue
		}
		if f.Total.Valid && !s.TotalPrice.Equal(f.Total.Decimal) {
			continue
		}
		if f.Consecutive != nil && s.Consecutive != *f.Consecutive {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Sort orders newest first; sales created at the same instant are ordered by
// consecutive, ascending or descending.
func Sort(list []sales.Sale, consecutiveAsc bool) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Created.Equal(b.Created) {
			return a.Created.After(b.Created)
		}
		if consecutiveAsc {
			return a.Consecutive < b.Consecutive
		}
		return a.Consecutive > b.Consecutive
	})
}

// Group is the sales of one calendar day.
type Group struct {
	Day   string       `json:"day"`
	Sales []sales.Sale `json:"sales"`
}

// GroupByDay buckets sorted sales by day in loc, keeping their order inside a
// bucket. Days come newest first.
func GroupByDay(sorted []sales.Sale, loc *time.Location) []Group {
	index := map[string]int{}
	var groups []Group
	for _, s := range sorted {
		day := s.Created.In(loc).Format(DayLayout)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, Group{Day: day})
		}
		groups[i].Sales = append(groups[i].Sales, s)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Day > groups[j].Day })
	return groups
}

// Total sums the sale totals.
func Total(list []sales.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range list {
		total = total.Add(s.TotalPrice)
	}
	return total
}

// MaskedTotal renders total, or Mask when it must stay hidden.
func MaskedTotal(total decimal.Decimal, show bool) string {
	if !show {
		return Mask
	}
	return total.StringFixed(2)
}

// Summary describes the ticket sizes of a set of sales.
type Summary struct {
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
	Mean   decimal.Decimal `json:"mean"`
	Median decimal.Decimal `json:"median"`
}

// Summarize computes count, total, mean and median ticket. An empty list
// yields zeros.
func Summarize(list []sales.Sale) Summary {
	sum := Summary{Count: len(list), Total: Total(list)}
	if len(list) == 0 {
		return sum
	}
	data := make(stats.Float64Data, len(list))
	for i, s := range list {
		data[i] = s.TotalPrice.InexactFloat64()
	}
	if mean, err := stats.Mean(data); err == nil {
		sum.Mean = decimal.NewFromFloat(mean).Round(2)
	}
	if median, err := stats.Median(data); err == nil {
		sum.Median = decimal.NewFromFloat(median).Round(2)
	}
	return sum
}
