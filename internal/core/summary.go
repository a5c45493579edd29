package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// SortOrder selects how monthly buckets are ordered.
type SortOrder string

const (
	// SortByLabel orders buckets lexicographically by their "Mon YYYY"
	// label, so "Feb 2024" precedes "Jan 2024".
	SortByLabel SortOrder = "label"
	// SortChronological orders buckets by their YYYY-MM key.
	SortChronological SortOrder = "chronological"
)

// ParseSortOrder maps a query or config value to a SortOrder.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortByLabel:
		return SortByLabel, nil
	case SortChronological, "":
		return SortChronological, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}

// Entry is the aggregator input: an amount and a raw date string that may
// fail to parse.
type Entry struct {
	Amount decimal.Decimal
	Date   string
}

// MonthBucket is the total for one calendar month.
type MonthBucket struct {
	Key   string // YYYY-MM
	Label string // Mon YYYY
	Total decimal.Decimal
}

// MonthlySummary is the aggregator output. Skipped counts entries whose date
// could not be parsed.
type MonthlySummary struct {
	Buckets []MonthBucket
	Skipped int
}

// Total sums every bucket.
func (s MonthlySummary) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range s.Buckets {
		sum = sum.Add(b.Total)
	}
	return sum
}

// EntriesFrom converts stored transactions to aggregator entries.
func EntriesFrom(txs []Transaction) []Entry {
	out := make([]Entry, 0, len(txs))
	for _, t := range txs {
		date := ""
		if !t.Date.IsZero() {
			date = t.Date.String()
		}
		out = append(out, Entry{Amount: t.Amount, Date: date})
	}
	return out
}

// AggregateMonthly buckets entries by calendar month and sums their amounts.
// Entries with unparseable dates are skipped and counted.
func AggregateMonthly(entries []Entry, order SortOrder) MonthlySummary {
	byKey := make(map[string]*MonthBucket)
	skipped := 0

	for _, e := range entries {
		d, err := ParseDate(e.Date)
		if err != nil {
			skipped++
			continue
		}
		key := d.MonthKey()
		b, ok := byKey[key]
		if !ok {
			b = &MonthBucket{Key: key, Label: d.MonthLabel(), Total: decimal.Zero}
			byKey[key] = b
		}
		b.Total = b.Total.Add(e.Amount)
	}

	buckets := make([]MonthBucket, 0, len(byKey))
	for _, b := range byKey {
		buckets = append(buckets, *b)
	}

	switch order {
	case SortByLabel:
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].Label == buckets[j].Label {
				return buckets[i].Key < buckets[j].Key
			}
			return buckets[i].Label < buckets[j].Label
		})
	default:
		sort.Slice(buckets, func(i, j int) bool {
			return buckets[i].Key < buckets[j].Key
		})
	}

	return MonthlySummary{Buckets: buckets, Skipped: skipped}
}
