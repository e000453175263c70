// Package summary turns a batch of alert records into the six dashboard views:
// alerts over time, severity counts, category distribution, the busiest source
// and destination addresses, and the action breakdown.
//
// Aggregate is a pure function. All grouping state lives on the stack of a
// single call, so concurrent callers can aggregate different batches freely.
package summary

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/linnemanlabs/alertdash/internal/alert"
)

// DefaultTopN is the length of the ranked source/destination address tables.
const DefaultTopN = 10

// ErrInvalidRecord is returned when a record cannot be grouped, which aborts
// the whole aggregation.
var ErrInvalidRecord = errors.New("invalid alert record")

// DateBucket counts alerts per calendar date.
type DateBucket struct {
	Date   string `json:"date"`
	Alerts int    `json:"alerts"`
}

// SeverityBucket counts alerts per severity.
type SeverityBucket struct {
	Severity alert.Severity `json:"severity"`
	Count    int            `json:"count"`
}

// CategoryBucket counts alerts per alert type.
type CategoryBucket struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// IPBucket counts alerts per address.
type IPBucket struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// ActionBucket counts alerts per enforcement action.
type ActionBucket struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// Result bundles the six summary tables. Unranked tables list keys in the
// order they were first seen; the address tables are ranked by count.
type Result struct {
	Total                        int              `json:"total"`
	AlertsOverTime               []DateBucket     `json:"alerts_over_time"`
	AlertsBySeverity             []SeverityBucket `json:"alerts_by_severity"`
	AlertTypesDistribution       []CategoryBucket `json:"alert_types_distribution"`
	SourceIPsWithMostAlerts      []IPBucket       `json:"source_ips_with_most_alerts"`
	DestinationIPsWithMostAlerts []IPBucket       `json:"destination_ips_with_most_alerts"`
	AlertsByAction               []ActionBucket   `json:"alerts_by_action"`
}

// Aggregate summarizes records with the default top-N of 10.
func Aggregate(records []alert.Record) (*Result, error) {
	return AggregateN(records, DefaultTopN)
}

// AggregateN summarizes records, keeping the n busiest source and destination
// addresses. n <= 0 selects DefaultTopN.
//
// A record without a timestamp fails the call with ErrInvalidRecord. Records
// missing severity, category, action or an address are skipped for that table
// only.
func AggregateN(records []alert.Record, n int) (*Result, error) {
	if n <= 0 {
		n = DefaultTopN
	}

	var (
		byDate     = newTally[string]()
		bySeverity = newTally[alert.Severity]()
		byCategory = newTally[string]()
		bySource   = newTally[string]()
		byDest     = newTally[string]()
		byAction   = newTally[string]()
	)

	for i := range records {
		r := &records[i]

		date, err := r.Date()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidRecord, i, err)
		}
		byDate.add(date)

		if r.Severity != nil {
			bySeverity.add(*r.Severity)
		}
		if r.Category != nil {
			byCategory.add(*r.Category)
		}
		if r.SourceIP != "" {
			bySource.add(r.SourceIP)
		}
		if r.DestinationIP != "" {
			byDest.add(r.DestinationIP)
		}
		if r.Action != nil {
			byAction.add(*r.Action)
		}
	}

	return &Result{
		Total: len(records),
		AlertsOverTime: collect(byDate, func(k string, c int) DateBucket {
			return DateBucket{Date: k, Alerts: c}
		}),
		AlertsBySeverity: collect(bySeverity, func(k alert.Severity, c int) SeverityBucket {
			return SeverityBucket{Severity: k, Count: c}
		}),
		AlertTypesDistribution: collect(byCategory, func(k string, c int) CategoryBucket {
			return CategoryBucket{Type: k, Count: c}
		}),
		SourceIPsWithMostAlerts:      topIPs(bySource, n),
		DestinationIPsWithMostAlerts: topIPs(byDest, n),
		AlertsByAction: collect(byAction, func(k string, c int) ActionBucket {
			return ActionBucket{Action: k, Count: c}
		}),
	}, nil
}

// tally counts keys while remembering the order they first appeared in.
type tally[K comparable] struct {
	index  map[K]int
	keys   []K
	counts []int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{index: make(map[K]int)}
}

func (t *tally[K]) add(k K) {
	i, ok := t.index[k]
	if !ok {
		i = len(t.keys)
		t.index[k] = i
		t.keys = append(t.keys, k)
		t.counts = append(t.counts, 0)
	}
	t.counts[i]++
}

func collect[K comparable, B any](t *tally[K], bucket func(K, int) B) []B {
	out := make([]B, len(t.keys))
	for i, k := range t.keys {
		out[i] = bucket(k, t.counts[i])
	}
	return out
}

// topIPs ranks addresses by count descending. The sort is stable, so equal
// counts keep first-seen order.
func topIPs(t *tally[string], n int) []IPBucket {
	ranked := collect(t, func(k string, c int) IPBucket {
		return IPBucket{IP: k, Count: c}
	})
	slices.SortStableFunc(ranked, func(a, b IPBucket) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
