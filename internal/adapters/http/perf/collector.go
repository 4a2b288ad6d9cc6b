// Package perf keeps a bounded in-memory history of request and query
// timings for the admin performance snapshot.
package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes request vs query entries.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
)

// Entry is a single timing record.
// Label is "METHOD /path" for requests and "VERB table" for queries.
type Entry struct {
	Kind       EntryKind
	Label      string
	StatusCode int // 0 for queries
	Failed     bool
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer of timing entries.
// When full, the oldest entry is overwritten.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	pos     int
	count   atomic.Int64
}

// NewCollector creates a collector holding the last size entries.
// PRE: size > 0, otherwise DefaultRingSize is used
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size)}
}

// Record stores an entry, overwriting the oldest when the buffer is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % len(c.entries)
	c.mu.Unlock()
	c.count.Add(1)
}

// TotalRecorded returns the number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	return c.count.Load()
}

// Stat aggregates the timings of one label.
type Stat struct {
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	AvgMs  float64 `json:"avg_ms"`
	MaxMs  float64 `json:"max_ms"`
	total  float64
}

// Snapshot is the aggregated view served to administrators.
type Snapshot struct {
	Since           time.Time `json:"since"`
	TotalRecorded   int64     `json:"total_recorded"`
	Requests        int       `json:"requests"`
	Queries         int       `json:"queries"`
	RequestP50Ms    float64   `json:"request_p50_ms"`
	RequestP95Ms    float64   `json:"request_p95_ms"`
	RequestP99Ms    float64   `json:"request_p99_ms"`
	SlowestRequests []Stat    `json:"slowest_requests"`
	SlowestQueries  []Stat    `json:"slowest_queries"`
}

// Snapshot aggregates the entries recorded at or after since.
// POST: Slowest lists hold at most topN labels ordered by average duration
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.entries)
	c.mu.Unlock()

	var durations []float64
	requests := make(map[string]*Stat)
	queries := make(map[string]*Stat)
	snap := Snapshot{Since: since, TotalRecorded: c.TotalRecorded()}

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		stats := queries
		if e.Kind == KindRequest {
			stats = requests
			durations = append(durations, e.DurationMs)
			snap.Requests++
		} else {
			snap.Queries++
		}
		s, ok := stats[e.Label]
		if !ok {
			s = &Stat{Label: e.Label}
			stats[e.Label] = s
		}
		s.Count++
		s.total += e.DurationMs
		s.MaxMs = max(s.MaxMs, e.DurationMs)
		if e.Failed || e.StatusCode >= 500 {
			s.Errors++
		}
	}

	snap.SlowestRequests = slowest(requests, topN)
	snap.SlowestQueries = slowest(queries, topN)
	if len(durations) > 0 {
		slices.Sort(durations)
		snap.RequestP50Ms = percentile(durations, 50)
		snap.RequestP95Ms = percentile(durations, 95)
		snap.RequestP99Ms = percentile(durations, 99)
	}
	return snap
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func slowest(stats map[string]*Stat, n int) []Stat {
	list := make([]Stat, 0, len(stats))
	for _, s := range stats {
		s.AvgMs = s.total / float64(s.Count)
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b Stat) int {
		if c := cmp.Compare(b.AvgMs, a.AvgMs); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
