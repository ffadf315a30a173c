// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"sync"
	"time"

	"github.com/jontk/ticketd/pkg/ticketerr"
)

// routeStats tracks request volume, response latency, and
// ticketerr.Category breakdowns per mux route template rather than per
// raw path, so "/orders/7/refund" and "/orders/12/refund" land in the
// same bucket instead of fragmenting the counters one per order index.
type routeStats struct {
	mu sync.Mutex

	requests   map[string]int64
	statuses   map[string]map[int]int64
	durations  map[string]*durationAgg
	categories map[ticketerr.Category]int64
	startTime  time.Time
}

func newRouteStats() *routeStats {
	return &routeStats{
		requests:   make(map[string]int64),
		statuses:   make(map[string]map[int]int64),
		durations:  make(map[string]*durationAgg),
		categories: make(map[ticketerr.Category]int64),
		startTime:  time.Now(),
	}
}

func (rs *routeStats) recordRequest(route string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.requests[route]++
}

func (rs *routeStats) recordResponse(route string, status int, dur time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	byStatus, ok := rs.statuses[route]
	if !ok {
		byStatus = make(map[int]int64)
		rs.statuses[route] = byStatus
	}
	byStatus[status]++

	agg, ok := rs.durations[route]
	if !ok {
		agg = newDurationAgg()
		rs.durations[route] = agg
	}
	agg.add(dur)
}

// recordError classifies err by its ticketerr.Category — the same
// taxonomy writeError uses to pick an HTTP status — so a seat-sold-out
// rejection (CategoryDomain) is never conflated with a malformed
// request (CategoryValidation) or a storage fault (CategoryStorage) in
// the aggregate counts.
func (rs *routeStats) recordError(err error) {
	category := ticketerr.CategoryUnknown
	var re *ticketerr.ReservationError
	if errors.As(err, &re) {
		category = re.Category
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.categories[category]++
}

// snapshot is the JSON shape returned by GET /metrics.
type snapshot struct {
	UptimeSeconds    float64                       `json:"uptimeSeconds"`
	Requests         map[string]int64              `json:"requestsByRoute"`
	Statuses         map[string]map[int]int64      `json:"statusesByRoute"`
	Durations        map[string]durationSnapshot   `json:"latencyByRoute"`
	ErrorsByCategory map[ticketerr.Category]int64   `json:"errorsByCategory"`
}

func (rs *routeStats) snapshot() snapshot {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	requests := make(map[string]int64, len(rs.requests))
	for k, v := range rs.requests {
		requests[k] = v
	}
	statuses := make(map[string]map[int]int64, len(rs.statuses))
	for route, byStatus := range rs.statuses {
		copied := make(map[int]int64, len(byStatus))
		for code, n := range byStatus {
			copied[code] = n
		}
		statuses[route] = copied
	}
	durations := make(map[string]durationSnapshot, len(rs.durations))
	for route, agg := range rs.durations {
		durations[route] = agg.snapshot()
	}
	categories := make(map[ticketerr.Category]int64, len(rs.categories))
	for cat, n := range rs.categories {
		categories[cat] = n
	}

	return snapshot{
		UptimeSeconds:    time.Since(rs.startTime).Seconds(),
		Requests:         requests,
		Statuses:         statuses,
		Durations:        durations,
		ErrorsByCategory: categories,
	}
}

// durationAgg aggregates per-route response latency.
type durationAgg struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func newDurationAgg() *durationAgg {
	return &durationAgg{min: time.Duration(1<<63 - 1)}
}

func (d *durationAgg) add(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.total += dur
	if dur < d.min {
		d.min = dur
	}
	if dur > d.max {
		d.max = dur
	}
}

type durationSnapshot struct {
	Count   int64         `json:"count"`
	Total   time.Duration `json:"totalNs"`
	Min     time.Duration `json:"minNs"`
	Max     time.Duration `json:"maxNs"`
	Average time.Duration `json:"averageNs"`
}

func (d *durationAgg) snapshot() durationSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := durationSnapshot{Count: d.count, Total: d.total, Max: d.max}
	if d.count > 0 {
		s.Min = d.min
		s.Average = time.Duration(int64(d.total) / d.count)
	}
	return s
}
