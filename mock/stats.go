// Package mock has test doubles for the datalake interfaces.
package mock

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// RecordingStatter is used for testing. It is threadsafe.
type RecordingStatter struct {
	mu      sync.Mutex
	Counts  map[string]int64
	Tagged  map[string]int64
	Timings map[string]int
}

// Count implements Count. Counts are summed by name in Counts and by name
// and tags in Tagged.
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Counts == nil {
		r.Counts = make(map[string]int64)
		r.Tagged = make(map[string]int64)
	}
	r.Counts[name] += value
	if len(tags) > 0 {
		r.Tagged[TaggedName(name, tags...)] += value
	}
}

// Gauge implements Gauge.
func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Timing implements Timing by counting how many timings were reported under
// name.
func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Timings == nil {
		r.Timings = make(map[string]int)
	}
	r.Timings[name]++
}

// Total returns the sum counted under name.
func (r *RecordingStatter) Total(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts[name]
}

// TaggedName is the key a tagged count is stored under in Tagged, e.g.
// "rows_written[table:songs]".
func TaggedName(name string, tags ...string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return name + "[" + strings.Join(sorted, ",") + "]"
}
