// Package promstat is a datalake.Statter which records stats as prometheus
// metrics and can push them to a Pushgateway when a run ends.
package promstat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Statter turns counts into counters, gauges into gauges and timings into
// histograms, all in its own registry. Tags of the form "key:value" become
// labels. A name must always be reported with the same tag keys.
type Statter struct {
	namespace string
	reg       *prometheus.Registry
	factory   promauto.Factory

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	timings  map[string]*prometheus.HistogramVec
	errs     []error
}

// NewStatter returns a Statter whose metric names are prefixed with
// namespace.
func NewStatter(namespace string) *Statter {
	reg := prometheus.NewRegistry()
	return &Statter{
		namespace: namespace,
		reg:       reg,
		factory:   promauto.With(reg),
		counters:  make(map[string]*prometheus.CounterVec),
		gauges:    make(map[string]*prometheus.GaugeVec),
		timings:   make(map[string]*prometheus.HistogramVec),
	}
}

// Registry returns the registry holding the metrics, e.g. to serve them.
func (s *Statter) Registry() *prometheus.Registry {
	return s.reg
}

// Count adds value to the counter name_total. Negative values are ignored.
func (s *Statter) Count(name string, value int64, rate float64, tags ...string) {
	if value < 0 {
		return
	}
	keys, vals := labels(tags)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = s.factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      name + "_total",
			Help:      "Total " + strings.Replace(name, "_", " ", -1) + ".",
		}, keys)
		s.counters[name] = c
	}
	m, err := c.GetMetricWithLabelValues(vals...)
	if err != nil {
		s.errs = append(s.errs, errors.Wrapf(err, "counting %s", name))
		return
	}
	m.Add(float64(value))
}

// Gauge sets the gauge name.
func (s *Statter) Gauge(name string, value float64, rate float64, tags ...string) {
	keys, vals := labels(tags)
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gauges[name]
	if !ok {
		g = s.factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      "Last " + strings.Replace(name, "_", " ", -1) + ".",
		}, keys)
		s.gauges[name] = g
	}
	m, err := g.GetMetricWithLabelValues(vals...)
	if err != nil {
		s.errs = append(s.errs, errors.Wrapf(err, "setting %s", name))
		return
	}
	m.Set(value)
}

// Timing observes value in the histogram name_seconds.
func (s *Statter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	keys, vals := labels(tags)
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.timings[name]
	if !ok {
		h = s.factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      name + "_seconds",
			Help:      strings.Replace(name, "_", " ", -1) + " in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, keys)
		s.timings[name] = h
	}
	m, err := h.GetMetricWithLabelValues(vals...)
	if err != nil {
		s.errs = append(s.errs, errors.Wrapf(err, "timing %s", name))
		return
	}
	m.Observe(value.Seconds())
}

// Err returns the first stat which could not be recorded, if any. Stats
// methods can't return errors themselves.
func (s *Statter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[0]
}

// Push sends every metric to the Pushgateway at url under job, grouped by
// run id so runs don't overwrite each other.
func (s *Statter) Push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(s.reg).
		Grouping("run_id", runID).
		PushContext(ctx)
	return errors.Wrapf(err, "pushing metrics to %s", url)
}

// labels splits "key:value" tags into sorted label names and matching
// values. A tag without a colon is a label with an empty value.
func labels(tags []string) (keys, vals []string) {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	for _, t := range sorted {
		kv := strings.SplitN(t, ":", 2)
		keys = append(keys, kv[0])
		if len(kv) == 2 {
			vals = append(vals, kv[1])
		} else {
			vals = append(vals, "")
		}
	}
	return keys, vals
}
