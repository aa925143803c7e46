package datalake

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Counter names. They are used as Statter names and Report.Counts keys.
const (
	StatCatalogRecords       = "catalog_records"
	StatCatalogMalformed     = "catalog_malformed"
	StatEventRecords         = "event_records"
	StatEventsMalformed      = "events_malformed"
	StatEventsFiltered       = "events_filtered"
	StatPlays                = "plays"
	StatEventsMissingJoinKey = "events_missing_join_key"
	StatEventsUnjoined       = "events_unjoined"
	StatDuplicatesDropped    = "duplicates_dropped"
	StatRowsWritten          = "rows_written"
)

// Report summarizes a pipeline run. Every record that does not end up in an
// output table is accounted for in one of the drop counters.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	// Counts holds the pipeline-wide counters, keyed by the Stat* names.
	Counts map[string]int64

	// Rows holds the number of rows written per table.
	Rows map[string]int
}

func newReport(runID string) *Report {
	return &Report{
		RunID:   runID,
		Started: time.Now(),
		Counts:  make(map[string]int64),
		Rows:    make(map[string]int),
	}
}

// Dropped returns the number of play events which did not make it into the
// songplays table.
func (r *Report) Dropped() int64 {
	return r.Counts[StatEventsMissingJoinKey] + r.Counts[StatEventsUnjoined]
}

func (r *Report) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "run %s finished in %v\n", r.RunID, r.Duration)
	tables := make([]string, 0, len(r.Rows))
	for t := range r.Rows {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(&sb, "  %-10s %d rows\n", t, r.Rows[t])
	}
	names := make([]string, 0, len(r.Counts))
	for n := range r.Counts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&sb, "  %s: %d\n", n, r.Counts[n])
	}
	return sb.String()
}
