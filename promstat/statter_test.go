package promstat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatter(t *testing.T) {
	s := NewStatter("datalake")
	s.Count("plays", 5, 1)
	s.Count("plays", 2, 1)
	s.Count("plays", -1, 1)
	s.Count("rows_written", 10, 1, "table:songs")
	s.Count("rows_written", 3, 1, "table:artists")
	s.Gauge("catalog_size", 71, 1)
	s.Timing("write_duration", 1500*time.Millisecond, 1, "table:songs")

	assert.Equal(t, 7.0, testutil.ToFloat64(s.counters["plays"].WithLabelValues()))
	assert.Equal(t, 10.0, testutil.ToFloat64(s.counters["rows_written"].WithLabelValues("songs")))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.counters["rows_written"].WithLabelValues("artists")))
	assert.Equal(t, 71.0, testutil.ToFloat64(s.gauges["catalog_size"].WithLabelValues()))
	assert.Equal(t, 1, testutil.CollectAndCount(s.timings["write_duration"]))
	require.NoError(t, s.Err())

	err := testutil.GatherAndCompare(s.Registry(), strings.NewReader(`
# HELP datalake_rows_written_total Total rows written.
# TYPE datalake_rows_written_total counter
datalake_rows_written_total{table="artists"} 3
datalake_rows_written_total{table="songs"} 10
`), "datalake_rows_written_total")
	assert.NoError(t, err)
}

func TestStatterMismatchedTags(t *testing.T) {
	s := NewStatter("datalake")
	s.Count("duplicates_dropped", 1, 1, "table:songs")
	s.Count("duplicates_dropped", 1, 1)
	assert.Error(t, s.Err())
}

func TestPush(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewStatter("datalake")
	s.Count("plays", 4, 1)
	require.NoError(t, s.Push(context.Background(), srv.URL, "etl", "run-1"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/etl/run_id/run-1", path)
	assert.NotEmpty(t, body)
}

func TestPushFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := NewStatter("datalake")
	s.Count("plays", 1, 1)
	assert.Error(t, s.Push(context.Background(), srv.URL, "etl", "run-1"))
}
