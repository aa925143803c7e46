// Package parquet writes datalake tables as Hive partitioned, snappy
// compressed parquet files to a datalake.Store.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// DefaultPartition is the directory value used for a null or empty partition
// column, matching what Hive and Spark write.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// SuccessMarker is written at the root of each table once all of its files
// are in place.
const SuccessMarker = "_SUCCESS"

// DefaultMaxRowsPerFile bounds the rows in a single part file.
const DefaultMaxRowsPerFile = 1 << 20

// Sink is a datalake.Sink writing parquet files. Each table goes under a
// directory named after it, and each partition under nested col=value
// directories in partitionBy order. Partition columns are kept in the files.
type Sink struct {
	store          datalake.Store
	log            datalake.Logger
	maxRowsPerFile int
	parallelism    int64
}

// SinkOption is a functional option for NewSink.
type SinkOption func(s *Sink)

// OptSinkLogger sets the logger.
func OptSinkLogger(l datalake.Logger) SinkOption {
	return func(s *Sink) {
		s.log = l
	}
}

// OptSinkMaxRowsPerFile sets how many rows go in each part file before a new
// one is started.
func OptSinkMaxRowsPerFile(n int) SinkOption {
	return func(s *Sink) {
		s.maxRowsPerFile = n
	}
}

// OptSinkParallelism sets the number of goroutines the parquet writer uses to
// encode each file.
func OptSinkParallelism(np int64) SinkOption {
	return func(s *Sink) {
		s.parallelism = np
	}
}

// NewSink returns a Sink writing to store.
func NewSink(store datalake.Store, opts ...SinkOption) *Sink {
	s := &Sink{
		store:          store,
		log:            datalake.NopLogger{},
		maxRowsPerFile: DefaultMaxRowsPerFile,
		parallelism:    4,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxRowsPerFile < 1 {
		s.maxRowsPerFile = DefaultMaxRowsPerFile
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	return s
}

// Write implements datalake.Sink.
func (s *Sink) Write(ctx context.Context, t *datalake.Table, partitionBy []string, mode datalake.WriteMode) error {
	exists, err := s.store.Exists(ctx, t.Name)
	if err != nil {
		return errors.Wrap(err, "checking for existing table")
	}
	if exists {
		switch mode {
		case datalake.ModeErrorIfExists:
			return errors.Wrapf(datalake.ErrTableExists, "'%s'", t.Name)
		case datalake.ModeOverwrite:
			s.log.Debugf("removing existing %s", t.Name)
			if err := s.store.RemoveAll(ctx, t.Name); err != nil {
				return errors.Wrap(err, "removing existing table")
			}
		default:
			return errors.Errorf("unknown write mode %v", mode)
		}
	}

	parts, err := Partition(t.Rows, partitionBy)
	if err != nil {
		return errors.Wrapf(err, "partitioning %s", t.Name)
	}
	files := datalake.NewNexter()
	var written datalake.Bytes
	for _, p := range parts {
		for start := 0; start < len(p.Rows); start += s.maxRowsPerFile {
			end := start + s.maxRowsPerFile
			if end > len(p.Rows) {
				end = len(p.Rows)
			}
			key := path.Join(t.Name, p.Dir, fmt.Sprintf("part-%05d.snappy.parquet", files.Next()))
			n, err := s.writeFile(ctx, key, t.Schema, p.Rows[start:end])
			if err != nil {
				return err
			}
			written += datalake.Bytes(n)
		}
	}
	if err := s.store.Put(ctx, path.Join(t.Name, SuccessMarker), strings.NewReader("")); err != nil {
		return errors.Wrap(err, "writing success marker")
	}
	s.log.Printf("wrote %s: %d rows in %d partitions, %d files, %v", t.Name, len(t.Rows), len(parts), files.Next(), written)
	return nil
}

func (s *Sink) writeFile(ctx context.Context, key string, schema interface{}, rows []interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	buf := &bytes.Buffer{}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(buf), schema, s.parallelism)
	if err != nil {
		return 0, errors.Wrap(err, "creating parquet writer")
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return 0, errors.Wrapf(err, "encoding row for %s", key)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, errors.Wrapf(err, "finishing %s", key)
	}
	n := buf.Len()
	s.log.Debugf("putting %s (%v)", key, datalake.Bytes(n))
	if err := s.store.Put(ctx, key, buf); err != nil {
		return 0, errors.Wrapf(err, "putting %s", key)
	}
	return n, nil
}
