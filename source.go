package datalake

import (
	"io"
)

// Source is the interface for getting raw data one record at a time. Record
// returns io.EOF once the source is exhausted. Sources used by the Pipeline
// return map[string]interface{} records decoded from JSON.
type Source interface {
	Record() (interface{}, error)
}

// SourceFunc creates a new Source. The Pipeline calls it once per pass over
// the underlying data, so each call must start from the beginning.
type SourceFunc func() (Source, error)

// NamedReadCloser is an io.ReadCloser which knows the name of the object it
// reads (a file name or an object key) and may carry extra metadata about it.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
	Meta() map[string]interface{}
}

// RawSource hands out readers over the raw objects (files, S3 objects) which
// make up a data set. NextReader returns io.EOF when there are no more objects.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}

// SliceSource is a Source over an in-memory slice of records.
type SliceSource struct {
	recs []interface{}
	idx  int
}

// NewSliceSource returns a Source which yields recs in order.
func NewSliceSource(recs ...interface{}) *SliceSource {
	return &SliceSource{recs: recs}
}

// Record implements Source.
func (s *SliceSource) Record() (interface{}, error) {
	if s.idx >= len(s.recs) {
		return nil, io.EOF
	}
	s.idx++
	return s.recs[s.idx-1], nil
}

// closeSource closes src if it holds resources.
func closeSource(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
