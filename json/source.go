// Package json decodes newline delimited JSON into datalake records.
package json

import (
	"bufio"
	"bytes"
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// maxLineSize bounds a single record. Catalog files hold one object each and
// log lines are a few hundred bytes, so this is generous.
const maxLineSize = 16 << 20

// Source is a datalake.Source for reading newline delimited json data.
type Source struct {
	r    *bufio.Reader
	line int
}

// NewSource gets a new json source which will decode from the given reader.
func NewSource(r io.Reader) *Source {
	return &Source{
		r: bufio.NewReaderSize(r, 64*1024),
	}
}

// Record implements datalake.Source. It returns the next json object in the
// reader as a map[string]interface{} whose numbers are json.Number. Blank
// lines are skipped. A line which isn't a json object yields a malformed
// record error; the following lines can still be read.
func (s *Source) Record() (interface{}, error) {
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		s.line++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		rec, err := Decode(line)
		if err != nil {
			return nil, datalake.NewMalformedRecordError("line %d: %v", s.line, err)
		}
		return rec, nil
	}
}

func (s *Source) readLine() ([]byte, error) {
	var buf []byte
	for {
		frag, err := s.r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxLineSize {
			return nil, errors.Errorf("line %d longer than %d bytes", s.line+1, maxLineSize)
		}
		switch err {
		case nil:
			return buf, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(buf) > 0 {
				return buf, nil
			}
			return nil, io.EOF
		default:
			return nil, errors.Wrap(err, "reading")
		}
	}
}

// Decode decodes a single json object.
func Decode(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var res map[string]interface{}
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("not a json object")
	}
	if dec.More() {
		return nil, errors.New("trailing data after json object")
	}
	return res, nil
}

type rawSourceSource struct {
	rs   datalake.RawSource
	cur  datalake.NamedReadCloser
	name string
	s    *Source
}

// NewSourceFromRawSource returns a datalake.Source which decodes each reader
// of rs in turn. The returned Source is an io.Closer.
func NewSourceFromRawSource(rs datalake.RawSource) datalake.Source {
	return &rawSourceSource{rs: rs}
}

func (r *rawSourceSource) Record() (rec interface{}, err error) {
	for {
		if r.s == nil {
			reader, err := r.rs.NextReader()
			if err == io.EOF {
				return nil, io.EOF
			} else if err != nil {
				return nil, errors.Wrap(err, "getting next reader")
			}
			r.s = NewSource(reader)
			r.cur = reader
			r.name = reader.Name()
		}
		rec, err = r.s.Record()
		if err == nil {
			return rec, nil
		} else if err != io.EOF {
			return nil, errors.Wrap(err, r.name)
		}
		if err := r.closeCurrent(); err != nil {
			return nil, err
		}
	}
}

func (r *rawSourceSource) closeCurrent() error {
	r.s = nil
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return errors.Wrap(err, "closing reader")
}

// Close closes the reader currently being decoded, if any.
func (r *rawSourceSource) Close() error {
	return r.closeCurrent()
}
