// Package fake generates a song catalog and a user activity log shaped like
// the real inputs of the pipeline, for tests, demos and load testing.
package fake

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/json"
)

// Config sizes a generated Dataset.
type Config struct {
	Seed    int64
	Songs   int
	Artists int
	Users   int
	Events  int
	// Unknown is the fraction of plays naming a song not in the catalog.
	Unknown float64
	Start   time.Time
}

// DefaultConfig is a small dataset which still has every kind of record.
func DefaultConfig() Config {
	return Config{
		Seed:    1,
		Songs:   200,
		Artists: 40,
		Users:   30,
		Events:  2000,
		Unknown: 0.2,
		Start:   time.Date(2018, time.November, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Dataset is a generated catalog and event log.
type Dataset struct {
	Songs  []*Song
	Events []*LogEvent
}

// NewDataset generates a Dataset. The same Config always gives the same
// Dataset.
func NewDataset(conf Config) *Dataset {
	cg := NewCatalogGenerator(conf.Seed, conf.Artists)
	d := &Dataset{}
	for i := 0; i < conf.Songs; i++ {
		d.Songs = append(d.Songs, cg.Song(uint64(i)))
	}
	eg := NewEventGenerator(conf.Seed+1, d.Songs, conf.Users, conf.Unknown, conf.Start)
	for i := 0; i < conf.Events; i++ {
		d.Events = append(d.Events, eg.Event())
	}
	return d
}

// Write lays the dataset out under dir the way the real inputs are: one
// catalog file per song at song_data/A/B/C/TRABC....json and one log file
// per day at log_data/YYYY/MM/YYYY-MM-DD-events.json.
func (d *Dataset) Write(dir string) error {
	for _, s := range d.Songs {
		t := s.TrackID
		p := filepath.Join(dir, "song_data", t[2:3], t[3:4], t[4:5], t+".json")
		if err := writeRecords(p, s); err != nil {
			return err
		}
	}
	var day string
	var batch []interface{}
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		p := filepath.Join(dir, "log_data", day[:4], day[5:7], day+"-events.json")
		err := writeRecords(p, batch...)
		batch = batch[:0]
		return err
	}
	for _, ev := range d.Events {
		evDay := time.Unix(0, ev.TS*int64(time.Millisecond)).UTC().Format("2006-01-02")
		if evDay != day {
			if err := flush(); err != nil {
				return err
			}
			day = evDay
		}
		batch = append(batch, ev)
	}
	return flush()
}

func writeRecords(p string, recs ...interface{}) (err error) {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrap(err, "making directory")
	}
	f, err := os.Create(p)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing file")
		}
	}()
	return encodeAll(f, recs)
}

func encodeAll(w io.Writer, recs []interface{}) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return enc.Flush()
}

// CatalogSource returns a datalake.Source over the songs, decoded the same
// way records read from files are.
func (d *Dataset) CatalogSource() datalake.Source {
	recs := make([]interface{}, len(d.Songs))
	for i, s := range d.Songs {
		recs[i] = s
	}
	return &Source{recs: recs}
}

// EventSource returns a datalake.Source over the events.
func (d *Dataset) EventSource() datalake.Source {
	recs := make([]interface{}, len(d.Events))
	for i, e := range d.Events {
		recs[i] = e
	}
	return &Source{recs: recs}
}

// Source is a datalake.Source over generated records. Each is round tripped
// through json so consumers see exactly what a file source would give them.
type Source struct {
	recs []interface{}
	n    int
}

// Record implements datalake.Source.
func (s *Source) Record() (interface{}, error) {
	if s.n >= len(s.recs) {
		return nil, io.EOF
	}
	rec := s.recs[s.n]
	s.n++
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return json.Decode(b)
}
