package datalake

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Pipeline turns the song catalog and the event log into the five output
// tables. It owns no transformation logic itself: it reads the sources, calls
// the extractors in dependency order and hands each table to the Sink.
type Pipeline struct {
	// Concurrency bounds the number of fact table partitions joined at once.
	Concurrency int
	// PartitionSize is the number of plays per fact table partition.
	PartitionSize int
	// Mode is passed to the Sink for every table.
	Mode WriteMode
	// RunID identifies the run in logs, stats and the Report.
	RunID string

	catalog SourceFunc
	events  SourceFunc
	sink    Sink
	keySets KeySetFunc
	alloc   RangeAllocator
	log     Logger
	stats   Statter
}

// PipelineOption is a functional option for NewPipeline.
type PipelineOption func(p *Pipeline)

// OptPipelineLogger sets the Logger. The default logs nothing.
func OptPipelineLogger(l Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = l
	}
}

// OptPipelineStatter sets the Statter. The default discards stats.
func OptPipelineStatter(s Statter) PipelineOption {
	return func(p *Pipeline) {
		p.stats = s
	}
}

// OptPipelineKeySets sets where dedup keys are kept. The default keeps them
// in memory.
func OptPipelineKeySets(f KeySetFunc) PipelineOption {
	return func(p *Pipeline) {
		p.keySets = f
	}
}

// OptPipelineRangeAllocator sets the source of songplay ids.
func OptPipelineRangeAllocator(a RangeAllocator) PipelineOption {
	return func(p *Pipeline) {
		p.alloc = a
	}
}

// OptPipelineConcurrency sets Concurrency.
func OptPipelineConcurrency(c int) PipelineOption {
	return func(p *Pipeline) {
		p.Concurrency = c
	}
}

// OptPipelinePartitionSize sets PartitionSize.
func OptPipelinePartitionSize(n int) PipelineOption {
	return func(p *Pipeline) {
		p.PartitionSize = n
	}
}

// OptPipelineMode sets Mode.
func OptPipelineMode(m WriteMode) PipelineOption {
	return func(p *Pipeline) {
		p.Mode = m
	}
}

// OptPipelineRunID sets RunID. The default is a random UUID.
func OptPipelineRunID(id string) PipelineOption {
	return func(p *Pipeline) {
		p.RunID = id
	}
}

// NewPipeline returns a Pipeline reading the catalog and events from the
// sources the given funcs create and writing to sink. The catalog func is
// called twice per run: once for the dimension tables and once for the join.
func NewPipeline(catalog, events SourceFunc, sink Sink, opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		Concurrency:   1,
		PartitionSize: DefaultPartitionSize,
		Mode:          ModeOverwrite,
		catalog:       catalog,
		events:        events,
		sink:          sink,
		keySets:       NewMapKeySetFunc,
		log:           NopLogger{},
		stats:         NopStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	switch {
	case p.catalog == nil:
		return nil, ConfigErrorf("no catalog source")
	case p.events == nil:
		return nil, ConfigErrorf("no event source")
	case p.sink == nil:
		return nil, ConfigErrorf("no sink")
	case p.Concurrency < 1:
		return nil, ConfigErrorf("concurrency must be positive, got %d", p.Concurrency)
	case p.PartitionSize < 1:
		return nil, ConfigErrorf("partition size must be positive, got %d", p.PartitionSize)
	}
	if p.RunID == "" {
		p.RunID = uuid.New().String()
	}
	if p.alloc == nil {
		p.alloc = NewLocalRangeAllocator(DefaultRangeWidth)
	}
	return p, nil
}

// Run executes the whole pipeline: catalog tables first, then the event
// tables, then the songplays table. The returned Report is valid even when
// an error is returned and shows how far the run got. A failed write leaves
// the tables written before it in place.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	r := newReport(p.RunID)
	defer func() {
		r.Duration = time.Since(r.Started)
		p.stats.Timing("run_duration", r.Duration, 1)
	}()
	p.log.Printf("starting run %s", p.RunID)

	catalog, events, err := p.openInputs()
	if err != nil {
		return r, err
	}
	if err := p.processCatalog(ctx, catalog, r); err != nil {
		_ = closeSource(events)
		return r, err
	}
	plays, err := p.processEvents(ctx, events, r)
	if err != nil {
		return r, err
	}
	if err := p.processSongplays(ctx, plays, r); err != nil {
		return r, err
	}
	p.log.Printf("run %s done in %v", p.RunID, time.Since(r.Started))
	return r, nil
}

// openInputs opens both inputs before anything is written, so an input which
// doesn't resolve fails the run with ErrConfiguration and leaves every table
// untouched.
func (p *Pipeline) openInputs() (catalog, events Source, err error) {
	catalog, err = p.catalog()
	if err != nil {
		return nil, nil, ConfigErrorf("opening catalog: %v", err)
	}
	events, err = p.events()
	if err != nil {
		_ = closeSource(catalog)
		return nil, nil, ConfigErrorf("opening events: %v", err)
	}
	return catalog, events, nil
}

func (p *Pipeline) processCatalog(ctx context.Context, src Source, r *Report) error {
	recs, skipped, err := ReadCatalog(ctx, src, p.log)
	if err != nil {
		return err
	}
	p.count(r, StatCatalogRecords, int64(len(recs)))
	p.count(r, StatCatalogMalformed, skipped)
	p.log.Printf("read %d catalog records, skipped %d", len(recs), skipped)

	songs, err := p.dedupe(TableSongs, func(seen KeySet) (*Table, error) {
		return ExtractSongs(recs, seen)
	})
	if err != nil {
		return err
	}
	p.count(r, StatDuplicatesDropped, int64(len(recs)-songs.Len()), "table:"+TableSongs)
	if err := p.write(ctx, r, songs); err != nil {
		return err
	}

	artists, err := p.dedupe(TableArtists, func(seen KeySet) (*Table, error) {
		return ExtractArtists(recs, seen)
	})
	if err != nil {
		return err
	}
	p.count(r, StatDuplicatesDropped, int64(len(recs)-artists.Len()), "table:"+TableArtists)
	return p.write(ctx, r, artists)
}

func (p *Pipeline) processEvents(ctx context.Context, src Source, r *Report) ([]*Play, error) {
	events, counts, err := ReadPlays(ctx, src, p.log)
	if err != nil {
		return nil, err
	}
	p.count(r, StatEventRecords, counts.Records)
	p.count(r, StatEventsMalformed, counts.Malformed)
	p.count(r, StatEventsFiltered, counts.Filtered)
	p.count(r, StatPlays, int64(len(events)))
	p.log.Printf("read %d events: %d plays, %d other pages, %d malformed",
		counts.Records, len(events), counts.Filtered, counts.Malformed)

	users, err := p.dedupe(TableUsers, func(seen KeySet) (*Table, error) {
		return ExtractUsers(events, seen)
	})
	if err != nil {
		return nil, err
	}
	p.count(r, StatDuplicatesDropped, int64(len(events)-users.Len()), "table:"+TableUsers)
	if err := p.write(ctx, r, users); err != nil {
		return nil, err
	}

	plays := Enrich(events)
	times, err := p.dedupe(TableTime, func(seen KeySet) (*Table, error) {
		return ExtractTime(plays, seen)
	})
	if err != nil {
		return nil, err
	}
	p.count(r, StatDuplicatesDropped, int64(len(plays)-times.Len()), "table:"+TableTime)
	if err := p.write(ctx, r, times); err != nil {
		return nil, err
	}
	return plays, nil
}

func (p *Pipeline) processSongplays(ctx context.Context, plays []*Play, r *Report) error {
	// The catalog is read again rather than kept from processCatalog.
	src, err := p.catalog()
	if err != nil {
		return errors.Wrap(err, "reopening catalog")
	}
	recs, _, err := ReadCatalog(ctx, src, p.log)
	if err != nil {
		return err
	}
	idx := NewCatalogIndex(recs)

	fb := NewFactBuilder(p.alloc)
	fb.Concurrency = p.Concurrency
	fb.PartitionSize = p.PartitionSize
	songplays, counts, err := fb.Build(ctx, plays, idx)
	if err != nil {
		return errors.Wrap(err, "building songplays")
	}
	p.count(r, StatEventsMissingJoinKey, counts.MissingKey)
	p.count(r, StatEventsUnjoined, counts.Unjoined)
	if dropped := counts.MissingKey + counts.Unjoined; dropped > 0 {
		p.log.Printf("%d of %d plays have no catalog match and are not in %s (%d without artist or song)",
			dropped, len(plays), TableSongplays, counts.MissingKey)
	}
	return p.write(ctx, r, songplays)
}

// dedupe runs extract with a fresh KeySet for table and closes it afterwards.
func (p *Pipeline) dedupe(table string, extract func(seen KeySet) (*Table, error)) (t *Table, err error) {
	seen, err := p.keySets(table)
	if err != nil {
		return nil, errors.Wrapf(err, "getting key set for %s", table)
	}
	defer func() {
		if cerr := seen.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing key set for %s", table)
		}
	}()
	t, err = extract(seen)
	return t, errors.Wrapf(err, "extracting %s", table)
}

func (p *Pipeline) write(ctx context.Context, r *Report, t *Table) error {
	start := time.Now()
	p.log.Printf("writing %s: %d rows, partitioned by %v", t.Name, t.Len(), t.PartitionBy)
	if err := p.sink.Write(ctx, t, t.PartitionBy, p.Mode); err != nil {
		return &SinkWriteError{Table: t.Name, Err: err}
	}
	r.Rows[t.Name] = t.Len()
	p.stats.Count(StatRowsWritten, int64(t.Len()), 1, "table:"+t.Name)
	p.stats.Timing("write_duration", time.Since(start), 1, "table:"+t.Name)
	return nil
}

func (p *Pipeline) count(r *Report, name string, v int64, tags ...string) {
	r.Counts[name] += v
	p.stats.Count(name, v, 1, tags...)
}
