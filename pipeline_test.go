package datalake_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isConfigErr(err error) bool {
	return errors.Cause(err) == datalake.ErrConfiguration
}

func sliceSourceFunc(recs ...interface{}) datalake.SourceFunc {
	return func() (datalake.Source, error) {
		return datalake.NewSliceSource(recs...), nil
	}
}

func testCatalog() datalake.SourceFunc {
	return sliceSourceFunc(
		catalogRec("S1", "A1", "Artist One", "First Song", 2001),
		catalogRec("S2", "A1", "Artist One", "Second Song", 0),
		catalogRec("S3", "A2", "Artist Two", "First Song", 1999),
		catalogRec("S1", "A1", "Artist One", "First Song", 2001), // duplicate, joins twice
		map[string]interface{}{"title": "no ids"},
	)
}

func testEvents() datalake.SourceFunc {
	return sliceSourceFunc(
		logRec("NextSong", "1", "free", 1541121934796, "Artist One", "First Song"),
		logRec("NextSong", "1", "free", 1541121934900, "Artist One", "Second Song"),
		logRec("NextSong", "1", "paid", 1541121990000, "Artist Two", "First Song"),
		logRec("NextSong", "2", "free", 1541122000000, "Someone Else", "First Song"),
		logRec("NextSong", "2", "free", 1541122100000, "", ""),
		logRec("Home", "2", "free", 1541122200000, "", ""),
		logRec("NextSong", "", "free", 1541122300000, "Artist One", "First Song"),
	)
}

func TestPipeline(t *testing.T) {
	sink := mock.NewSink()
	stats := &mock.RecordingStatter{}
	p, err := datalake.NewPipeline(testCatalog(), testEvents(), sink,
		datalake.OptPipelineStatter(stats),
		datalake.OptPipelineRunID("test-run"),
		datalake.OptPipelineConcurrency(2),
		datalake.OptPipelinePartitionSize(2),
	)
	require.NoError(t, err)
	r, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test-run", r.RunID)
	assert.Equal(t, []string{"songs", "artists", "users", "time", "songplays"}, sink.Order)
	assert.Equal(t, map[string]int{"songs": 3, "artists": 2, "users": 3, "time": 4, "songplays": 4}, r.Rows)

	assert.Equal(t, int64(4), r.Counts[datalake.StatCatalogRecords])
	assert.Equal(t, int64(1), r.Counts[datalake.StatCatalogMalformed])
	assert.Equal(t, int64(7), r.Counts[datalake.StatEventRecords])
	assert.Equal(t, int64(1), r.Counts[datalake.StatEventsMalformed])
	assert.Equal(t, int64(1), r.Counts[datalake.StatEventsFiltered])
	assert.Equal(t, int64(5), r.Counts[datalake.StatPlays])
	assert.Equal(t, int64(1), r.Counts[datalake.StatEventsMissingJoinKey])
	assert.Equal(t, int64(1), r.Counts[datalake.StatEventsUnjoined])
	assert.Equal(t, int64(2), r.Dropped())

	// stats mirror the report
	for name, v := range r.Counts {
		assert.Equal(t, v, stats.Total(name), name)
	}
	assert.Equal(t, int64(1), stats.Tagged[mock.TaggedName(datalake.StatDuplicatesDropped, "table:songs")])
	assert.Equal(t, int64(2), stats.Tagged[mock.TaggedName(datalake.StatDuplicatesDropped, "table:artists")])
	assert.Equal(t, int64(2), stats.Tagged[mock.TaggedName(datalake.StatDuplicatesDropped, "table:users")])
	assert.Equal(t, int64(1), stats.Tagged[mock.TaggedName(datalake.StatDuplicatesDropped, "table:time")])
	assert.Equal(t, int64(4), stats.Tagged[mock.TaggedName(datalake.StatRowsWritten, "table:songplays")])
	assert.Equal(t, 1, stats.Timings["run_duration"])
	assert.Equal(t, 5, stats.Timings["write_duration"])

	songplays := sink.Tables[datalake.TableSongplays]
	ids := make(map[int64]bool)
	for _, row := range songplays.Rows {
		sp := row.(datalake.Songplay)
		assert.NotEmpty(t, sp.SongID)
		assert.NotEmpty(t, sp.ArtistID)
		ids[sp.SongplayID] = true
	}
	assert.Len(t, ids, 4, "songplay ids are unique")
	first := songplays.Rows[0].(datalake.Songplay)
	assert.Equal(t, "S1", first.SongID)
	assert.Equal(t, int64(1541121934000), first.StartTime)
	assert.Equal(t, int32(11), first.Month)

	users := sink.Tables[datalake.TableUsers]
	assert.Equal(t, datalake.User{UserID: "1", FirstName: "First1", LastName: "Last1", Gender: "F", Level: "free"}, users.Rows[0])
}

func TestPipelineModes(t *testing.T) {
	sink := mock.NewSink()
	p, err := datalake.NewPipeline(testCatalog(), testEvents(), sink)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	p.Mode = datalake.ModeErrorIfExists
	r, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, datalake.ErrTableExists, errors.Cause(err))
	var swe *datalake.SinkWriteError
	require.True(t, errors.As(err, &swe))
	assert.Equal(t, datalake.TableSongs, swe.Table)
	assert.Empty(t, r.Rows)
}

func TestPipelineSinkFailure(t *testing.T) {
	sink := mock.NewSink()
	sink.Fail[datalake.TableTime] = errors.New("bucket gone")
	p, err := datalake.NewPipeline(testCatalog(), testEvents(), sink)
	require.NoError(t, err)
	r, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing table 'time'")
	// tables written before the failure stay written
	assert.Equal(t, []string{"songs", "artists", "users"}, sink.Order)
	assert.Equal(t, 3, r.Rows[datalake.TableUsers])
	_, ok := r.Rows[datalake.TableSongplays]
	assert.False(t, ok)
}

type closingSource struct {
	*datalake.SliceSource
	closed bool
}

func (c *closingSource) Close() error {
	c.closed = true
	return nil
}

func TestPipelineSourceFailure(t *testing.T) {
	fail := func() (datalake.Source, error) { return nil, errors.New("no such bucket") }

	cat := &closingSource{SliceSource: datalake.NewSliceSource()}
	catalog := func() (datalake.Source, error) { return cat, nil }
	sink := mock.NewSink()
	p, err := datalake.NewPipeline(catalog, fail, sink)
	require.NoError(t, err)
	r, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening events")
	assert.True(t, isConfigErr(err), "bad events location is a configuration error")
	assert.Empty(t, r.Rows, "nothing is written before the inputs resolve")
	assert.Empty(t, sink.Order)
	assert.True(t, cat.closed, "catalog source closed")

	p, err = datalake.NewPipeline(fail, testEvents(), sink)
	require.NoError(t, err)
	r, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening catalog")
	assert.True(t, isConfigErr(err))
	assert.Empty(t, r.Rows)
}

func TestPipelineKeySets(t *testing.T) {
	var tables []string
	sets := func(table string) (datalake.KeySet, error) {
		tables = append(tables, table)
		return datalake.NewMapKeySet(), nil
	}
	p, err := datalake.NewPipeline(testCatalog(), testEvents(), mock.NewSink(), datalake.OptPipelineKeySets(sets))
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"songs", "artists", "users", "time"}, tables)
}

func TestNewPipelineErrors(t *testing.T) {
	sink := mock.NewSink()
	_, err := datalake.NewPipeline(nil, testEvents(), sink)
	assert.True(t, isConfigErr(err))
	_, err = datalake.NewPipeline(testCatalog(), nil, sink)
	assert.True(t, isConfigErr(err))
	_, err = datalake.NewPipeline(testCatalog(), testEvents(), nil)
	assert.True(t, isConfigErr(err))
	_, err = datalake.NewPipeline(testCatalog(), testEvents(), sink, datalake.OptPipelineConcurrency(0))
	assert.True(t, isConfigErr(err))
	_, err = datalake.NewPipeline(testCatalog(), testEvents(), sink, datalake.OptPipelinePartitionSize(-1))
	assert.True(t, isConfigErr(err))

	p, err := datalake.NewPipeline(testCatalog(), testEvents(), sink)
	require.NoError(t, err)
	assert.NotEmpty(t, p.RunID)
}
