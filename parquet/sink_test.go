package parquet

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/file"
	"github.com/sparkify/datalake/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func readSongs(t *testing.T, pathname string) []datalake.Song {
	t.Helper()
	fr, err := local.NewLocalFileReader(pathname)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(datalake.Song), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]datalake.Song, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, p)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func songsTable(rows ...datalake.Song) *datalake.Table {
	tbl := datalake.NewTable(datalake.TableSongs, new(datalake.Song), "year", "artist_id")
	for _, r := range rows {
		tbl.Append(r)
	}
	return tbl
}

func TestSinkWritePartitioned(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := file.NewStore(root)
	require.NoError(t, err)
	s := NewSink(store)

	tbl := songsTable(
		datalake.Song{SongID: "S1", Title: "Der Kleine Dompfaff", ArtistID: "A1", Year: 0, Duration: 152.92036},
		datalake.Song{SongID: "S2", Title: "Setanta matins", ArtistID: "A2", Year: 2004, Duration: 269.58322},
		datalake.Song{SongID: "S3", Title: "Intro", ArtistID: "A1", Year: 0, Duration: 30},
	)
	require.NoError(t, s.Write(ctx, tbl, tbl.PartitionBy, datalake.ModeOverwrite))

	assert.Equal(t, []string{
		"songs/_SUCCESS",
		"songs/year=0/artist_id=A1/part-00000.snappy.parquet",
		"songs/year=2004/artist_id=A2/part-00001.snappy.parquet",
	}, listFiles(t, root))

	rows := readSongs(t, filepath.Join(root, "songs", "year=0", "artist_id=A1", "part-00000.snappy.parquet"))
	require.Len(t, rows, 2)
	assert.Equal(t, "S1", rows[0].SongID)
	assert.Equal(t, "Der Kleine Dompfaff", rows[0].Title)
	assert.Equal(t, int32(0), rows[0].Year)
	assert.Equal(t, "A1", rows[0].ArtistID)
	assert.Equal(t, "S3", rows[1].SongID)
}

func TestSinkModes(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := file.NewStore(root)
	require.NoError(t, err)
	s := NewSink(store)

	first := songsTable(datalake.Song{SongID: "S1", ArtistID: "A1", Year: 1999})
	require.NoError(t, s.Write(ctx, first, first.PartitionBy, datalake.ModeOverwrite))

	err = s.Write(ctx, first, first.PartitionBy, datalake.ModeErrorIfExists)
	assert.Equal(t, datalake.ErrTableExists, errors.Cause(err))

	second := songsTable(datalake.Song{SongID: "S2", ArtistID: "A2", Year: 2001})
	require.NoError(t, s.Write(ctx, second, second.PartitionBy, datalake.ModeOverwrite))
	assert.Equal(t, []string{
		"songs/_SUCCESS",
		"songs/year=2001/artist_id=A2/part-00000.snappy.parquet",
	}, listFiles(t, root))
}

func TestSinkMaxRowsPerFile(t *testing.T) {
	root := t.TempDir()
	store, err := file.NewStore(root)
	require.NoError(t, err)
	s := NewSink(store, OptSinkMaxRowsPerFile(2), OptSinkParallelism(1))

	tbl := datalake.NewTable(datalake.TableSongs, new(datalake.Song))
	for _, id := range []string{"S1", "S2", "S3", "S4", "S5"} {
		tbl.Append(datalake.Song{SongID: id})
	}
	require.NoError(t, s.Write(context.Background(), tbl, nil, datalake.ModeOverwrite))
	files := listFiles(t, root)
	assert.Equal(t, []string{
		"songs/_SUCCESS",
		"songs/part-00000.snappy.parquet",
		"songs/part-00001.snappy.parquet",
		"songs/part-00002.snappy.parquet",
	}, files)
	last := readSongs(t, filepath.Join(root, "songs", "part-00002.snappy.parquet"))
	test.MustBe(t, 1, len(last))
	test.MustBe(t, "S5", last[0].SongID)
}

func TestSinkOptionalColumns(t *testing.T) {
	root := t.TempDir()
	store, err := file.NewStore(root)
	require.NoError(t, err)
	tbl := datalake.NewTable(datalake.TableArtists, new(datalake.Artist))
	tbl.Append(datalake.Artist{ArtistID: "A1", Name: "Tom Waits", Location: test.Str("Pomona, CA"), Latitude: test.Float(34.05), Longitude: test.Float(-117.75)})
	tbl.Append(datalake.Artist{ArtistID: "A2", Name: "Unknown Band"})
	require.NoError(t, NewSink(store).Write(context.Background(), tbl, nil, datalake.ModeOverwrite))

	fr, err := local.NewLocalFileReader(filepath.Join(root, "artists", "part-00000.snappy.parquet"))
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(datalake.Artist), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]datalake.Artist, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Location)
	assert.Equal(t, "Pomona, CA", *rows[0].Location)
	assert.Nil(t, rows[1].Location)
	assert.Nil(t, rows[1].Latitude)
}

func TestSinkCanceled(t *testing.T) {
	store, err := file.NewStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tbl := songsTable(datalake.Song{SongID: "S1", ArtistID: "A1"})
	assert.Error(t, NewSink(store).Write(ctx, tbl, tbl.PartitionBy, datalake.ModeOverwrite))
}

func TestPartition(t *testing.T) {
	rows := []interface{}{
		datalake.Song{SongID: "S1", ArtistID: "AC/DC", Year: 1980},
		datalake.Song{SongID: "S2", ArtistID: "", Year: 1980},
		datalake.Song{SongID: "S3", ArtistID: "AC/DC", Year: 1980},
		datalake.Artist{ArtistID: "x"},
	}
	_, err := Partition(rows, []string{"year", "artist_id"})
	assert.Error(t, err, "artists have no year column")

	parts, err := Partition(rows[:3], []string{"year", "artist_id"})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "year=1980/artist_id=AC%2FDC", parts[0].Dir)
	assert.Len(t, parts[0].Rows, 2)
	assert.Equal(t, "year=1980/artist_id="+DefaultPartition, parts[1].Dir)

	artists := []interface{}{&datalake.Artist{ArtistID: "A1"}}
	parts, err = Partition(artists, []string{"location"})
	require.NoError(t, err)
	assert.Equal(t, "location="+DefaultPartition, parts[0].Dir)
}

func TestEscapePathName(t *testing.T) {
	test.MustBe(t, "a%3Db%25c", EscapePathName("a=b%c"))
	test.MustBe(t, "Los Angeles, CA", EscapePathName("Los Angeles, CA"))
}
