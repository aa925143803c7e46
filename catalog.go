package datalake

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// ReadCatalog reads every record from src. Records which can't be parsed are
// skipped; the number skipped is returned alongside the parsed records.
func ReadCatalog(ctx context.Context, src Source, log Logger) (recs []*CatalogRecord, skipped int64, err error) {
	skipped, err = drain(ctx, src, log, func(rec interface{}) error {
		cr, err := ParseCatalogRecord(rec)
		if err != nil {
			return err
		}
		recs = append(recs, cr)
		return nil
	})
	return recs, skipped, errors.Wrap(err, "reading catalog")
}

// ExtractSongs projects the catalog into the songs table, keeping the first
// record seen for each song_id. The table is partitioned by year and artist.
func ExtractSongs(recs []*CatalogRecord, seen KeySet) (*Table, error) {
	t := NewTable(TableSongs, new(Song), "year", "artist_id")
	for _, r := range recs {
		isNew, err := seen.Add(r.SongID)
		if err != nil {
			return nil, errors.Wrap(err, "deduplicating songs")
		}
		if !isNew {
			continue
		}
		t.Append(Song{
			SongID:   r.SongID,
			Title:    r.Title,
			ArtistID: r.ArtistID,
			Year:     r.Year,
			Duration: r.Duration,
		})
	}
	return t, nil
}

// ExtractArtists projects the catalog into the unpartitioned artists table,
// keeping the first record seen for each artist_id.
func ExtractArtists(recs []*CatalogRecord, seen KeySet) (*Table, error) {
	t := NewTable(TableArtists, new(Artist))
	for _, r := range recs {
		isNew, err := seen.Add(r.ArtistID)
		if err != nil {
			return nil, errors.Wrap(err, "deduplicating artists")
		}
		if !isNew {
			continue
		}
		t.Append(Artist{
			ArtistID:  r.ArtistID,
			Name:      r.ArtistName,
			Location:  r.ArtistLocation,
			Latitude:  r.ArtistLatitude,
			Longitude: r.ArtistLongitude,
		})
	}
	return t, nil
}

// drain calls parse on every record of src until io.EOF. Malformed records,
// whether the source or parse reports them, are logged at debug level and
// counted instead of returned. The source is closed when drain returns.
func drain(ctx context.Context, src Source, log Logger, parse func(rec interface{}) error) (skipped int64, err error) {
	defer func() {
		if cerr := closeSource(src); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing source")
		}
	}()
	for i := 0; ; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return skipped, err
			}
		}
		rec, err := src.Record()
		if err == io.EOF {
			return skipped, nil
		}
		if err == nil {
			err = parse(rec)
		}
		if IsMalformed(err) {
			log.Debugf("skipping record %d: %v", i, err)
			skipped++
			continue
		}
		if err != nil {
			return skipped, errors.Wrapf(err, "record %d", i)
		}
	}
}
