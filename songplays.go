package datalake

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultPartitionSize is the number of plays per fact table partition.
const DefaultPartitionSize = 8192

type joinKey struct {
	artist string
	title  string
}

// CatalogIndex is the build side of the songplays join: catalog records
// hashed on (artist_name, title). Records are not deduplicated, so a play
// matching several catalog entries produces one songplay per entry.
type CatalogIndex struct {
	m    map[joinKey][]*CatalogRecord
	size int
}

// NewCatalogIndex indexes recs, keeping their order within each key.
func NewCatalogIndex(recs []*CatalogRecord) *CatalogIndex {
	idx := &CatalogIndex{m: make(map[joinKey][]*CatalogRecord)}
	for _, r := range recs {
		k := joinKey{artist: r.ArtistName, title: r.Title}
		idx.m[k] = append(idx.m[k], r)
	}
	idx.size = len(recs)
	return idx
}

// Lookup returns the catalog records whose artist name and title equal the
// given values exactly.
func (c *CatalogIndex) Lookup(artist, title string) []*CatalogRecord {
	return c.m[joinKey{artist: artist, title: title}]
}

// Len returns the number of indexed records.
func (c *CatalogIndex) Len() int {
	return c.size
}

// JoinCounts tallies the plays left out of the songplays table.
type JoinCounts struct {
	// MissingKey counts plays with an empty artist or song.
	MissingKey int64
	// Unjoined counts plays with no catalog match.
	Unjoined int64
}

func (j *JoinCounts) add(o JoinCounts) {
	j.MissingKey += o.MissingKey
	j.Unjoined += o.Unjoined
}

// FactBuilder joins enriched plays to the catalog and assigns songplay ids.
type FactBuilder struct {
	// Concurrency bounds the number of partitions joined at once.
	Concurrency int
	// PartitionSize is the number of plays in each partition.
	PartitionSize int

	alloc RangeAllocator
}

// NewFactBuilder returns a FactBuilder drawing songplay ids from alloc.
func NewFactBuilder(alloc RangeAllocator) *FactBuilder {
	return &FactBuilder{
		Concurrency:   1,
		PartitionSize: DefaultPartitionSize,
		alloc:         alloc,
	}
}

// Build produces the songplays table, partitioned by year and month. This is
// an inner join: plays without an artist and song, or without a catalog
// match, are left out and counted in the returned JoinCounts.
//
// Plays are split into partitions in order and each partition gets its own ID
// range, taken before any worker starts, so rows come out in play order and
// ids are unique and increasing within a partition.
func (b *FactBuilder) Build(ctx context.Context, plays []*Play, idx *CatalogIndex) (*Table, JoinCounts, error) {
	var total JoinCounts
	size := b.PartitionSize
	if size <= 0 {
		size = DefaultPartitionSize
	}
	nparts := (len(plays) + size - 1) / size
	nexters := make([]RangeNexter, nparts)
	for p := range nexters {
		var err error
		nexters[p], err = NewRangeNexter(b.alloc)
		if err != nil {
			return nil, total, errors.Wrapf(err, "getting id range for partition %d", p)
		}
	}

	results := make([][]interface{}, nparts)
	counts := make([]JoinCounts, nparts)
	eg, ctx := errgroup.WithContext(ctx)
	if b.Concurrency > 0 {
		eg.SetLimit(b.Concurrency)
	}
	for p := 0; p < nparts; p++ {
		p := p
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lo, hi := p*size, min((p+1)*size, len(plays))
			var err error
			results[p], counts[p], err = joinPartition(plays[lo:hi], idx, nexters[p])
			return errors.Wrapf(err, "joining partition %d", p)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, total, err
	}

	t := NewTable(TableSongplays, new(Songplay), "year", "month")
	for p := range results {
		t.Rows = append(t.Rows, results[p]...)
		total.add(counts[p])
	}
	return t, total, nil
}

func joinPartition(plays []*Play, idx *CatalogIndex, ids RangeNexter) (rows []interface{}, counts JoinCounts, err error) {
	for _, p := range plays {
		if p.Artist == "" || p.Song == "" {
			counts.MissingKey++
			continue
		}
		matches := idx.Lookup(p.Artist, p.Song)
		if len(matches) == 0 {
			counts.Unjoined++
			continue
		}
		for _, m := range matches {
			id, err := ids.Next()
			if err != nil {
				return nil, counts, errors.Wrap(err, "getting songplay id")
			}
			rows = append(rows, Songplay{
				SongplayID: int64(id),
				StartTime:  p.Time.StartTime,
				UserID:     p.UserID,
				Level:      p.Level,
				SongID:     m.SongID,
				ArtistID:   m.ArtistID,
				SessionID:  p.SessionID,
				Location:   p.Location,
				UserAgent:  p.UserAgent,
				Year:       p.Time.Year,
				Month:      p.Time.Month,
			})
		}
	}
	return rows, counts, nil
}
