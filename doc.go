// Package datalake turns a song catalog and a log of user listening events
// into a small star schema stored as partitioned Parquet tables.
//
// The work is split into stages, each of which has an interface in this
// package and one or more implementations in sub-packages.
//
// 1. Source
//
//	A datalake.Source hands out raw records one at a time. The file, s3 and
//	kafka packages read newline delimited JSON from local paths or globs,
//	S3 buckets and Kafka topics respectively, all decoded by the json
//	package. Sources don't interpret the data; a line which isn't valid JSON
//	is reported as a malformed record and skipped by the caller.
//
// 2. Extractors
//
//	ParseCatalogRecord and ParseEvent turn raw records into typed ones. The
//	catalog feeds ExtractSongs and ExtractArtists. The event log is filtered
//	to NextSong plays which feed ExtractUsers and, once Enrich has broken
//	each play's timestamp down with EpochMillisToTimeEntry, ExtractTime.
//	Deduplication keeps the first record seen for a key; the KeySet holding
//	the keys lives in memory or, for large inputs, in the boltdb or leveldb
//	packages.
//
// 3. Fact builder
//
//	FactBuilder joins plays to the catalog on artist name and song title.
//	The join is an inner join: plays without a match are counted and left
//	out. Plays are split into partitions joined concurrently, and each
//	partition draws songplay ids from its own range of a RangeAllocator.
//
// 4. Sink
//
//	A datalake.Sink writes each finished table. The parquet package writes
//	Hive style partition directories to a Store, either a local directory
//	(file.Store) or an S3 prefix (s3.Store). Tables are overwritten on every
//	run and are written independently of each other, so a failed run can
//	leave some tables from the new run and some from the previous one.
//
// Pipeline strings the stages together and returns a Report accounting for
// every record which didn't make it into an output table.
package datalake
