// Package etl wires sources, sinks and stats together into a runnable
// pipeline configured from flags, environment and config files.
package etl

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/aws/s3"
	"github.com/sparkify/datalake/boltdb"
	"github.com/sparkify/datalake/file"
	"github.com/sparkify/datalake/kafka"
	"github.com/sparkify/datalake/leveldb"
	"github.com/sparkify/datalake/parquet"
	"github.com/sparkify/datalake/promstat"
	"github.com/sparkify/datalake/termstat"
	"go.uber.org/zap"
)

// Dedup stores.
const (
	DedupMemory  = "memory"
	DedupBolt    = "bolt"
	DedupLevelDB = "leveldb"
)

// Main contains the configuration for a run of the songplays pipeline.
type Main struct {
	SongData           string        `help:"Song catalog: a file, directory or glob, local or s3:// and s3a:// URLs."`
	LogData            string        `help:"User activity log: a file, directory or glob, local or s3:// and s3a:// URLs."`
	Output             string        `help:"Directory or s3:// URL the tables are written under."`
	Region             string        `help:"AWS region to use."`
	AWSAccessKeyID     string        `flag:"aws-access-key-id" help:"AWS access key id. The default credential chain is used if empty."`
	AWSSecretAccessKey string        `flag:"aws-secret-access-key" help:"AWS secret access key."`
	Concurrency        int           `help:"Number of songplays partitions joined at once."`
	PartitionSize      int           `help:"Number of plays per songplays partition."`
	MaxRowsPerFile     int           `help:"Maximum rows in each parquet file."`
	Mode               string        `help:"What to do with existing tables: overwrite or errorifexists."`
	DedupStore         string        `help:"Where dedup keys are kept: memory, bolt or leveldb."`
	DedupDir           string        `help:"Directory for the bolt or leveldb dedup store. A temporary directory if empty."`
	KafkaHosts         []string      `help:"Comma separated list of Kafka hosts and ports."`
	KafkaTopic         string        `help:"Read the activity log from this Kafka topic instead of log-data."`
	Pushgateway        string        `help:"Push run metrics to the Prometheus Pushgateway at this URL."`
	Stats              bool          `help:"Print stats to stderr while running."`
	Timeout            time.Duration `help:"Give up on the run after this long. Zero means never."`
	Verbose            bool          `help:"Enable debug logging."`

	// Log overrides the zap logger built from Verbose.
	Log *zap.Logger `flag:"-"`
	// S3 overrides the S3 client built from Region and the credentials.
	S3 s3iface.S3API `flag:"-"`
	// Report is the report of the last Run.
	Report *datalake.Report `flag:"-"`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		SongData:       "s3a://udacity-dend/song_data/*/*/*/*.json",
		LogData:        "s3a://udacity-dend/log_data/*/*/*.json",
		Region:         "us-west-2",
		Concurrency:    4,
		PartitionSize:  datalake.DefaultPartitionSize,
		MaxRowsPerFile: parquet.DefaultMaxRowsPerFile,
		Mode:           datalake.ModeOverwrite.String(),
		DedupStore:     DedupMemory,
		KafkaHosts:     []string{"localhost:9092"},
	}
}

// validate checks the configuration and returns the parsed write mode.
func (m *Main) validate() (datalake.WriteMode, error) {
	if m.SongData == "" {
		return 0, datalake.ConfigErrorf("song-data is required")
	}
	if m.LogData == "" && m.KafkaTopic == "" {
		return 0, datalake.ConfigErrorf("one of log-data or kafka-topic is required")
	}
	if m.Output == "" {
		return 0, datalake.ConfigErrorf("output is required")
	}
	if m.Concurrency < 1 {
		return 0, datalake.ConfigErrorf("concurrency must be positive, got %d", m.Concurrency)
	}
	switch m.DedupStore {
	case DedupMemory, DedupBolt, DedupLevelDB:
	default:
		return 0, datalake.ConfigErrorf("unknown dedup store '%s'", m.DedupStore)
	}
	return datalake.ParseWriteMode(m.Mode)
}

// Run runs the pipeline once.
func (m *Main) Run(ctx context.Context) (err error) {
	mode, err := m.validate()
	if err != nil {
		return err
	}
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	zl := m.Log
	if zl == nil {
		zl, err = newLogger(m.Verbose)
		if err != nil {
			return err
		}
		defer func() { _ = zl.Sync() }()
	}
	log := datalake.NewZapLogger(zl)

	catalog := m.sourceFunc(ctx, m.SongData)
	events := m.sourceFunc(ctx, m.LogData)
	if m.KafkaTopic != "" {
		events = m.kafkaSourceFunc(ctx)
	}

	store, err := m.store()
	if err != nil {
		return errors.Wrap(err, "getting output store")
	}
	sink := parquet.NewSink(store,
		parquet.OptSinkLogger(log.With("component", "sink")),
		parquet.OptSinkMaxRowsPerFile(m.MaxRowsPerFile),
	)

	keySets, closeKeys, err := m.keySets()
	if err != nil {
		return errors.Wrap(err, "getting dedup store")
	}
	defer func() {
		if cerr := closeKeys(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing dedup store")
		}
	}()

	prom := promstat.NewStatter("datalake")
	stats := statters{prom}
	if m.Stats {
		ts := termstat.NewCollector(os.Stderr)
		ts.Start(2 * time.Second)
		defer ts.Stop()
		stats = append(stats, ts)
	}

	p, err := datalake.NewPipeline(catalog, events, sink,
		datalake.OptPipelineLogger(log),
		datalake.OptPipelineStatter(stats),
		datalake.OptPipelineKeySets(keySets),
		datalake.OptPipelineConcurrency(m.Concurrency),
		datalake.OptPipelinePartitionSize(m.PartitionSize),
		datalake.OptPipelineMode(mode),
	)
	if err != nil {
		return err
	}
	m.Report, err = p.Run(ctx)
	log.Printf("%v", m.Report)
	if m.Pushgateway != "" {
		if perr := prom.Push(ctx, m.Pushgateway, "datalake_etl", p.RunID); perr != nil {
			log.Printf("%v", perr)
		}
	}
	return errors.Wrap(err, "running pipeline")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	conf := zap.NewProductionConfig()
	conf.Encoding = "console"
	conf.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if verbose {
		conf.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := conf.Build()
	return l, errors.Wrap(err, "building logger")
}

func (m *Main) s3Client() (s3iface.S3API, error) {
	if m.S3 != nil {
		return m.S3, nil
	}
	var err error
	m.S3, err = s3.NewClient(s3.Config{
		Region:          m.Region,
		AccessKeyID:     m.AWSAccessKeyID,
		SecretAccessKey: m.AWSSecretAccessKey,
	})
	return m.S3, err
}

// sourceFunc returns a func opening loc afresh each time it's called.
func (m *Main) sourceFunc(ctx context.Context, loc string) datalake.SourceFunc {
	return func() (datalake.Source, error) {
		if !s3.IsURL(loc) {
			return file.NewSource(file.OptSrcPath(loc))
		}
		svc, err := m.s3Client()
		if err != nil {
			return nil, err
		}
		return s3.NewSource(s3.OptSrcURL(loc), s3.OptSrcClient(svc), s3.OptSrcContext(ctx))
	}
}

func (m *Main) kafkaSourceFunc(ctx context.Context) datalake.SourceFunc {
	return func() (datalake.Source, error) {
		src := kafka.NewSource().WithContext(ctx)
		src.Hosts = m.KafkaHosts
		src.Topic = m.KafkaTopic
		if err := src.Open(); err != nil {
			return nil, errors.Wrap(err, "opening kafka source")
		}
		return src, nil
	}
}

func (m *Main) store() (datalake.Store, error) {
	if !s3.IsURL(m.Output) {
		return file.NewStore(m.Output)
	}
	svc, err := m.s3Client()
	if err != nil {
		return nil, err
	}
	return s3.NewStore(svc, m.Output)
}

// keySets returns the KeySetFunc for DedupStore and a func releasing
// whatever it holds.
func (m *Main) keySets() (datalake.KeySetFunc, func() error, error) {
	if m.DedupStore == DedupMemory {
		return datalake.NewMapKeySetFunc, func() error { return nil }, nil
	}
	dir := m.DedupDir
	cleanup := func() error { return nil }
	if dir == "" {
		tmp, err := os.MkdirTemp("", "datalake-keys")
		if err != nil {
			return nil, nil, errors.Wrap(err, "making temp dir")
		}
		dir = tmp
		cleanup = func() error { return os.RemoveAll(tmp) }
	}
	if m.DedupStore == DedupLevelDB {
		return leveldb.NewKeySetFunc(dir), cleanup, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, errors.Wrap(err, "making dedup dir")
	}
	bs, err := boltdb.Open(filepath.Join(dir, "keys.db"))
	if err != nil {
		return nil, nil, err
	}
	return bs.KeySet, func() error {
		if err := bs.Close(); err != nil {
			return err
		}
		return cleanup()
	}, nil
}

// statters fans stats out to several Statters.
type statters []datalake.Statter

func (s statters) Count(name string, value int64, rate float64, tags ...string) {
	for _, st := range s {
		st.Count(name, value, rate, tags...)
	}
}

func (s statters) Gauge(name string, value float64, rate float64, tags ...string) {
	for _, st := range s {
		st.Gauge(name, value, rate, tags...)
	}
}

func (s statters) Timing(name string, value time.Duration, rate float64, tags ...string) {
	for _, st := range s {
		st.Timing(name, value, rate, tags...)
	}
}
