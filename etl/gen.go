package etl

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/fake"
	"github.com/sparkify/datalake/kafka"
)

// GenMain contains the configuration for generating a fake dataset.
type GenMain struct {
	Output     string   `help:"Directory to write song_data and log_data under."`
	Seed       int64    `help:"Random seed. The same seed and sizes always give the same data."`
	Songs      int      `help:"Number of songs in the catalog."`
	Artists    int      `help:"Number of artists the songs are spread over."`
	Users      int      `help:"Number of users."`
	Events     int      `help:"Number of log events."`
	Unknown    float64  `help:"Fraction of plays of songs which aren't in the catalog."`
	Start      string   `help:"Date of the first event, as YYYY-MM-DD."`
	KafkaHosts []string `help:"Comma separated list of Kafka hosts and ports."`
	KafkaTopic string   `help:"Also publish the events to this Kafka topic."`

	// Publisher overrides the Kafka producer built from KafkaHosts.
	Publisher Publisher `flag:"-"`
}

// Publisher sends a keyed record somewhere. *kafka.Producer implements it.
type Publisher interface {
	Publish(key string, v interface{}) error
}

// NewGenMain gets a new GenMain with the default configuration.
func NewGenMain() *GenMain {
	conf := fake.DefaultConfig()
	return &GenMain{
		Seed:       conf.Seed,
		Songs:      conf.Songs,
		Artists:    conf.Artists,
		Users:      conf.Users,
		Events:     conf.Events,
		Unknown:    conf.Unknown,
		Start:      conf.Start.Format("2006-01-02"),
		KafkaHosts: []string{"localhost:9092"},
	}
}

// Run generates the dataset and writes and publishes it.
func (g *GenMain) Run() error {
	if g.Output == "" && g.KafkaTopic == "" {
		return datalake.ConfigErrorf("one of output or kafka-topic is required")
	}
	if g.Unknown < 0 || g.Unknown > 1 {
		return datalake.ConfigErrorf("unknown must be between 0 and 1, got %v", g.Unknown)
	}
	start, err := time.Parse("2006-01-02", g.Start)
	if err != nil {
		return datalake.ConfigErrorf("bad start date '%s': %v", g.Start, err)
	}
	d := fake.NewDataset(fake.Config{
		Seed:    g.Seed,
		Songs:   g.Songs,
		Artists: g.Artists,
		Users:   g.Users,
		Events:  g.Events,
		Unknown: g.Unknown,
		Start:   start,
	})
	if g.Output != "" {
		if err := d.Write(g.Output); err != nil {
			return errors.Wrap(err, "writing dataset")
		}
	}
	if g.KafkaTopic == "" {
		return nil
	}
	pub := g.Publisher
	if pub == nil {
		p, err := kafka.NewProducer(g.KafkaHosts, g.KafkaTopic)
		if err != nil {
			return err
		}
		defer p.Close()
		pub = p
	}
	for i, ev := range d.Events {
		if err := pub.Publish(ev.UserID, ev); err != nil {
			return errors.Wrapf(err, "publishing event %d", i)
		}
	}
	return nil
}
