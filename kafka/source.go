// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package kafka reads event log records from a Kafka topic and publishes
// generated events to one.
package kafka

import (
	"context"
	"io"
	"io/ioutil"
	"log"
	"sort"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/json"
)

// Offsetter looks up partition offsets. sarama.Client implements it.
type Offsetter interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
}

// Source implements datalake.Source by reading every message in a topic
// which existed when it was opened. Each message value is one json event.
// Unlike a consumer group, it stops with io.EOF once it has caught up, so a
// run over a topic is a batch like a run over files.
type Source struct {
	Hosts   []string
	Topic   string
	MaxMsgs int
	// Timeout bounds the wait for a message known to exist.
	Timeout time.Duration

	numMsgs int
	ctx     context.Context

	client    sarama.Client
	consumer  sarama.Consumer
	ownClient bool

	parts []partition
	pidx  int
	pc    sarama.PartitionConsumer
	seen  int64
}

type partition struct {
	id     int32
	oldest int64
	end    int64
}

// NewSource gets a new Source
func NewSource() *Source {
	return &Source{
		Hosts:   []string{"localhost:9092"},
		Topic:   "events",
		Timeout: 30 * time.Second,
		ctx:     context.Background(),
	}
}

// WithContext sets the context which stops a Record waiting on a partition.
func (s *Source) WithContext(ctx context.Context) *Source {
	s.ctx = ctx
	return s
}

// Open connects to the brokers in Hosts and captures the offset range of
// every partition of Topic.
func (s *Source) Open() error {
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := sarama.NewConfig()
	config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true

	client, err := sarama.NewClient(s.Hosts, config)
	if err != nil {
		return errors.Wrap(err, "getting new client")
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		client.Close()
		return errors.Wrap(err, "getting new consumer")
	}
	if err := s.OpenWith(consumer, client); err != nil {
		consumer.Close()
		client.Close()
		return err
	}
	s.client = client
	s.ownClient = true
	return nil
}

// OpenWith uses consumer to read and offsets to find where each partition
// starts and ends. The caller keeps ownership of both.
func (s *Source) OpenWith(consumer sarama.Consumer, offsets Offsetter) error {
	s.consumer = consumer
	ids, err := consumer.Partitions(s.Topic)
	if err != nil {
		return errors.Wrapf(err, "getting partitions of %s", s.Topic)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.parts = s.parts[:0]
	for _, id := range ids {
		oldest, err := offsets.GetOffset(s.Topic, id, sarama.OffsetOldest)
		if err != nil {
			return errors.Wrapf(err, "getting oldest offset of partition %d", id)
		}
		end, err := offsets.GetOffset(s.Topic, id, sarama.OffsetNewest)
		if err != nil {
			return errors.Wrapf(err, "getting newest offset of partition %d", id)
		}
		if end > oldest {
			s.parts = append(s.parts, partition{id: id, oldest: oldest, end: end})
		}
	}
	s.pidx = 0
	return nil
}

// Record returns the next event from the topic, decoded from json. A value
// which isn't a json object yields a malformed record error.
func (s *Source) Record() (interface{}, error) {
	if s.consumer == nil {
		return nil, errors.New("kafka source not opened")
	}
	if s.MaxMsgs > 0 {
		if s.numMsgs >= s.MaxMsgs {
			return nil, io.EOF
		}
	}
	msg, err := s.next()
	if err != nil {
		return nil, err
	}
	s.numMsgs++
	rec, err := json.Decode(msg.Value)
	if err != nil {
		return nil, datalake.NewMalformedRecordError("partition %d offset %d: %v", msg.Partition, msg.Offset, err)
	}
	return rec, nil
}

func (s *Source) next() (*sarama.ConsumerMessage, error) {
	if s.pidx >= len(s.parts) {
		return nil, io.EOF
	}
	p := s.parts[s.pidx]
	if s.pc == nil {
		pc, err := s.consumer.ConsumePartition(s.Topic, p.id, p.oldest)
		if err != nil {
			return nil, errors.Wrapf(err, "consuming partition %d", p.id)
		}
		s.pc = pc
		s.seen = 0
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(s.Timeout)
	defer timer.Stop()
	select {
	case msg, ok := <-s.pc.Messages():
		if !ok {
			return nil, errors.Errorf("partition %d closed before offset %d", p.id, p.end)
		}
		s.seen++
		// Compacted topics have gaps, so the offset decides as well as the count.
		if msg.Offset >= p.end-1 || s.seen >= p.end-p.oldest {
			if err := s.closePartition(); err != nil {
				return nil, err
			}
		}
		return msg, nil
	case err := <-s.pc.Errors():
		return nil, errors.Wrapf(err, "reading partition %d", p.id)
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "waiting for partition %d", p.id)
	case <-timer.C:
		return nil, errors.Errorf("timed out waiting for partition %d", p.id)
	}
}

func (s *Source) closePartition() error {
	pc := s.pc
	s.pc = nil
	s.pidx++
	return errors.Wrap(pc.Close(), "closing partition consumer")
}

// Close closes the partition being read and, if Open created them, the
// consumer and client.
func (s *Source) Close() error {
	var err error
	if s.pc != nil {
		err = s.pc.Close()
		s.pc = nil
	}
	if s.ownClient {
		if cerr := s.consumer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := s.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.ownClient = false
	}
	return errors.Wrap(err, "closing kafka source")
}
