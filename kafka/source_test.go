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

package kafka

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/json"
	"github.com/sparkify/datalake/test"
)

type fakeOffsets map[int32][2]int64

func (f fakeOffsets) GetOffset(topic string, partition int32, time int64) (int64, error) {
	r, ok := f[partition]
	if !ok {
		return 0, errors.Errorf("no partition %d", partition)
	}
	if time == sarama.OffsetOldest {
		return r[0], nil
	}
	return r[1], nil
}

func newMockTopic(t *testing.T) (*mocks.Consumer, fakeOffsets) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{"events": {1, 0, 2}})
	consumer.ExpectConsumePartition("events", 0, 0).
		YieldMessage(&sarama.ConsumerMessage{Offset: 0, Value: []byte(`{"page": "NextSong", "userId": "10"}`)}).
		YieldMessage(&sarama.ConsumerMessage{Offset: 1, Value: []byte(`oops`)})
	consumer.ExpectConsumePartition("events", 1, 5).
		YieldMessage(&sarama.ConsumerMessage{Offset: 5, Value: []byte(`{"page": "Home", "userId": "26"}`)})
	return consumer, fakeOffsets{0: {0, 2}, 1: {5, 6}, 2: {3, 3}}
}

func TestSource(t *testing.T) {
	consumer, offsets := newMockTopic(t)
	src := NewSource()
	if err := src.OpenWith(consumer, offsets); err != nil {
		t.Fatalf("opening: %v", err)
	}
	defer src.Close()

	var users []string
	malformed := 0
	for {
		rec, err := src.Record()
		if err == io.EOF {
			break
		} else if datalake.IsMalformed(err) {
			malformed++
			continue
		} else if err != nil {
			t.Fatalf("reading: %v", err)
		}
		users = append(users, rec.(map[string]interface{})["userId"].(string))
	}
	test.MustBe(t, []string{"10", "26"}, users)
	test.MustBe(t, 1, malformed, "malformed")

	if _, err := src.Record(); err != io.EOF {
		t.Fatalf("expected io.EOF after the end, got %v", err)
	}
}

func TestSourceMaxMsgs(t *testing.T) {
	consumer, offsets := newMockTopic(t)
	src := NewSource()
	src.MaxMsgs = 1
	if err := src.OpenWith(consumer, offsets); err != nil {
		t.Fatalf("opening: %v", err)
	}
	if _, err := src.Record(); err != nil {
		t.Fatalf("reading first: %v", err)
	}
	if _, err := src.Record(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
}

func TestSourceCanceled(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{"events": {0}})
	// the offsets promise a message which never arrives
	consumer.ExpectConsumePartition("events", 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	src := NewSource().WithContext(ctx)
	src.Timeout = time.Hour
	if err := src.OpenWith(consumer, fakeOffsets{0: {0, 1}}); err != nil {
		t.Fatalf("opening: %v", err)
	}
	defer src.Close()

	errs := make(chan error, 1)
	go func() {
		_, err := src.Record()
		errs <- err
	}()
	cancel()
	select {
	case err := <-errs:
		if errors.Cause(err) != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Record still waiting after cancel")
	}
}

func TestSourceUnknownTopic(t *testing.T) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{"other": {0}})
	src := NewSource()
	if err := src.OpenWith(consumer, fakeOffsets{}); err == nil {
		t.Fatal("expected error for unknown topic")
	}
	if _, err := NewSource().Record(); err == nil {
		t.Fatal("expected error reading unopened source")
	}
}

func TestProducer(t *testing.T) {
	mp := mocks.NewSyncProducer(t, nil)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		rec, err := json.Decode(val)
		if err != nil {
			return err
		}
		if rec["page"] != "NextSong" {
			return errors.Errorf("unexpected page in %s", val)
		}
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(mp, "events")
	if err := p.Publish("10", map[string]string{"page": "NextSong"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if err := p.Publish("10", map[string]string{"page": "Home"}); errors.Cause(err) != sarama.ErrOutOfBrokers {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if err := mp.Close(); err != nil {
		t.Fatalf("closing mock: %v", err)
	}
}
