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

// Package boltdb keeps dedup keys in a boltdb file rather than in memory.
// The records being deduplicated are still held in memory by the pipeline.
package boltdb

import (
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
)

// Store is a boltdb file holding one bucket of keys per table.
type Store struct {
	Db *bolt.DB
}

// Open opens or creates the boltdb file at filename.
func Open(filename string) (*Store, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second, NoGrowSync: true})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	// The keys are scratch data for one run.
	db.NoSync = true
	return &Store{Db: db}, nil
}

// Close closes the underlying boltdb.
func (s *Store) Close() error {
	return errors.Wrap(s.Db.Close(), "closing db")
}

// KeySet returns an empty KeySet for table, dropping whatever keys an
// earlier run left for it. It is a datalake.KeySetFunc.
func (s *Store) KeySet(table string) (datalake.KeySet, error) {
	name := []byte(table)
	err := s.Db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
			return errors.Wrap(err, "dropping old bucket")
		}
		_, err := tx.CreateBucket(name)
		return errors.Wrap(err, "creating bucket")
	})
	if err != nil {
		return nil, errors.Wrapf(err, "preparing key set for %s", table)
	}
	return &KeySet{db: s.Db, bucket: name}, nil
}

// Len returns the number of keys held for table.
func (s *Store) Len(table string) (n int, err error) {
	err = s.Db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return errors.Errorf("no key set for %s", table)
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// KeySet is a datalake.KeySet backed by one bucket.
type KeySet struct {
	db     *bolt.DB
	bucket []byte
}

var present = []byte{1}

// Add implements datalake.KeySet.
func (k *KeySet) Add(key string) (isNew bool, err error) {
	// bolt refuses empty keys
	bkey := append([]byte{'k'}, key...)
	err = k.db.View(func(tx *bolt.Tx) error {
		isNew = tx.Bucket(k.bucket).Get(bkey) == nil
		return nil
	})
	if err != nil || !isNew {
		return isNew, err
	}
	err = k.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.bucket)
		isNew = b.Get(bkey) == nil
		if !isNew {
			return nil
		}
		return errors.Wrap(b.Put(bkey, present), "putting key")
	})
	return isNew, err
}

// Close implements datalake.KeySet. The keys stay in the file until the
// next KeySet call for the same table.
func (k *KeySet) Close() error {
	return nil
}
