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

// Package leveldb keeps dedup keys in leveldb rather than in memory. The
// records being deduplicated are still held in memory by the pipeline.
package leveldb

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// KeySet is a datalake.KeySet stored in its own leveldb directory.
type KeySet struct {
	dirname string
	db      *leveldb.DB
	lock    bucketVLock
}

// NewKeySetFunc returns a datalake.KeySetFunc which puts each table's keys in
// a leveldb under dirname.
func NewKeySetFunc(dirname string) datalake.KeySetFunc {
	return func(table string) (datalake.KeySet, error) {
		return NewKeySet(filepath.Join(dirname, table+"-keys"))
	}
}

// NewKeySet creates an empty KeySet at dirname, removing anything already
// there.
func NewKeySet(dirname string) (*KeySet, error) {
	if err := os.RemoveAll(dirname); err != nil {
		return nil, errors.Wrap(err, "removing old keys")
	}
	if err := os.MkdirAll(filepath.Dir(dirname), 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	return &KeySet{
		dirname: dirname,
		db:      db,
		lock:    newBucketVLock(),
	}, nil
}

var present = []byte{1}

// Add implements datalake.KeySet.
func (k *KeySet) Add(key string) (bool, error) {
	bkey := []byte(key)
	k.lock.Lock(bkey)
	defer k.lock.Unlock(bkey)
	ok, err := k.db.Has(bkey, nil)
	if err != nil {
		return false, errors.Wrap(err, "looking up key")
	}
	if ok {
		return false, nil
	}
	err = k.db.Put(bkey, present, &opt.WriteOptions{})
	if err != nil {
		return false, errors.Wrap(err, "putting key")
	}
	return true, nil
}

// Close closes the leveldb and deletes its files.
func (k *KeySet) Close() error {
	if err := k.db.Close(); err != nil {
		return errors.Wrap(err, "closing leveldb")
	}
	return errors.Wrap(os.RemoveAll(k.dirname), "removing keys")
}

type bucketVLock struct {
	ms []sync.Mutex
}

func newBucketVLock() bucketVLock {
	return bucketVLock{
		ms: make([]sync.Mutex, 1000),
	}
}

func (b bucketVLock) Lock(val []byte) {
	hsh := fnv.New32a()
	hsh.Write(val) // never returns error for hash
	b.ms[hsh.Sum32()%1000].Lock()
}

func (b bucketVLock) Unlock(val []byte) {
	hsh := fnv.New32a()
	hsh.Write(val) // never returns error for hash
	b.ms[hsh.Sum32()%1000].Unlock()
}
