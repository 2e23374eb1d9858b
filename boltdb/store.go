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

package boltdb

import (
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/dsk"
	"github.com/pkg/errors"
)

var (
	recordBucket = []byte("records")
	hashBucket   = []byte("hashes")
)

// ErrNotFound is returned when no provenance is stored under a name.
const ErrNotFound = dsk.Error("provenance not found")

// Store persists provenances in a bolt db under names chosen by the caller.
// Each provenance is stored as the json encoding of its Record, and indexed by
// its hash so that equal provenances can be found. Store is safe for
// concurrent use.
type Store struct {
	Db *bolt.DB

	mu     sync.Mutex
	closed bool
}

// Open opens (creating if necessary) the bolt db at filename.
func Open(filename string) (s *Store, err error) {
	s = &Store{}
	s.Db, err = bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = s.Db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordBucket); err != nil {
			return errors.Wrap(err, "creating record bucket")
		}
		if _, err := tx.CreateBucketIfNotExists(hashBucket); err != nil {
			return errors.Wrap(err, "creating hash bucket")
		}
		return nil
	})
	if err != nil {
		s.Db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return s, nil
}

// Close syncs and closes the underlying boltdb. Closing more than once is a
// no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return s.Db.Close()
}

// Put stores p under name, replacing anything stored there before.
func (s *Store) Put(name string, p dsk.Provenance) error {
	data, err := json.Marshal(dsk.Flatten(p))
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}
	hash := make([]byte, 8)
	binary.BigEndian.PutUint64(hash, dsk.HashProvenance(p))
	err = s.Db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(recordBucket).Put([]byte(name), data)
		if err != nil {
			return errors.Wrap(err, "inserting into record bucket")
		}
		err = tx.Bucket(hashBucket).Put(hash, []byte(name))
		return errors.Wrap(err, "inserting into hash bucket")
	})
	return errors.Wrapf(err, "putting '%s'", name)
}

// Record returns the Record stored under name.
func (s *Store) Record(name string) (dsk.Record, error) {
	var data []byte
	err := s.Db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(recordBucket).Get([]byte(name))
		if val == nil {
			return errors.Wrapf(ErrNotFound, "'%s'", name)
		}
		// val is only valid for the life of the transaction
		data = append([]byte(nil), val...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	var rec dsk.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrapf(err, "decoding record '%s'", name)
	}
	return rec, nil
}

// Get returns the provenance stored under name, rehydrated.
func (s *Store) Get(name string) (dsk.Provenance, error) {
	rec, err := s.Record(name)
	if err != nil {
		return nil, err
	}
	p, err := dsk.Rehydrate(rec)
	return p, errors.Wrapf(err, "rehydrating '%s'", name)
}

// Find returns the name of a stored provenance equal to p, and false if there
// is none.
func (s *Store) Find(p dsk.Provenance) (string, bool, error) {
	hash := make([]byte, 8)
	binary.BigEndian.PutUint64(hash, dsk.HashProvenance(p))
	var name string
	err := s.Db.View(func(tx *bolt.Tx) error {
		name = string(tx.Bucket(hashBucket).Get(hash))
		return nil
	})
	if err != nil || name == "" {
		return "", false, err
	}
	stored, err := s.Get(name)
	if errors.Cause(err) == ErrNotFound {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	if !dsk.EqualProvenance(stored, p) {
		return "", false, nil
	}
	return name, true, nil
}

// Names returns the names of every stored provenance in key order.
func (s *Store) Names() ([]string, error) {
	names := make([]string, 0)
	err := s.Db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, errors.Wrap(err, "listing names")
}
