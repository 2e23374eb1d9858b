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

package leveldb

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/pilosa/dsk"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotEmpty is returned when writing a feature map into an index which
// already holds one.
const ErrNotEmpty = dsk.Error("feature index is not empty")

// FeatureIndex persists the ids and counts of an ImmutableFeatureMap in
// leveldb, so that features can be looked up by name or id after the process
// which built the dataset is gone. It is safe for concurrent use.
type FeatureIndex struct {
	idMap   *leveldb.DB
	nameMap *leveldb.DB
}

type errorList []error

func (errs errorList) Error() string {
	errstrings := make([]string, len(errs))
	for i, err := range errs {
		errstrings[i] = err.Error()
	}
	return strings.Join(errstrings, "; ")
}

// Open opens (creating if necessary) the index stored in dirname.
func Open(dirname string) (*FeatureIndex, error) {
	err := os.MkdirAll(dirname, 0700)
	if err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	fi := &FeatureIndex{}
	fi.idMap, err = leveldb.OpenFile(filepath.Join(dirname, "ids"), &opt.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "opening leveldb id map")
	}
	fi.nameMap, err = leveldb.OpenFile(filepath.Join(dirname, "names"), &opt.Options{})
	if err != nil {
		fi.idMap.Close()
		return nil, errors.Wrap(err, "opening leveldb name map")
	}
	return fi, nil
}

// Close closes the two leveldbs used by the FeatureIndex.
func (fi *FeatureIndex) Close() error {
	errs := make(errorList, 0)
	err := fi.idMap.Close()
	if err != nil {
		errs = append(errs, errors.Wrap(err, "closing idMap"))
	}
	err = fi.nameMap.Close()
	if err != nil {
		errs = append(errs, errors.Wrap(err, "closing nameMap"))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func idKey(id int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

// Write stores every feature of fm. It returns ErrNotEmpty if the index
// already holds features, since ids from different maps can't be mixed.
func (fi *FeatureIndex) Write(fm *dsk.ImmutableFeatureMap) error {
	n, err := fi.Size()
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.Wrapf(ErrNotEmpty, "holds %d features", n)
	}
	idBatch, nameBatch := new(leveldb.Batch), new(leveldb.Batch)
	for id, info := range fm.Infos() {
		val := make([]byte, 16)
		binary.BigEndian.PutUint64(val[:8], uint64(id))
		binary.BigEndian.PutUint64(val[8:], uint64(info.Count()))
		nameBatch.Put([]byte(info.Name()), val)
		idBatch.Put(idKey(id), []byte(info.Name()))
	}
	if err := fi.nameMap.Write(nameBatch, nil); err != nil {
		return errors.Wrap(err, "writing names")
	}
	return errors.Wrap(fi.idMap.Write(idBatch, nil), "writing ids")
}

// ID returns the id of the named feature, and false if it isn't indexed.
func (fi *FeatureIndex) ID(name string) (int, bool, error) {
	val, err := fi.nameMap.Get([]byte(name), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	} else if err != nil {
		return 0, false, errors.Wrapf(err, "getting '%s'", name)
	}
	return int(binary.BigEndian.Uint64(val[:8])), true, nil
}

// Count returns the number of times the named feature was counted in the
// dataset the index was built from, and false if it isn't indexed.
func (fi *FeatureIndex) Count(name string) (int, bool, error) {
	val, err := fi.nameMap.Get([]byte(name), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	} else if err != nil {
		return 0, false, errors.Wrapf(err, "getting '%s'", name)
	}
	return int(binary.BigEndian.Uint64(val[8:])), true, nil
}

// Name returns the name of the feature with the given id, and false if there
// is no such id.
func (fi *FeatureIndex) Name(id int) (string, bool, error) {
	val, err := fi.idMap.Get(idKey(id), nil)
	if err == leveldb.ErrNotFound {
		return "", false, nil
	} else if err != nil {
		return "", false, errors.Wrapf(err, "getting id %d", id)
	}
	return string(val), true, nil
}

// Size returns the number of indexed features.
func (fi *FeatureIndex) Size() (int, error) {
	iter := fi.idMap.NewIterator(nil, nil)
	defer iter.Release()
	n := 0
	for iter.Next() {
		n++
	}
	return n, errors.Wrap(iter.Error(), "iterating ids")
}
