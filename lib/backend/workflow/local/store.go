/*
 * Copyright 2018-2023, CS Systemes d'Information, http://csgroup.eu
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package local

import (
	"context"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/CS-SI/osplugin/lib/utils/data"
	"github.com/CS-SI/osplugin/lib/utils/data/json"
	"github.com/CS-SI/osplugin/lib/utils/fail"
)

// Store persists the runtime properties of instances between operation invocations
type Store interface {
	Load(ctx context.Context, instanceID string) (data.Bag, fail.Error)
	Save(ctx context.Context, instanceID string, props data.Bag) fail.Error
}

// MemoryStore keeps runtime properties in memory
type MemoryStore struct {
	lock  sync.RWMutex
	items map[string][]byte
	saves map[string]int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string][]byte{}, saves: map[string]int{}}
}

// Load returns a copy of the properties saved for the instance, an empty bag if none
func (s *MemoryStore) Load(_ context.Context, instanceID string) (data.Bag, fail.Error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	raw, ok := s.items[instanceID]
	if !ok {
		return data.Bag{}, nil
	}
	return decode(raw)
}

// Save records a copy of the properties of the instance
func (s *MemoryStore) Save(_ context.Context, instanceID string, props data.Bag) fail.Error {
	raw, xerr := encode(props)
	if xerr != nil {
		return xerr
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.items[instanceID] = raw
	s.saves[instanceID]++
	return nil
}

// Saves returns how many times the properties of the instance have been saved
func (s *MemoryStore) Saves(instanceID string) int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves[instanceID]
}

// BadgerStore keeps runtime properties in a badger database
type BadgerStore struct {
	db *badger.DB
}

const keyPrefix = "instance/"

// NewBadgerStore opens (or creates) the badger database in 'path'
func NewBadgerStore(path string) (*BadgerStore, fail.Error) {
	if path == "" {
		return nil, fail.InvalidParameterCannotBeEmptyStringError("path")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fail.NotAvailableErrorWithCause(err, "failed to open store in '%s'", path)
	}
	return &BadgerStore{db: db}, nil
}

// NewInMemoryBadgerStore creates a badger store without persistence
func NewInMemoryBadgerStore() (*BadgerStore, fail.Error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fail.NotAvailableErrorWithCause(err, "failed to open in-memory store")
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database
func (s *BadgerStore) Close() fail.Error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fail.Wrap(err, "failed to close store")
	}
	return nil
}

// Load returns the properties saved for the instance, an empty bag if none
func (s *BadgerStore) Load(ctx context.Context, instanceID string) (data.Bag, fail.Error) {
	if s == nil || s.db == nil {
		return nil, fail.InvalidInstanceError()
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + instanceID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == badger.ErrKeyNotFound:
		logrus.WithContext(ctx).Debugf("no runtime properties stored yet for instance '%s'", instanceID)
		return data.Bag{}, nil
	case err != nil:
		return nil, fail.Wrap(err, "failed to load runtime properties of instance '%s'", instanceID)
	}
	return decode(raw)
}

// Save records the properties of the instance
func (s *BadgerStore) Save(_ context.Context, instanceID string, props data.Bag) fail.Error {
	if s == nil || s.db == nil {
		return fail.InvalidInstanceError()
	}
	raw, xerr := encode(props)
	if xerr != nil {
		return xerr
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+instanceID), raw)
	})
	if err != nil {
		return fail.Wrap(err, "failed to save runtime properties of instance '%s'", instanceID)
	}
	return nil
}

func encode(props data.Bag) ([]byte, fail.Error) {
	if props == nil {
		props = data.Bag{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fail.Wrap(err, "failed to serialize runtime properties")
	}
	return raw, nil
}

func decode(raw []byte) (data.Bag, fail.Error) {
	out := data.Bag{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fail.Wrap(err, "failed to deserialize runtime properties")
	}
	return out, nil
}
