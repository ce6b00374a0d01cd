/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mem

import (
	"sort"
	"strings"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
)

const MemoryPersistence driver.PersistenceType = "memory"

// Database keeps its entries in a map guarded by a lock.
// Updates are serialised and applied only when the update function succeeds.
type Database struct {
	lock   sync.RWMutex
	closed bool
	data   map[string][]byte
}

func New() *Database {
	return &Database{data: map[string][]byte{}}
}

func (db *Database) Get(key string) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	if db.closed {
		return nil, errors.New("database closed")
	}
	return clone(db.data[key]), nil
}

func (db *Database) Update(f func(w driver.KeyValueWriter) error) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if db.closed {
		return errors.New("database closed")
	}

	txn := &txn{db: db, writes: map[string][]byte{}}
	if err := f(txn); err != nil {
		return err
	}
	for k, v := range txn.writes {
		if v == nil {
			delete(db.data, k)
			continue
		}
		db.data[k] = v
	}
	return nil
}

func (db *Database) Keys(prefix string) ([]string, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	if db.closed {
		return nil, errors.New("database closed")
	}

	var keys []string
	for k := range db.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.closed = true
	db.data = nil
	return nil
}

// txn stages writes. A nil entry marks a deletion.
type txn struct {
	db     *Database
	writes map[string][]byte
}

func (t *txn) Get(key string) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		return clone(v), nil
	}
	return clone(t.db.data[key]), nil
}

func (t *txn) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	t.writes[key] = clone(value)
	return nil
}

func (t *txn) Delete(key string) error {
	t.writes[key] = nil
	return nil
}

func clone(v []byte) []byte {
	if v == nil {
		return nil
	}
	return append([]byte{}, v...)
}
