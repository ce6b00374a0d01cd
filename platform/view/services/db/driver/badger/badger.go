/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/hyperledger-labs/license-ledger/pkg/utils"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
)

const (
	BadgerPersistence driver.PersistenceType = "badger"

	conflictRetries = 10
	conflictDelay   = 5 * time.Millisecond
)

var logger = logging.MustGetLogger("db.driver.badger")

type Opts struct {
	Path     string
	InMemory bool
}

type DB struct {
	db            *badger.DB
	retry         utils.RetryRunner
	cancelCleaner context.CancelFunc
}

func OpenDB(opts Opts) (*DB, error) {
	if len(opts.Path) == 0 && !opts.InMemory {
		return nil, errors.Errorf("path cannot be empty")
	}

	opt := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		opt = badger.DefaultOptions("").WithInMemory(true)
	}
	// let's pass our logger badger
	opt.Logger = logger

	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open DB at '%s'", opts.Path)
	}

	// count number of key
	counter := uint64(0)
	if err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			counter++
		}
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to count number of keys")
	}
	logger.Debugf("badger db at [%s] contains [%d] keys", opts.Path, counter)

	return &DB{
		db:            db,
		retry:         utils.NewProbabilisticRetryRunner(conflictRetries, int64(conflictDelay/time.Millisecond), true),
		cancelCleaner: autoCleaner(db, defaultGCInterval, defaultGCDiscardRatio),
	}, nil
}

func (db *DB) Close() error {
	err := db.db.Close()
	if err != nil {
		return errors.Wrap(err, "could not close DB")
	}

	// stop our auto cleaner if we have one
	if db.cancelCleaner != nil {
		db.cancelCleaner()
	}

	return nil
}

func (db *DB) Get(key string) ([]byte, error) {
	var value []byte
	err := db.db.View(func(txn *badger.Txn) error {
		v, err := txnGet(txn, key)
		value = v
		return err
	})
	return value, err
}

// Update runs f in a badger read-write transaction.
// Optimistic concurrency conflicts are retried, any other error aborts the transaction.
func (db *DB) Update(f func(w driver.KeyValueWriter) error) error {
	return db.retry.RunWithErrors(func() (bool, error) {
		err := db.db.Update(func(txn *badger.Txn) error {
			return f(&writer{txn: txn})
		})
		if errors.Is(err, badger.ErrConflict) {
			logger.Debugf("conflict while updating, retrying")
			return false, err
		}
		return true, err
	})
}

func (db *DB) Keys(prefix string) ([]string, error) {
	var keys []string
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list keys with prefix [%s]", prefix)
	}
	return keys, nil
}

type writer struct {
	txn *badger.Txn
}

func (w *writer) Get(key string) ([]byte, error) {
	return txnGet(w.txn, key)
}

func (w *writer) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if err := w.txn.Set([]byte(key), value); err != nil {
		return errors.Wrapf(err, "could not set value for key %s", key)
	}
	return nil
}

func (w *writer) Delete(key string) error {
	if err := w.txn.Delete([]byte(key)); err != nil {
		return errors.Wrapf(err, "could not delete value for key %s", key)
	}
	return nil
}
