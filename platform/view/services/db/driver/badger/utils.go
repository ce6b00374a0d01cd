/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
)

const (
	defaultGCInterval     = 5 * time.Minute
	defaultGCDiscardRatio = 0.5 // recommended ratio by badger docs
)

// badgerDBInterface exists mainly for testing the auto cleaner
type badgerDBInterface interface {
	IsClosed() bool
	RunValueLogGC(discardRatio float64) error
	Opts() badger.Options
}

// autoCleaner runs badger garbage collection periodically as long as the db is open
func autoCleaner(db badgerDBInterface, badgerGCInterval time.Duration, badgerDiscardRatio float64) context.CancelFunc {
	if db == nil || db.Opts().InMemory {
		// not needed when we run badger in memory mode
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(badgerGCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if db.IsClosed() {
					// no need to clean anymore
					return
				}
				if err := db.RunValueLogGC(badgerDiscardRatio); err != nil {
					switch {
					case errors.Is(err, badger.ErrRejected):
						logger.Warnf("badger: value log garbage collection rejected")
					case errors.Is(err, badger.ErrNoRewrite):
						// do nothing
					default:
						logger.Warnf("badger: unexpected error while performing value log clean up: %s", err)
					}
				}
			}
		}
	}()

	return cancel
}

func txnGet(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not retrieve item for key %s", key)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, errors.Wrapf(err, "could not get value for key %s", key)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}
