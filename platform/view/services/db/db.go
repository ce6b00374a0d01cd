/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package db

import (
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/db/driver/badger"
	mem "github.com/hyperledger-labs/license-ledger/platform/view/services/db/driver/memory"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/db/driver/sqlite"
)

// ConfigProvider gives access to the persistence options of a component
type ConfigProvider interface {
	UnmarshalKey(key string, rawVal interface{}) error
	IsSet(key string) bool
}

// Open returns a new key/value store for the passed options.
// An empty type selects the in-memory backend.
func Open(opts driver.Opts) (driver.KeyValueStore, error) {
	switch opts.Type {
	case "", mem.MemoryPersistence:
		return mem.New(), nil
	case badger.BadgerPersistence:
		return badger.OpenDB(badger.Opts{Path: opts.Opts.Path, InMemory: opts.Opts.InMemory})
	case sqlite.SQLitePersistence:
		return sqlite.Open(sqlite.Opts{
			DataSource:  opts.Opts.DataSource,
			Table:       opts.Opts.Table,
			SkipPragmas: opts.Opts.SkipPragmas,
		})
	default:
		return nil, errors.Errorf("invalid persistence type [%s]", opts.Type)
	}
}

// OpenFromConfig reads the options stored under key and opens the matching store
func OpenFromConfig(cp ConfigProvider, key string) (driver.KeyValueStore, error) {
	var opts driver.Opts
	if cp.IsSet(key) {
		if err := cp.UnmarshalKey(key, &opts); err != nil {
			return nil, errors.Wrapf(err, "failed loading persistence options from [%s]", key)
		}
	}
	return Open(opts)
}
