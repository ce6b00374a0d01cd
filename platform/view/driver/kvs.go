/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package driver

// PersistenceType identifies a storage backend
type PersistenceType string

// KeyValueReader reads raw values by key. A missing key yields a nil value and no error.
type KeyValueReader interface {
	Get(key string) ([]byte, error)
}

// KeyValueWriter stages writes inside an atomic update
type KeyValueWriter interface {
	KeyValueReader
	Put(key string, value []byte) error
	Delete(key string) error
}

// KeyValueStore is the persistence contract shared by the vault and the notary.
// Update runs the passed function atomically: either all staged writes become visible or none does.
type KeyValueStore interface {
	KeyValueReader
	// Update runs f in a read-write transaction.
	Update(f func(w KeyValueWriter) error) error
	// Keys returns the keys starting with the passed prefix, in lexicographic order
	Keys(prefix string) ([]string, error)
	Close() error
}

// Opts carries the backend-specific options read from configuration
type Opts struct {
	Type PersistenceType `mapstructure:"type"`
	Opts struct {
		Path        string `mapstructure:"path"`
		DataSource  string `mapstructure:"dataSource"`
		InMemory    bool   `mapstructure:"inMemory"`
		Table       string `mapstructure:"table"`
		SkipPragmas bool   `mapstructure:"skipPragmas"`
	} `mapstructure:"opts"`
}
