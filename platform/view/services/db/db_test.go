/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package db

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/config"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/db/driver/badger"
	mem "github.com/hyperledger-labs/license-ledger/platform/view/services/db/driver/memory"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/db/driver/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	s, err := Open(driver.Opts{})
	require.NoError(t, err)
	assert.IsType(t, &mem.Database{}, s)

	opts := driver.Opts{Type: badger.BadgerPersistence}
	opts.Opts.InMemory = true
	s, err = Open(opts)
	require.NoError(t, err)
	assert.IsType(t, &badger.DB{}, s)
	require.NoError(t, s.Close())

	opts = driver.Opts{Type: sqlite.SQLitePersistence}
	opts.Opts.DataSource = "file:" + filepath.Join(t.TempDir(), "db.sqlite")
	s, err = Open(opts)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Close())

	_, err = Open(driver.Opts{Type: "unknown"})
	assert.Error(t, err)
}

func TestOpenFromConfig(t *testing.T) {
	dir := t.TempDir()
	cp, err := config.NewProviderFromYAML([]byte(fmt.Sprintf(`
license:
  vault:
    persistence:
      type: sqlite
      opts:
        dataSource: file:%s
        table: licenses
`, filepath.Join(dir, "vault.sqlite"))))
	require.NoError(t, err)

	s, err := OpenFromConfig(cp, "license.vault.persistence")
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &sqlite.Store{}, s)

	s2, err := OpenFromConfig(cp, "license.notary.persistence")
	require.NoError(t, err)
	assert.IsType(t, &mem.Database{}, s2)
}
