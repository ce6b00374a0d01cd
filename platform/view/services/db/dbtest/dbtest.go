/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dbtest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAbort = errors.New("abort")

// TestKeyValueStore runs the behaviour every driver.KeyValueStore backend must offer
func TestKeyValueStore(t *testing.T, store driver.KeyValueStore) {
	t.Run("missing key", func(t *testing.T) { testMissing(t, store) })
	t.Run("put get delete", func(t *testing.T) { testPutGetDelete(t, store) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, store) })
	t.Run("read your writes", func(t *testing.T) { testReadYourWrites(t, store) })
	t.Run("keys", func(t *testing.T) { testKeys(t, store) })
	t.Run("concurrent updates", func(t *testing.T) { testConcurrentUpdates(t, store) })
}

func testMissing(t *testing.T, store driver.KeyValueStore) {
	v, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func testPutGetDelete(t *testing.T, store driver.KeyValueStore) {
	require.NoError(t, store.Update(func(w driver.KeyValueWriter) error {
		return w.Put("k1", []byte("v1"))
	}))
	v, err := store.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, store.Update(func(w driver.KeyValueWriter) error {
		return w.Put("k1", []byte("v2"))
	}))
	v, err = store.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, store.Update(func(w driver.KeyValueWriter) error {
		return w.Delete("k1")
	}))
	v, err = store.Get("k1")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func testRollback(t *testing.T, store driver.KeyValueStore) {
	err := store.Update(func(w driver.KeyValueWriter) error {
		if err := w.Put("r1", []byte("v")); err != nil {
			return err
		}
		if err := w.Put("r2", []byte("v")); err != nil {
			return err
		}
		return errAbort
	})
	assert.True(t, errors.HasCause(err, errAbort), "unexpected error [%v]", err)

	for _, k := range []string{"r1", "r2"} {
		v, err := store.Get(k)
		require.NoError(t, err)
		assert.Nil(t, v, "key [%s] must not be visible", k)
	}
}

func testReadYourWrites(t *testing.T, store driver.KeyValueStore) {
	require.NoError(t, store.Update(func(w driver.KeyValueWriter) error {
		if err := w.Put("ryw", []byte("staged")); err != nil {
			return err
		}
		v, err := w.Get("ryw")
		if err != nil {
			return err
		}
		if string(v) != "staged" {
			return errors.Errorf("expected staged value, got [%s]", v)
		}
		if err := w.Delete("ryw"); err != nil {
			return err
		}
		v, err = w.Get("ryw")
		if err != nil {
			return err
		}
		if v != nil {
			return errors.Errorf("expected deleted value, got [%s]", v)
		}
		return nil
	}))
}

func testKeys(t *testing.T, store driver.KeyValueStore) {
	require.NoError(t, store.Update(func(w driver.KeyValueWriter) error {
		for _, k := range []string{"pfx~b", "pfx~a", "pfx~c", "other~a", "pfy"} {
			if err := w.Put(k, []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	keys, err := store.Keys("pfx~")
	require.NoError(t, err)
	assert.Equal(t, []string{"pfx~a", "pfx~b", "pfx~c"}, keys)

	keys, err = store.Keys("none~")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func testConcurrentUpdates(t *testing.T, store driver.KeyValueStore) {
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Update(func(w driver.KeyValueWriter) error {
				return w.Put(fmt.Sprintf("conc~%02d", i), []byte{byte(i)})
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	keys, err := store.Keys("conc~")
	require.NoError(t, err)
	assert.Len(t, keys, workers)
}
