/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sqlite

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperledger-labs/license-ledger/pkg/utils"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	SQLitePersistence driver.PersistenceType = "sqlite"

	driverName   = "sqlite"
	defaultTable = "kv"
	busyRetries  = 20
	busyDelay    = 10 * time.Millisecond
)

const sqlitePragmas = `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = memory;`

var (
	logger    = logging.MustGetLogger("db.driver.sqlite")
	tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

type Opts struct {
	DataSource  string
	Table       string
	SkipPragmas bool
}

// Store keeps key/value pairs in a single sqlite table.
// Writes go through one connection so that sqlite never sees two concurrent writers.
type Store struct {
	db    *sql.DB
	table string
	retry utils.RetryRunner
}

func Open(opts Opts) (*Store, error) {
	if len(opts.DataSource) == 0 {
		return nil, errors.New("data source cannot be empty")
	}
	table := opts.Table
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, errors.Errorf("invalid table name [%s]", table)
	}

	db, err := sql.Open(driverName, opts.DataSource)
	if err != nil {
		if strings.Contains(err.Error(), "out of memory (14)") {
			return nil, errors.Wrapf(err, "can't open %s database, does the folder exist?", driverName)
		}
		return nil, errors.Wrapf(err, "can't open %s database", driverName)
	}
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "can't reach %s database", driverName)
	}
	if opts.SkipPragmas {
		if !strings.Contains(opts.DataSource, "WAL") {
			logger.Warn("skipping default pragmas. Set at least ?_pragma=journal_mode(WAL) or similar in the dataSource to prevent SQLITE_BUSY errors")
		}
	} else if _, err = db.Exec(sqlitePragmas); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error setting pragmas")
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, value BLOB NOT NULL)", table)
	logger.Debug(query)
	if _, err = db.Exec(query); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "can't create table [%s]", table)
	}
	logger.Infof("connected to [%s] table [%s]", driverName, table)

	return &Store{
		db:    db,
		table: table,
		retry: utils.NewRetryRunner(busyRetries, busyDelay, false),
	}, nil
}

func (s *Store) Get(key string) ([]byte, error) {
	return get(s.db, s.table, key)
}

// Update runs f in a sqlite transaction, retrying when the database is busy
func (s *Store) Update(f func(w driver.KeyValueWriter) error) error {
	return s.retry.RunWithErrors(func() (bool, error) {
		err := s.update(f)
		if isBusy(err) {
			logger.Debugf("database busy, retrying: %s", err)
			return false, err
		}
		return true, err
	})
}

func (s *Store) update(f func(w driver.KeyValueWriter) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed starting a transaction")
	}
	if err := f(&writer{tx: tx, table: s.table}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Errorf("failed rolling back: %s", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed committing")
	}
	return nil
}

func (s *Store) Keys(prefix string) ([]string, error) {
	query := fmt.Sprintf("SELECT key FROM %s WHERE substr(key, 1, ?) = ? ORDER BY key", s.table)
	logger.Debug(query, prefix)
	rows, err := s.db.Query(query, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "failed listing keys with prefix [%s]", prefix)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "failed scanning key")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func get(q querier, table, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE key = ?", table), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading key [%s]", key)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

type writer struct {
	tx    *sql.Tx
	table string
}

func (w *writer) Get(key string) ([]byte, error) {
	return get(w.tx, w.table, key)
}

func (w *writer) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	query := fmt.Sprintf("INSERT INTO %s (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", w.table)
	if _, err := w.tx.Exec(query, key, value); err != nil {
		return errors.Wrapf(err, "failed writing key [%s]", key)
	}
	return nil
}

func (w *writer) Delete(key string) error {
	if _, err := w.tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE key = ?", w.table), key); err != nil {
		return errors.Wrapf(err, "failed deleting key [%s]", key)
	}
	return nil
}

func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
