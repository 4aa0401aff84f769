// Package db provides a lightweight GORM-based SQLite wrapper for persisting
// the state of a passport node: mints prepared for fee payers and withdrawals
// made from the treasury.
//
// A node keeps one database file under <home>/databases. Open it with
// OpenJournal, which migrates the schema and returns the Journal the rest of
// the node records into.
package db

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smartpassport/passport-node/issuer/store"
)

const (
	// InMemorySQLiteDSN is a special DSN to create an ephemeral in-memory SQLite database.
	InMemorySQLiteDSN = ":memory:"

	// dbDirPermissions sets directory permissions to 750 (rwxr-x---).
	dbDirPermissions = 0o750

	// fileDSNParams enables WAL so API handlers can read while a mint is being recorded.
	fileDSNParams = "?_journal_mode=WAL&_busy_timeout=5000&cache=shared&mode=rwc"
)

var (
	// gormConfig keeps GORM quiet; the node logs journal failures itself.
	gormConfig = &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	// schemaModels lists the structs to be auto-migrated into the database.
	schemaModels = []any{
		&store.PassportMint{},
		&store.TreasuryWithdrawal{},
	}
)

// DB wraps a GORM client and owns the lifecycle of the SQLite connection.
type DB struct {
	client *gorm.DB
}

// OpenJournal opens the node's journal database in dir, creating the
// directory and file on first use. The schema is always migrated.
func OpenJournal(dir, filename string) (*Journal, error) {
	database, err := OpenFileDB(dir, filename, true)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}
	return NewJournal(database), nil
}

// OpenFileDB opens (or creates) a file-backed SQLite database located in dir.
// If migrateSchema is true, the mint and withdrawal tables are migrated.
func OpenFileDB(dir, filename string, migrateSchema bool) (*DB, error) {
	dsn, err := prepareFilePath(dir, filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare database path")
	}
	return openSQLite(dsn, migrateSchema)
}

// OpenInMemoryDB opens a non-persistent SQLite database in memory.
// Tests use it in place of the node's database file.
func OpenInMemoryDB(migrateSchema bool) (*DB, error) {
	return openSQLite(InMemorySQLiteDSN, migrateSchema)
}

func openSQLite(dsn string, migrateSchema bool) (*DB, error) {
	if dsn != InMemorySQLiteDSN && !strings.Contains(dsn, "?") {
		dsn += fileDSNParams
	}

	client, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}

	if migrateSchema {
		if err := client.AutoMigrate(schemaModels...); err != nil {
			return nil, errors.Wrap(err, "failed to auto-migrate journal schema")
		}
	}

	sqlDB, err := client.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}

	// One connection: the in-memory database only exists per connection,
	// and SQLite allows a single writer anyway.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return &DB{client: client}, nil
}

// Client returns the internal *gorm.DB instance for direct usage in queries.
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Checkpoint folds the write-ahead log back into the database file and
// truncates it. It is a no-op for in-memory databases.
func (d *DB) Checkpoint() error {
	if err := d.client.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return errors.Wrap(err, "failed to checkpoint WAL")
	}
	return nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}

	if err := sqlDB.Close(); err != nil {
		return errors.Wrap(err, "failed to close database connection")
	}

	return nil
}

// prepareFilePath creates dir when missing and returns the database file path.
// A dir naming the in-memory DSN is returned unchanged.
func prepareFilePath(dir, filename string) (string, error) {
	if strings.Contains(dir, InMemorySQLiteDSN) {
		return dir, nil
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, dbDirPermissions); err != nil {
			return "", errors.Wrapf(err, "failed to create directory: %s", dir)
		}
	} else if err != nil {
		return "", errors.Wrap(err, "error checking directory")
	}

	return fmt.Sprintf("%s/%s", dir, filename), nil
}
