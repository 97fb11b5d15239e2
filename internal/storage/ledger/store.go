// Package ledger is the relational store for everything the scraper learns about an account.
package ledger

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrNilDatabase = errors.New("database cannot be nil")

// Store serializes writes so multi-statement replaces are never observed half-applied.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "sqlite handle")
		}
		// a single connection keeps in-memory databases shared and
		// makes every transaction exclusive
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			return nil, errors.Wrap(err, "enable WAL mode")
		}
	case DriverPostgres:
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		db, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
		if err != nil {
			return nil, errors.Wrap(err, "init gorm over postgres")
		}
	default:
		return nil, errors.Errorf("unsupported database driver: %s", driver)
	}

	store, err := New(db)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates all ledger tables.
func (s *Store) Migrate() error {
	return errors.Wrap(s.db.AutoMigrate(allModels()...), "migrate ledger schema")
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) read(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// readConsistent runs a multi-statement read while no write is in flight.
func (s *Store) readConsistent(ctx context.Context, fn func(db *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.db.WithContext(ctx))
}
