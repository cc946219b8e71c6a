package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// DB is an open database handle together with its dialect.
type DB struct {
	*sqlx.DB
	Dialect Dialect
	pool    *pgxpool.Pool
}

// Open connects to url and pings it. PostgreSQL connections go through a
// pgx pool exposed as database/sql.
func Open(ctx context.Context, url string, dialect Dialect) (*DB, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL not set (in .env, config or environment)")
	}

	var db *DB
	switch dialect {
	case Postgres:
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("unable to create connection pool: %w", err)
		}
		db = &DB{
			DB:      sqlx.NewDb(stdlib.OpenDBFromPool(pool), dialect.DriverName()),
			Dialect: dialect,
			pool:    pool,
		}
	case SQLite:
		sqlDB, err := sqlx.Open(dialect.DriverName(), sqlitePath(url))
		if err != nil {
			return nil, fmt.Errorf("unable to open sqlite database: %w", err)
		}
		// SQLite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
		db = &DB{DB: sqlDB, Dialect: dialect}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return db, nil
}

// Close closes the database handle and the underlying pool, if any.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}

// Pool returns the pgx pool behind a PostgreSQL connection, or nil.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}
