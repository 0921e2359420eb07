// Package db is the persistence layer of the task service: connection
// setup plus the user and task repositories the handlers read and
// write through.
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Pool bounds the connection pool. The zero value applies defaults
// sized for a single task-sync process.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func (p Pool) withDefaults() Pool {
	if p.MaxOpen == 0 {
		p.MaxOpen = 10
	}
	if p.MaxIdle == 0 {
		p.MaxIdle = 5
	}
	return p
}

// Connect opens the database, verifies it is reachable and applies
// the pool limits.
func Connect(driverName, dsn string, pool Pool) (*sql.DB, error) {
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driverName, err)
	}
	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging %s database: %w", driverName, err)
	}

	pool = pool.withDefaults()
	conn.SetMaxOpenConns(pool.MaxOpen)
	conn.SetMaxIdleConns(pool.MaxIdle)
	conn.SetConnMaxLifetime(pool.MaxLifetime)
	return conn, nil
}
