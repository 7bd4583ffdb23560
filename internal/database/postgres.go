package database

import (
	"database/sql"
	"time"
)

type PgRelayRepository struct {
	conn *sql.DB
}

// NewPgRelayRepository opens the store connection pool. poolSize maps to
// the idle pool, overflow to the additional connections the pool may
// open under load.
func NewPgRelayRepository(dsn string, poolSize, overflow int) (*PgRelayRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(poolSize)
	db.SetMaxOpenConns(poolSize + overflow)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgRelayRepository{conn: db}, nil
}

func (db *PgRelayRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgRelayRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
