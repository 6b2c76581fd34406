package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	getDocumentQuery    = "SELECT value FROM documents WHERE key = $1 LIMIT 1"
	upsertDocumentQuery = "INSERT INTO documents (key, value, created_at, updated_at) " +
		"VALUES ($1, $2::jsonb, $3, $3) " +
		"ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at"
	deleteDocumentQuery = "DELETE FROM documents WHERE key = $1"
)

func (db *PgDocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := db.conn.QueryRowContext(ctx, getDocumentQuery, key)

	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return value, nil
}

func (db *PgDocumentStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx, upsertDocumentQuery, key, string(value), time.Now().UTC())
	return err
}

func (db *PgDocumentStore) Delete(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx, deleteDocumentQuery, key)
	return err
}
