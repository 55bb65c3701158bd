package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// SQLKV stores values in the portal_kv table created by database.Open.
type SQLKV struct{ DB *sql.DB }

func NewSQLKV(db *sql.DB) *SQLKV { return &SQLKV{DB: db} }

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.DB.QueryRowContext(ctx, "SELECT v FROM portal_kv WHERE k=? LIMIT 1", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select %s", key)
	}
	return v, nil
}

func (s *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO portal_kv (k, v, updated_at) VALUES (?,?,?) ON DUPLICATE KEY UPDATE v=VALUES(v), updated_at=VALUES(updated_at)",
		key, value, time.Now().UTC())
	return errors.Wrapf(err, "upsert %s", key)
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM portal_kv WHERE k=?", key)
	return errors.Wrapf(err, "delete %s", key)
}
