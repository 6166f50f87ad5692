package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joseph-ayodele/species-extractor/internal/common"
)

// GetResponse returns a cached raw model response.
func (db *DB) GetResponse(ctx context.Context, key string) (string, bool, error) {
	var raw string
	err := db.sql.QueryRowContext(ctx,
		db.rebind(`SELECT raw FROM model_responses WHERE cache_key = ?`), key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

// PutResponse stores a raw response. The first stored answer for a key wins.
func (db *DB) PutResponse(ctx context.Context, key, model, raw string) error {
	err := db.exec(ctx,
		`INSERT INTO model_responses (cache_key, model, raw, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO NOTHING`,
		key, model, raw, time.Now().UTC(),
	)
	if err != nil {
		db.logger.Warn("store.response.put_failed", "error", err)
	}
	return err
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.NewAppError(common.CodeNotFound, what+" not found", common.ErrNotFound, err)
	}
	return err
}
