package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"
)

type MetadataSQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Ensure implementation of MetadataRepo interface at compile time.
var _ MetadataRepo = (*MetadataSQLite)(nil)

const (
	upsertMetadataSQL = `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`

	selectMetadataSQL = `SELECT key, value, updated_at FROM metadata WHERE key = ?`
)

func NewMetadataSQLite(db *sql.DB) *MetadataSQLite {
	return &MetadataSQLite{db: db, now: time.Now}
}

// Set upserts key; the last write wins.
func (r *MetadataSQLite) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertMetadataSQL, key, value, timeutil.FormatStorage(r.now())); err != nil {
		return fmt.Errorf("upsert metadata %q: %w", key, err)
	}
	return nil
}

// Get returns the value of key and whether it exists.
func (r *MetadataSQLite) Get(ctx context.Context, key string) (string, bool, error) {
	e, err := r.Entry(ctx, key)
	if err != nil || e == nil {
		return "", false, err
	}
	return e.Value, true, nil
}

// Entry returns the full entry for key, or nil when absent.
func (r *MetadataSQLite) Entry(ctx context.Context, key string) (*models.MetadataEntry, error) {
	var (
		e       models.MetadataEntry
		updated string
	)
	err := r.db.QueryRowContext(ctx, selectMetadataSQL, key).Scan(&e.Key, &e.Value, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select metadata %q: %w", key, err)
	}
	if t, perr := timeutil.ParseISO(updated); perr == nil {
		e.UpdatedAt = t
	}
	return &e, nil
}
