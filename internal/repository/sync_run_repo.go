package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/timeutil"

	"github.com/google/uuid"
)

// SyncRunSQLite is the log of finished poll and backfill runs.
type SyncRunSQLite struct {
	db *sql.DB
}

// Ensure implementation of SyncRunRepo interface at compile time.
var _ SyncRunRepo = (*SyncRunSQLite)(nil)

const (
	insertSyncRunSQL = `
		INSERT INTO sync_runs (id, kind, started_at, finished_at, inserted, chunks_failed, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	defaultSyncRunLimit = 50
	maxSyncRunLimit     = 500
)

func NewSyncRunSQLite(db *sql.DB) *SyncRunSQLite { return &SyncRunSQLite{db: db} }

// Append stores a finished run. A missing RunID or Started is filled in.
func (r *SyncRunSQLite) Append(ctx context.Context, rep models.SyncReport) error {
	if rep.RunID == "" {
		rep.RunID = uuid.NewString()
	}
	if rep.Started.IsZero() {
		rep.Started = time.Now()
	}
	if rep.Finished.IsZero() {
		rep.Finished = rep.Started
	}

	failed := 0
	for _, c := range rep.Series {
		failed += c.ChunksFailed
	}

	detail, err := json.Marshal(rep.Series)
	if err != nil {
		return fmt.Errorf("marshal sync run %s: %w", rep.RunID, err)
	}

	_, err = r.db.ExecContext(ctx, insertSyncRunSQL,
		rep.RunID,
		strings.ToLower(strings.TrimSpace(rep.Kind)),
		timeutil.FormatStorage(rep.Started),
		timeutil.FormatStorage(rep.Finished),
		rep.Inserted(),
		failed,
		string(detail),
	)
	if err != nil {
		return fmt.Errorf("insert sync run %s: %w", rep.RunID, err)
	}
	return nil
}

// List returns runs started within [from, to] (zero bounds are open), newest first.
func (r *SyncRunSQLite) List(ctx context.Context, from, to time.Time, kind string, limit int) ([]models.SyncReport, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "datetime(started_at) >= datetime(?)")
		args = append(args, timeutil.FormatStorage(from))
	}
	if !to.IsZero() {
		conds = append(conds, "datetime(started_at) <= datetime(?)")
		args = append(args, timeutil.FormatStorage(to))
	}
	if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, kind)
	}
	if limit <= 0 {
		limit = defaultSyncRunLimit
	}
	if limit > maxSyncRunLimit {
		limit = maxSyncRunLimit
	}

	q := `SELECT id, kind, started_at, finished_at, detail FROM sync_runs`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY datetime(started_at) DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select sync runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.SyncReport, 0, limit)
	for rows.Next() {
		var (
			rep              models.SyncReport
			started, stopped string
			detail           sql.NullString
		)
		if err := rows.Scan(&rep.RunID, &rep.Kind, &started, &stopped, &detail); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		if rep.Started, err = timeutil.ParseISO(started); err != nil {
			return nil, fmt.Errorf("sync run %s: %w", rep.RunID, err)
		}
		if rep.Finished, err = timeutil.ParseISO(stopped); err != nil {
			return nil, fmt.Errorf("sync run %s: %w", rep.RunID, err)
		}
		if detail.Valid && detail.String != "" {
			// a malformed detail blob only loses the per-series breakdown
			_ = json.Unmarshal([]byte(detail.String), &rep.Series)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return out, nil
}
