// Package queue provides the durable mutation queue that records every
// local write awaiting delivery to the remote service.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx. Enqueue takes one
// so the append can join the caller's entity-write transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// maxErrorLen bounds the last_error column.
const maxErrorLen = 512

// Queue is the sync_queue table.
type Queue struct {
	db  *sql.DB
	now func() int64
}

// New creates a Queue on an already-migrated database.
func New(db *sql.DB) *Queue {
	return &Queue{db: db, now: models.NowMillis}
}

// =====================================================
// Append
// =====================================================

// Enqueue appends an entry and returns its queue id. created_at never goes
// backwards relative to entries still in the queue, so (created_at, id)
// ordering matches append order even if the wall clock steps back.
func (q *Queue) Enqueue(ctx context.Context, exec Execer, table models.Table, recordID string, op models.Operation, data json.RawMessage) (int64, error) {
	if exec == nil {
		exec = q.db
	}
	if recordID == "" {
		return 0, apperrors.New(apperrors.ErrQueue, "enqueue: empty record id")
	}
	if _, err := models.ParseOperation(string(op)); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrQueue, "enqueue", err)
	}
	if len(data) == 0 {
		return 0, apperrors.New(apperrors.ErrQueue, "enqueue: empty snapshot")
	}

	query := `
	INSERT INTO sync_queue (table_name, record_id, operation, data, created_at, synced)
	VALUES (?, ?, ?, ?, MAX(?, COALESCE((SELECT MAX(created_at) FROM sync_queue), 0)), 0)
	`
	res, err := exec.ExecContext(ctx, query, string(table), recordID, string(op), string(data), q.now())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrQueue, "enqueue", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrQueue, "enqueue: last insert id", err)
	}

	logging.Debug("Mutation enqueued", map[string]interface{}{
		"entry_id":  id,
		"table":     string(table),
		"record_id": recordID,
		"operation": string(op),
	})
	return id, nil
}

// EnqueuePayload snapshots p and appends it under p's table.
func (q *Queue) EnqueuePayload(ctx context.Context, exec Execer, op models.Operation, p models.Payload) (int64, error) {
	data, err := models.EncodePayload(p)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrQueue, "enqueue", err)
	}
	return q.Enqueue(ctx, exec, p.QueueTable(), p.RecordID(), op, data)
}

// =====================================================
// Read
// =====================================================

const entryColumns = `id, table_name, record_id, operation, data, created_at, synced, attempts, COALESCE(last_error, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.MutationEntry, error) {
	var e models.MutationEntry
	var table, op, data string
	err := row.Scan(&e.ID, &table, &e.RecordID, &op, &data, &e.CreatedAt, &e.Synced, &e.Attempts, &e.LastError)
	if err != nil {
		return e, err
	}
	e.TableName = models.Table(table)
	e.Operation = models.Operation(op)
	e.Data = json.RawMessage(data)
	return e, nil
}

// ListUnsynced returns every unsynced entry across all tables, oldest
// first.
func (q *Queue) ListUnsynced(ctx context.Context) ([]models.MutationEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM sync_queue WHERE synced = 0 ORDER BY created_at ASC, id ASC`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueue, "list unsynced", err)
	}
	defer rows.Close()

	var entries []models.MutationEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrQueue, "scan entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueue, "list unsynced", err)
	}
	return entries, nil
}

// get returns a single entry by queue id.
func (q *Queue) get(ctx context.Context, id int64) (*models.MutationEntry, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM sync_queue WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "queue entry %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueue, "get entry", err)
	}
	return &e, nil
}

// CountUnsynced returns the number of entries not yet synced.
func (q *Queue) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE synced = 0`).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrQueue, "count unsynced", err)
	}
	return n, nil
}

// =====================================================
// Mark / Sweep
// =====================================================

// MarkSynced flags an entry as delivered. Marking an already-synced or
// already-swept entry is a no-op.
func (q *Queue) MarkSynced(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `UPDATE sync_queue SET synced = 1 WHERE id = ? AND synced = 0`, id); err != nil {
		return apperrors.Wrap(apperrors.ErrQueue, fmt.Sprintf("mark entry %d synced", id), err)
	}
	return nil
}

// RecordFailure bumps the attempt counter of an entry that stays queued.
func (q *Queue) RecordFailure(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
		if len(msg) > maxErrorLen {
			msg = msg[:maxErrorLen]
		}
	}
	_, err := q.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ? AND synced = 0`,
		msg, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrQueue, fmt.Sprintf("record failure for entry %d", id), err)
	}
	return nil
}

// SweepSynced deletes entries already flagged synced and returns how many
// were removed. Unsynced rows are never touched.
func (q *Queue) SweepSynced(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE synced = 1`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrQueue, "sweep synced", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Debug("Swept synced entries", map[string]interface{}{"count": n})
	}
	return n, nil
}

// Clear removes every entry, synced or not. Used on sign-out together with
// the entity tables, hence the Execer.
func (q *Queue) Clear(ctx context.Context, exec Execer) error {
	if exec == nil {
		exec = q.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return apperrors.Wrap(apperrors.ErrQueue, "clear queue", err)
	}
	return nil
}

// =====================================================
// Stats
// =====================================================

// TableStats summarizes the queue for one table.
type TableStats struct {
	Table models.Table `json:"table"`
	// Pending entries await dispatch.
	Pending int `json:"pending"`
	// Retrying is the subset of Pending with at least one failed attempt.
	Retrying int `json:"retrying"`
	// AwaitingSweep entries are synced but not yet deleted.
	AwaitingSweep int    `json:"awaiting_sweep"`
	OldestPending int64  `json:"oldest_pending,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// Stats returns per-table queue statistics, ordered by table name.
func (q *Queue) Stats(ctx context.Context) ([]TableStats, error) {
	query := `
	SELECT table_name,
		SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END),
		SUM(CASE WHEN synced = 0 AND attempts > 0 THEN 1 ELSE 0 END),
		SUM(CASE WHEN synced = 1 THEN 1 ELSE 0 END),
		COALESCE(MIN(CASE WHEN synced = 0 THEN created_at END), 0),
		COALESCE((SELECT last_error FROM sync_queue q2
			WHERE q2.table_name = q1.table_name AND q2.synced = 0 AND q2.last_error IS NOT NULL
			ORDER BY q2.id DESC LIMIT 1), '')
	FROM sync_queue q1
	GROUP BY table_name
	ORDER BY table_name
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueue, "queue stats", err)
	}
	defer rows.Close()

	var stats []TableStats
	for rows.Next() {
		var s TableStats
		var table string
		if err := rows.Scan(&table, &s.Pending, &s.Retrying, &s.AwaitingSweep, &s.OldestPending, &s.LastError); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrQueue, "scan stats", err)
		}
		s.Table = models.Table(table)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueue, "queue stats", err)
	}
	return stats, nil
}

// Summary renders stats as "table: n pending" lines for CLI output.
func Summary(stats []TableStats) string {
	if len(stats) == 0 {
		return "queue empty"
	}
	var b strings.Builder
	for i, s := range stats {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %d pending", s.Table, s.Pending)
		if s.Retrying > 0 {
			fmt.Fprintf(&b, " (%d retrying, last error: %s)", s.Retrying, s.LastError)
		}
	}
	return b.String()
}
