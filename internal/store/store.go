// Package store provides the local entity store: durable, queryable
// persistence for workouts, exercises, nutrition logs and body stats.
// Every write appends its queue entry inside the same transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	"github.com/kimhsiao/lifelog/backend/internal/models"
	"github.com/kimhsiao/lifelog/backend/internal/sync/queue"
	"github.com/kimhsiao/lifelog/backend/internal/uuid"
)

// Local id prefixes per record kind.
const (
	prefixWorkout   = "workout"
	prefixExercise  = "exercise"
	prefixNutrition = "nutrition"
	prefixBodyStat  = "body"
)

const (
	// DefaultLimit is used when ListOptions.Limit is unset.
	DefaultLimit = 50
	maxLimit     = 500
)

// ListOptions filters the getByUser queries.
type ListOptions struct {
	// Date restricts results to one calendar date (YYYY-MM-DD).
	Date  string
	Limit int
}

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return DefaultLimit
	case o.Limit > maxLimit:
		return maxLimit
	}
	return o.Limit
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists entity records and their queue entries.
type Store struct {
	db    *sql.DB
	queue *queue.Queue
	now   func() int64
}

// New creates a Store. db must already be migrated.
func New(db *sql.DB, q *queue.Queue) *Store {
	return &Store{db: db, queue: q, now: models.NowMillis}
}

// withTx runs fn in a transaction; any error rolls back the entity write
// and its queue entry together.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "commit transaction", err)
	}
	return nil
}

// =====================================================
// Generic Operations
// =====================================================

// Save persists any syncable record with an INSERT queue entry and returns
// the assigned local id.
func (s *Store) Save(ctx context.Context, rec models.Payload) (string, error) {
	switch r := rec.(type) {
	case *models.Workout:
		return s.SaveWorkout(ctx, r)
	case *models.NutritionLog:
		return s.SaveNutritionLog(ctx, r)
	case *models.BodyStat:
		return s.SaveBodyStat(ctx, r)
	}
	return "", apperrors.Newf(apperrors.ErrInvalid, "unsupported record type %T", rec)
}

// UnsyncedCount returns the number of queue entries awaiting sync. It never
// scans entity tables.
func (s *Store) UnsyncedCount(ctx context.Context) (int, error) {
	return s.queue.CountUnsynced(ctx)
}

// ClearAllData wipes the queue and every entity table, e.g. on sign-out.
func (s *Store) ClearAllData(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.queue.Clear(ctx, tx); err != nil {
			return err
		}
		for _, table := range []string{"local_exercises", "local_workouts", "local_nutrition_logs", "local_body_stats"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return apperrors.Wrap(apperrors.ErrDatabase, "clear "+table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logging.Info("Local data cleared")
	return nil
}

// Acknowledge records a successful remote write. A create stores the
// server-assigned id. The row is flagged synced only when no later queue
// entry for it is still pending. Deletes need no bookkeeping.
func (s *Store) Acknowledge(ctx context.Context, table models.Table, op models.Operation, localID, remoteID string) error {
	if op == models.OpDelete {
		return nil
	}

	var entityTable string
	switch table {
	case models.TableWorkouts:
		entityTable = models.Workout{}.TableName()
	case models.TableNutrition:
		entityTable = models.NutritionLog{}.TableName()
	case models.TableBodyStats:
		entityTable = models.BodyStat{}.TableName()
	default:
		return apperrors.Newf(apperrors.ErrInvalid, "unknown table %q", table)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
		UPDATE %s SET
			remote_id = COALESCE(NULLIF(?, ''), remote_id),
			synced = CASE WHEN EXISTS (
				SELECT 1 FROM sync_queue WHERE table_name = ? AND record_id = ? AND synced = 0
			) THEN 0 ELSE 1 END
		WHERE local_id = ?`, entityTable)
		if _, err := tx.ExecContext(ctx, query, remoteID, string(table), localID, localID); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "acknowledge "+localID, err)
		}
		if table == models.TableWorkouts {
			_, err := tx.ExecContext(ctx, `
			UPDATE local_exercises SET synced = (SELECT synced FROM local_workouts WHERE local_id = ?)
			WHERE workout_id = ?`, localID, localID)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrDatabase, "acknowledge exercises of "+localID, err)
			}
		}
		return nil
	})
}

// =====================================================
// Validation helpers
// =====================================================

func validateDate(field, value string) error {
	if value == "" {
		return apperrors.Newf(apperrors.ErrValidation, "%s is required", field)
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return apperrors.Newf(apperrors.ErrValidation, "%s must be YYYY-MM-DD, got %q", field, value)
	}
	return nil
}

func validateUser(userID int64) error {
	if userID <= 0 {
		return apperrors.New(apperrors.ErrValidation, "user_id is required")
	}
	return nil
}

func newLocalID(prefix string) string {
	return uuid.NewLocalID(prefix)
}

// =====================================================
// Null conversion helpers
// =====================================================

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func notFound(kind, localID string) error {
	return apperrors.Newf(apperrors.ErrNotFound, "%s %s not found", kind, localID)
}

func dbError(op string, err error) error {
	return apperrors.Wrap(apperrors.ErrDatabase, op, err)
}
