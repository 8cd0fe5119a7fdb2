package store

import (
	"context"
	"database/sql"
	"strings"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// =====================================================
// Workout Operations
// =====================================================

const workoutColumns = `local_id, COALESCE(remote_id, ''), user_id, name, date, duration_minutes, notes, synced, created_at, updated_at`

const exerciseColumns = `local_id, COALESCE(remote_id, ''), workout_id, user_id, name, sets, reps, weight_kg, duration_seconds, distance_km, synced, created_at, updated_at`

func validateWorkout(w *models.Workout) error {
	if err := validateUser(w.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(w.Name) == "" {
		return apperrors.New(apperrors.ErrValidation, "workout name is required")
	}
	if w.DurationMinutes != nil && *w.DurationMinutes < 0 {
		return apperrors.New(apperrors.ErrValidation, "duration_minutes cannot be negative")
	}
	if err := validateDate("date", w.Date); err != nil {
		return err
	}
	for i := range w.Exercises {
		if err := validateExercise(&w.Exercises[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateExercise(e *models.Exercise) error {
	if strings.TrimSpace(e.Name) == "" {
		return apperrors.New(apperrors.ErrValidation, "exercise name is required")
	}
	if e.Sets < 0 || e.Reps < 0 {
		return apperrors.New(apperrors.ErrValidation, "sets and reps cannot be negative")
	}
	return nil
}

// SaveWorkout persists a workout with its nested exercises and enqueues an
// INSERT carrying the whole workout. A missing duration is accepted here;
// the sync engine decides whether such a workout can be sent.
func (s *Store) SaveWorkout(ctx context.Context, w *models.Workout) (string, error) {
	if err := validateWorkout(w); err != nil {
		return "", err
	}

	now := s.now()
	w.LocalID = newLocalID(prefixWorkout)
	w.RemoteID = ""
	w.Synced = false
	w.CreatedAt = now
	w.UpdatedAt = now
	for i := range w.Exercises {
		e := &w.Exercises[i]
		e.LocalID = newLocalID(prefixExercise)
		e.WorkoutID = w.LocalID
		e.UserID = w.UserID
		e.RemoteID = ""
		e.Synced = false
		e.CreatedAt = now
		e.UpdatedAt = now
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO local_workouts (local_id, user_id, name, date, duration_minutes, notes, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			w.LocalID, w.UserID, w.Name, w.Date, nullInt(w.DurationMinutes), nullString(w.Notes), w.CreatedAt, w.UpdatedAt)
		if err != nil {
			return dbError("insert workout", err)
		}
		for i := range w.Exercises {
			if err := insertExercise(ctx, tx, &w.Exercises[i]); err != nil {
				return err
			}
		}
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpInsert, w)
		return err
	})
	if err != nil {
		return "", err
	}
	return w.LocalID, nil
}

func insertExercise(ctx context.Context, tx *sql.Tx, e *models.Exercise) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO local_exercises (local_id, workout_id, user_id, name, sets, reps, weight_kg, duration_seconds, distance_km, synced, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		e.LocalID, e.WorkoutID, e.UserID, e.Name, e.Sets, e.Reps,
		nullFloat(e.WeightKg), nullInt(e.DurationSeconds), nullFloat(e.DistanceKm), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return dbError("insert exercise", err)
	}
	return nil
}

// AddExercise attaches an exercise to an existing workout. The parent is
// re-enqueued as an UPDATE so the remote receives the complete exercise
// list.
func (s *Store) AddExercise(ctx context.Context, workoutLocalID string, e *models.Exercise) (string, error) {
	if err := validateExercise(e); err != nil {
		return "", err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := getWorkout(ctx, tx, workoutLocalID)
		if err != nil {
			return err
		}

		now := s.now()
		e.LocalID = newLocalID(prefixExercise)
		e.WorkoutID = w.LocalID
		e.UserID = w.UserID
		e.RemoteID = ""
		e.Synced = false
		e.CreatedAt = now
		e.UpdatedAt = now
		if err := insertExercise(ctx, tx, e); err != nil {
			return err
		}

		if err := touchWorkout(ctx, tx, w.LocalID, now); err != nil {
			return err
		}
		_, err = s.enqueueWorkoutSnapshot(ctx, tx, models.OpUpdate, w.LocalID)
		return err
	})
	if err != nil {
		return "", err
	}
	return e.LocalID, nil
}

// UpdateWorkout overwrites a workout's editable fields (name, date,
// duration, notes) and enqueues an UPDATE with the full snapshot.
func (s *Store) UpdateWorkout(ctx context.Context, w *models.Workout) error {
	if w.LocalID == "" {
		return apperrors.New(apperrors.ErrValidation, "local_id is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return apperrors.New(apperrors.ErrValidation, "workout name is required")
	}
	if err := validateDate("date", w.Date); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE local_workouts SET name = ?, date = ?, duration_minutes = ?, notes = ?, synced = 0, updated_at = ?
		WHERE local_id = ?`,
			w.Name, w.Date, nullInt(w.DurationMinutes), nullString(w.Notes), s.now(), w.LocalID)
		if err != nil {
			return dbError("update workout", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("workout", w.LocalID)
		}
		current, err := s.enqueueWorkoutSnapshot(ctx, tx, models.OpUpdate, w.LocalID)
		if err != nil {
			return err
		}
		*w = *current
		return nil
	})
}

// DeleteWorkout removes a workout and its exercises locally and enqueues a
// DELETE carrying the last known snapshot.
func (s *Store) DeleteWorkout(ctx context.Context, localID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		w, err := getWorkout(ctx, tx, localID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_workouts WHERE local_id = ?`, localID); err != nil {
			return dbError("delete workout", err)
		}
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpDelete, w)
		return err
	})
}

// enqueueWorkoutSnapshot re-reads the workout inside tx and enqueues it.
func (s *Store) enqueueWorkoutSnapshot(ctx context.Context, tx *sql.Tx, op models.Operation, localID string) (*models.Workout, error) {
	w, err := getWorkout(ctx, tx, localID)
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.EnqueuePayload(ctx, tx, op, w); err != nil {
		return nil, err
	}
	return w, nil
}

func touchWorkout(ctx context.Context, q querier, localID string, now int64) error {
	_, err := q.ExecContext(ctx, `UPDATE local_workouts SET synced = 0, updated_at = ? WHERE local_id = ?`, now, localID)
	if err != nil {
		return dbError("touch workout", err)
	}
	return nil
}

// GetWorkout returns one workout with its exercises.
func (s *Store) GetWorkout(ctx context.Context, localID string) (*models.Workout, error) {
	return getWorkout(ctx, s.db, localID)
}

func getWorkout(ctx context.Context, q querier, localID string) (*models.Workout, error) {
	row := q.QueryRowContext(ctx, `SELECT `+workoutColumns+` FROM local_workouts WHERE local_id = ?`, localID)
	w, err := scanWorkout(row)
	if err == sql.ErrNoRows {
		return nil, notFound("workout", localID)
	}
	if err != nil {
		return nil, dbError("get workout", err)
	}
	w.Exercises, err = listExercises(ctx, q, localID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWorkouts returns a user's workouts, newest date first, each with its
// exercises.
func (s *Store) GetWorkouts(ctx context.Context, userID int64, opts ListOptions) ([]models.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM local_workouts WHERE user_id = ?`
	args := []any{userID}
	if opts.Date != "" {
		query += ` AND date = ?`
		args = append(args, opts.Date)
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC LIMIT ?`
	args = append(args, opts.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list workouts", err)
	}
	var workouts []models.Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			rows.Close()
			return nil, dbError("scan workout", err)
		}
		workouts = append(workouts, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, dbError("list workouts", err)
	}

	// exercises are loaded after the cursor is closed; the store runs on a
	// single connection
	for i := range workouts {
		workouts[i].Exercises, err = listExercises(ctx, s.db, workouts[i].LocalID)
		if err != nil {
			return nil, err
		}
	}
	return workouts, nil
}

// GetExercises lists a workout's exercises in the order they were added.
func (s *Store) GetExercises(ctx context.Context, workoutLocalID string) ([]models.Exercise, error) {
	return listExercises(ctx, s.db, workoutLocalID)
}

func listExercises(ctx context.Context, q querier, workoutLocalID string) ([]models.Exercise, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+exerciseColumns+` FROM local_exercises WHERE workout_id = ? ORDER BY created_at ASC, id ASC`,
		workoutLocalID)
	if err != nil {
		return nil, dbError("list exercises", err)
	}
	defer rows.Close()

	exercises := []models.Exercise{}
	for rows.Next() {
		var e models.Exercise
		var weight, distance sql.NullFloat64
		var seconds sql.NullInt64
		if err := rows.Scan(&e.LocalID, &e.RemoteID, &e.WorkoutID, &e.UserID, &e.Name, &e.Sets, &e.Reps,
			&weight, &seconds, &distance, &e.Synced, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, dbError("scan exercise", err)
		}
		e.WeightKg = floatPtr(weight)
		e.DurationSeconds = intPtr(seconds)
		e.DistanceKm = floatPtr(distance)
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list exercises", err)
	}
	return exercises, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row rowScanner) (models.Workout, error) {
	var w models.Workout
	var duration sql.NullInt64
	var notes sql.NullString
	err := row.Scan(&w.LocalID, &w.RemoteID, &w.UserID, &w.Name, &w.Date, &duration, &notes,
		&w.Synced, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return w, err
	}
	w.DurationMinutes = intPtr(duration)
	w.Notes = stringPtr(notes)
	return w, nil
}
