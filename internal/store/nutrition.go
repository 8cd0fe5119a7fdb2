package store

import (
	"context"
	"database/sql"
	"strings"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// =====================================================
// NutritionLog Operations
// =====================================================

const nutritionColumns = `local_id, COALESCE(remote_id, ''), user_id, meal_type, food_name, calories, protein_g, carbs_g, fat_g, fiber_g, sugar_g, sodium_mg, notes, date, synced, created_at, updated_at`

func validateNutritionLog(n *models.NutritionLog) error {
	if err := validateUser(n.UserID); err != nil {
		return err
	}
	return validateNutritionFields(n)
}

// validateNutritionFields checks the editable fields.
func validateNutritionFields(n *models.NutritionLog) error {
	if !n.MealType.Valid() {
		return apperrors.Newf(apperrors.ErrValidation, "meal_type must be breakfast, lunch, dinner or snack, got %q", n.MealType)
	}
	if strings.TrimSpace(n.FoodName) == "" {
		return apperrors.New(apperrors.ErrValidation, "food_name is required")
	}
	if n.Calories < 0 || n.ProteinG < 0 || n.CarbsG < 0 || n.FatG < 0 {
		return apperrors.New(apperrors.ErrValidation, "calories and macros cannot be negative")
	}
	return validateDate("date", n.Date)
}

// SaveNutritionLog persists a nutrition log and enqueues its INSERT.
func (s *Store) SaveNutritionLog(ctx context.Context, n *models.NutritionLog) (string, error) {
	if err := validateNutritionLog(n); err != nil {
		return "", err
	}

	now := s.now()
	n.LocalID = newLocalID(prefixNutrition)
	n.RemoteID = ""
	n.Synced = false
	n.CreatedAt = now
	n.UpdatedAt = now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO local_nutrition_logs (local_id, user_id, meal_type, food_name, calories, protein_g, carbs_g, fat_g,
			fiber_g, sugar_g, sodium_mg, notes, date, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			n.LocalID, n.UserID, string(n.MealType), n.FoodName, n.Calories, n.ProteinG, n.CarbsG, n.FatG,
			nullFloat(n.FiberG), nullFloat(n.SugarG), nullFloat(n.SodiumMg), nullString(n.Notes), n.Date,
			n.CreatedAt, n.UpdatedAt)
		if err != nil {
			return dbError("insert nutrition log", err)
		}
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpInsert, n)
		return err
	})
	if err != nil {
		return "", err
	}
	return n.LocalID, nil
}

// UpdateNutritionLog overwrites a nutrition log's fields and enqueues an
// UPDATE with the full snapshot.
func (s *Store) UpdateNutritionLog(ctx context.Context, n *models.NutritionLog) error {
	if n.LocalID == "" {
		return apperrors.New(apperrors.ErrValidation, "local_id is required")
	}
	if err := validateNutritionFields(n); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE local_nutrition_logs SET meal_type = ?, food_name = ?, calories = ?, protein_g = ?, carbs_g = ?, fat_g = ?,
			fiber_g = ?, sugar_g = ?, sodium_mg = ?, notes = ?, date = ?, synced = 0, updated_at = ?
		WHERE local_id = ?`,
			string(n.MealType), n.FoodName, n.Calories, n.ProteinG, n.CarbsG, n.FatG,
			nullFloat(n.FiberG), nullFloat(n.SugarG), nullFloat(n.SodiumMg), nullString(n.Notes), n.Date,
			s.now(), n.LocalID)
		if err != nil {
			return dbError("update nutrition log", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return notFound("nutrition log", n.LocalID)
		}
		current, err := getNutritionLog(ctx, tx, n.LocalID)
		if err != nil {
			return err
		}
		*n = *current
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpUpdate, current)
		return err
	})
}

// DeleteNutritionLog removes a nutrition log and enqueues its DELETE.
func (s *Store) DeleteNutritionLog(ctx context.Context, localID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := getNutritionLog(ctx, tx, localID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_nutrition_logs WHERE local_id = ?`, localID); err != nil {
			return dbError("delete nutrition log", err)
		}
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpDelete, n)
		return err
	})
}

// GetNutritionLog returns one nutrition log.
func (s *Store) GetNutritionLog(ctx context.Context, localID string) (*models.NutritionLog, error) {
	return getNutritionLog(ctx, s.db, localID)
}

func getNutritionLog(ctx context.Context, q querier, localID string) (*models.NutritionLog, error) {
	row := q.QueryRowContext(ctx, `SELECT `+nutritionColumns+` FROM local_nutrition_logs WHERE local_id = ?`, localID)
	n, err := scanNutritionLog(row)
	if err == sql.ErrNoRows {
		return nil, notFound("nutrition log", localID)
	}
	if err != nil {
		return nil, dbError("get nutrition log", err)
	}
	return &n, nil
}

// GetNutritionLogs returns a user's nutrition logs, newest date first.
func (s *Store) GetNutritionLogs(ctx context.Context, userID int64, opts ListOptions) ([]models.NutritionLog, error) {
	query := `SELECT ` + nutritionColumns + ` FROM local_nutrition_logs WHERE user_id = ?`
	args := []any{userID}
	if opts.Date != "" {
		query += ` AND date = ?`
		args = append(args, opts.Date)
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC LIMIT ?`
	args = append(args, opts.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list nutrition logs", err)
	}
	defer rows.Close()

	var logs []models.NutritionLog
	for rows.Next() {
		n, err := scanNutritionLog(rows)
		if err != nil {
			return nil, dbError("scan nutrition log", err)
		}
		logs = append(logs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list nutrition logs", err)
	}
	return logs, nil
}

func scanNutritionLog(row rowScanner) (models.NutritionLog, error) {
	var n models.NutritionLog
	var mealType string
	var fiber, sugar, sodium sql.NullFloat64
	var notes sql.NullString
	err := row.Scan(&n.LocalID, &n.RemoteID, &n.UserID, &mealType, &n.FoodName, &n.Calories,
		&n.ProteinG, &n.CarbsG, &n.FatG, &fiber, &sugar, &sodium, &notes, &n.Date,
		&n.Synced, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return n, err
	}
	n.MealType = models.MealType(mealType)
	n.FiberG = floatPtr(fiber)
	n.SugarG = floatPtr(sugar)
	n.SodiumMg = floatPtr(sodium)
	n.Notes = stringPtr(notes)
	return n, nil
}
