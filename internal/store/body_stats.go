package store

import (
	"context"
	"database/sql"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/models"
)

// =====================================================
// BodyStat Operations
// =====================================================

const bodyStatColumns = `local_id, COALESCE(remote_id, ''), user_id, weight_kg, body_fat_percentage, muscle_mass_kg, waist_cm, chest_cm, arm_cm, thigh_cm, water_intake, date, synced, created_at, updated_at`

func validateBodyStatFields(b *models.BodyStat) error {
	for _, v := range []*float64{b.WeightKg, b.BodyFatPercentage, b.MuscleMassKg, b.WaistCm, b.ChestCm, b.ArmCm, b.ThighCm, b.WaterIntake} {
		if v != nil && *v < 0 {
			return apperrors.New(apperrors.ErrValidation, "measurements cannot be negative")
		}
	}
	if b.BodyFatPercentage != nil && *b.BodyFatPercentage > 100 {
		return apperrors.New(apperrors.ErrValidation, "body_fat_percentage cannot exceed 100")
	}
	return validateDate("date", b.Date)
}

// SaveBodyStat persists a body measurement set and enqueues its INSERT.
func (s *Store) SaveBodyStat(ctx context.Context, b *models.BodyStat) (string, error) {
	if err := validateUser(b.UserID); err != nil {
		return "", err
	}
	if err := validateBodyStatFields(b); err != nil {
		return "", err
	}

	now := s.now()
	b.LocalID = newLocalID(prefixBodyStat)
	b.RemoteID = ""
	b.Synced = false
	b.CreatedAt = now
	b.UpdatedAt = now

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO local_body_stats (local_id, user_id, weight_kg, body_fat_percentage, muscle_mass_kg, waist_cm,
			chest_cm, arm_cm, thigh_cm, water_intake, date, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			b.LocalID, b.UserID, nullFloat(b.WeightKg), nullFloat(b.BodyFatPercentage), nullFloat(b.MuscleMassKg),
			nullFloat(b.WaistCm), nullFloat(b.ChestCm), nullFloat(b.ArmCm), nullFloat(b.ThighCm),
			nullFloat(b.WaterIntake), b.Date, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return dbError("insert body stat", err)
		}
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpInsert, b)
		return err
	})
	if err != nil {
		return "", err
	}
	return b.LocalID, nil
}

// UpdateBodyStat overwrites a body stat's measurements and enqueues an
// UPDATE with the full snapshot.
func (s *Store) UpdateBodyStat(ctx context.Context, b *models.BodyStat) error {
	if b.LocalID == "" {
		return apperrors.New(apperrors.ErrValidation, "local_id is required")
	}
	if err := validateBodyStatFields(b); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		UPDATE local_body_stats SET weight_kg = ?, body_fat_percentage = ?, muscle_mass_kg = ?, waist_cm = ?,
			chest_cm = ?, arm_cm = ?, thigh_cm = ?, water_intake = ?, date = ?, synced = 0, updated_at = ?
		WHERE local_id = ?`,
			nullFloat(b.WeightKg), nullFloat(b.BodyFatPercentage), nullFloat(b.MuscleMassKg),
			nullFloat(b.WaistCm), nullFloat(b.ChestCm), nullFloat(b.ArmCm), nullFloat(b.ThighCm),
			nullFloat(b.WaterIntake), b.Date, s.now(), b.LocalID)
		if err != nil {
			return dbError("update body stat", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("body stat", b.LocalID)
		}
		current, err := getBodyStat(ctx, tx, b.LocalID)
		if err != nil {
			return err
		}
		*b = *current
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpUpdate, current)
		return err
	})
}

// DeleteBodyStat removes a body stat and enqueues its DELETE.
func (s *Store) DeleteBodyStat(ctx context.Context, localID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := getBodyStat(ctx, tx, localID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_body_stats WHERE local_id = ?`, localID); err != nil {
			return dbError("delete body stat", err)
		}
		_, err = s.queue.EnqueuePayload(ctx, tx, models.OpDelete, b)
		return err
	})
}

// GetBodyStat returns one body stat.
func (s *Store) GetBodyStat(ctx context.Context, localID string) (*models.BodyStat, error) {
	return getBodyStat(ctx, s.db, localID)
}

func getBodyStat(ctx context.Context, q querier, localID string) (*models.BodyStat, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bodyStatColumns+` FROM local_body_stats WHERE local_id = ?`, localID)
	b, err := scanBodyStat(row)
	if err == sql.ErrNoRows {
		return nil, notFound("body stat", localID)
	}
	if err != nil {
		return nil, dbError("get body stat", err)
	}
	return &b, nil
}

// GetBodyStats returns a user's body stats, newest date first.
func (s *Store) GetBodyStats(ctx context.Context, userID int64, opts ListOptions) ([]models.BodyStat, error) {
	query := `SELECT ` + bodyStatColumns + ` FROM local_body_stats WHERE user_id = ?`
	args := []any{userID}
	if opts.Date != "" {
		query += ` AND date = ?`
		args = append(args, opts.Date)
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC LIMIT ?`
	args = append(args, opts.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list body stats", err)
	}
	defer rows.Close()

	var stats []models.BodyStat
	for rows.Next() {
		b, err := scanBodyStat(rows)
		if err != nil {
			return nil, dbError("scan body stat", err)
		}
		stats = append(stats, b)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list body stats", err)
	}
	return stats, nil
}

func scanBodyStat(row rowScanner) (models.BodyStat, error) {
	var b models.BodyStat
	var weight, fat, muscle, waist, chest, arm, thigh, water sql.NullFloat64
	err := row.Scan(&b.LocalID, &b.RemoteID, &b.UserID, &weight, &fat, &muscle, &waist, &chest, &arm, &thigh,
		&water, &b.Date, &b.Synced, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	b.WeightKg = floatPtr(weight)
	b.BodyFatPercentage = floatPtr(fat)
	b.MuscleMassKg = floatPtr(muscle)
	b.WaistCm = floatPtr(waist)
	b.ChestCm = floatPtr(chest)
	b.ArmCm = floatPtr(arm)
	b.ThighCm = floatPtr(thigh)
	b.WaterIntake = floatPtr(water)
	return b, nil
}
