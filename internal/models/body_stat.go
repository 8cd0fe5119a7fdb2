package models

import "time"

// BodyStat is a set of body measurements taken on one date. Every
// measurement is optional.
type BodyStat struct {
	RemoteID          string   `db:"remote_id" json:"id,omitempty"`
	LocalID           string   `db:"local_id" json:"local_id"`
	UserID            int64    `db:"user_id" json:"user_id"`
	WeightKg          *float64 `db:"weight_kg" json:"weight_kg,omitempty"`
	BodyFatPercentage *float64 `db:"body_fat_percentage" json:"body_fat_percentage,omitempty"`
	MuscleMassKg      *float64 `db:"muscle_mass_kg" json:"muscle_mass_kg,omitempty"`
	WaistCm           *float64 `db:"waist_cm" json:"waist_cm,omitempty"`
	ChestCm           *float64 `db:"chest_cm" json:"chest_cm,omitempty"`
	ArmCm             *float64 `db:"arm_cm" json:"arm_cm,omitempty"`
	ThighCm           *float64 `db:"thigh_cm" json:"thigh_cm,omitempty"`
	WaterIntake       *float64 `db:"water_intake" json:"water_intake,omitempty"`
	Date              string   `db:"date" json:"date"`
	Synced            bool     `db:"synced" json:"synced"`
	CreatedAt         int64    `db:"created_at" json:"created_at"`
	UpdatedAt         int64    `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for BodyStat.
func (BodyStat) TableName() string {
	return "local_body_stats"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (b *BodyStat) CreatedAtTime() time.Time {
	return millisToTime(b.CreatedAt)
}

// HasMeasurement reports whether at least one measurement is present.
func (b *BodyStat) HasMeasurement() bool {
	for _, v := range []*float64{
		b.WeightKg, b.BodyFatPercentage, b.MuscleMassKg,
		b.WaistCm, b.ChestCm, b.ArmCm, b.ThighCm, b.WaterIntake,
	} {
		if v != nil {
			return true
		}
	}
	return false
}
